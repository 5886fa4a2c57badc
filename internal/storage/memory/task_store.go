// Package memory holds task records in process memory.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

// TaskStore implements tracker.TaskStore. Records are copied on the way in
// and out so callers never share memory with the stored value.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[tracker.TaskID]tracker.TaskRecord
	clock tracker.Clock
}

// NewTaskStore constructs a TaskStore that stamps transitions with clock.
func NewTaskStore(clock tracker.Clock) *TaskStore {
	return &TaskStore{
		tasks: make(map[tracker.TaskID]tracker.TaskRecord),
		clock: clock,
	}
}

// Create stores a new record.
func (s *TaskStore) Create(_ context.Context, record tracker.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[record.ID]; exists {
		return errors.New("task already exists")
	}
	s.tasks[record.ID] = record.Clone()
	return nil
}

// Transition moves a record to state, stamping StartedAt or FinishedAt.
// Terminal states require an outcome.
func (s *TaskStore) Transition(
	_ context.Context,
	id tracker.TaskID,
	state tracker.TaskState,
	outcome *tracker.TaskOutcome,
) (tracker.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.tasks[id]
	if !ok {
		return tracker.TaskRecord{}, tracker.ErrTaskNotFound
	}
	if !record.State.CanTransition(state) {
		return tracker.TaskRecord{}, fmt.Errorf("%w: %s to %s", tracker.ErrInvalidTransition, record.State, state)
	}
	if state.Terminal() && outcome == nil {
		return tracker.TaskRecord{}, fmt.Errorf("%w: %s requires an outcome", tracker.ErrInvalidTransition, state)
	}

	now := s.clock.Now()
	record.State = state
	switch {
	case state == tracker.TaskStateRunning:
		record.StartedAt = &now
	case state.Terminal():
		record.FinishedAt = &now
		cp := outcome.Clone()
		record.Outcome = &cp
	}
	s.tasks[id] = record
	return record.Clone(), nil
}

// Get fetches a record by ID.
func (s *TaskStore) Get(_ context.Context, id tracker.TaskID) (tracker.TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.tasks[id]
	if !ok {
		return tracker.TaskRecord{}, tracker.ErrTaskNotFound
	}
	return record.Clone(), nil
}

// Delete removes a record. Deleting an unknown ID is not an error.
func (s *TaskStore) Delete(_ context.Context, id tracker.TaskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}

// Len reports the number of stored records.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Sweep evicts terminal records that finished more than retention ago and
// returns how many were removed. Pending and running records are kept.
func (s *TaskStore) Sweep(retention time.Duration) int {
	cutoff := s.clock.Now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, record := range s.tasks {
		if !record.State.Terminal() || record.FinishedAt == nil {
			continue
		}
		if record.FinishedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}
