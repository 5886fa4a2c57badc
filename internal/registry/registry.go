// Package registry issues task identities, tracks each task's lifecycle and
// hands new tasks to the worker pool.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-tracker/internal/metrics"
	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

// Enqueuer accepts queue items for the workers.
type Enqueuer interface {
	Enqueue(ctx context.Context, item tracker.QueueItem) error
}

// Store is a task store that can evict expired records.
type Store interface {
	tracker.TaskStore
	Sweep(retention time.Duration) int
}

// Registry implements tracker.Submitter and the worker-facing lifecycle.
type Registry struct {
	store    Store
	enqueuer Enqueuer
	ids      tracker.IDGenerator
	clock    tracker.Clock
	logger   *zap.Logger
}

// New constructs a Registry.
func New(store Store, enqueuer Enqueuer, ids tracker.IDGenerator, clock tracker.Clock, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:    store,
		enqueuer: enqueuer,
		ids:      ids,
		clock:    clock,
		logger:   logger,
	}
}

// Submit records a pending task and queues it. It returns as soon as the task
// is queued. When the queue refuses the task its record is removed and the
// error wraps tracker.ErrQueueFull.
func (r *Registry) Submit(ctx context.Context, spec tracker.TrackingSpec) (tracker.TaskID, error) {
	rawID, err := r.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate task id: %w", err)
	}
	id := tracker.TaskID(rawID)
	now := r.clock.Now()
	record := tracker.TaskRecord{
		ID:        id,
		State:     tracker.TaskStatePending,
		Spec:      spec,
		CreatedAt: now,
	}
	if err := r.store.Create(ctx, record); err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}

	item := tracker.QueueItem{TaskID: id, Spec: record.Clone().Spec, Submitted: now.UnixNano()}
	if err := r.enqueuer.Enqueue(ctx, item); err != nil {
		if delErr := r.store.Delete(ctx, id); delErr != nil {
			r.logger.Error("delete rejected task failed", zap.String("task_id", string(id)), zap.Error(delErr))
		}
		if errors.Is(err, tracker.ErrQueueFull) {
			metrics.ObserveQueueRejection()
			r.logger.Warn("task rejected, queue full", zap.String("url", spec.URL))
		}
		return "", fmt.Errorf("enqueue task: %w", err)
	}
	metrics.ObserveTask(string(tracker.TaskStatePending))
	r.logger.Debug("task submitted", zap.String("task_id", string(id)), zap.String("url", spec.URL))
	return id, nil
}

// Get returns a snapshot of the task record.
func (r *Registry) Get(ctx context.Context, id tracker.TaskID) (tracker.TaskRecord, error) {
	record, err := r.store.Get(ctx, id)
	if err != nil {
		return tracker.TaskRecord{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return record, nil
}

// MarkRunning moves a pending task to running.
func (r *Registry) MarkRunning(ctx context.Context, id tracker.TaskID) (tracker.TaskRecord, error) {
	record, err := r.store.Transition(ctx, id, tracker.TaskStateRunning, nil)
	if err != nil {
		return tracker.TaskRecord{}, fmt.Errorf("mark task %s running: %w", id, err)
	}
	metrics.ObserveTask(string(tracker.TaskStateRunning))
	return record, nil
}

// Complete stores the outcome. The task succeeds unless the outcome carries an error.
func (r *Registry) Complete(ctx context.Context, id tracker.TaskID, outcome tracker.TaskOutcome) (tracker.TaskRecord, error) {
	state := tracker.TaskStateSucceeded
	if outcome.Failed() {
		state = tracker.TaskStateFailed
	}
	record, err := r.store.Transition(ctx, id, state, &outcome)
	if err != nil {
		return tracker.TaskRecord{}, fmt.Errorf("complete task %s: %w", id, err)
	}
	metrics.ObserveTask(string(state))
	return record, nil
}

// RunSweeper evicts expired terminal records every interval until ctx ends.
// A non-positive interval disables sweeping.
func (r *Registry) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		r.logger.Warn("task sweeper disabled", zap.Duration("interval", interval))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.store.Sweep(retention); n > 0 {
				metrics.ObserveEvictions(n)
				r.logger.Debug("evicted expired tasks", zap.Int("count", n))
			}
		}
	}
}
