package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/keyword-tracker/internal/clock/system"
	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

func newRecord(id string) tracker.TaskRecord {
	return tracker.TaskRecord{
		ID:    tracker.TaskID(id),
		State: tracker.TaskStatePending,
		Spec:  tracker.TrackingSpec{URL: "https://example.com", Keywords: []string{"alpha"}},
	}
}

func TestTaskStoreLifecycle(t *testing.T) {
	t.Parallel()

	clk := system.NewManual(time.Unix(100, 0))
	store := NewTaskStore(clk)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newRecord("task-1")))
	require.Error(t, store.Create(ctx, newRecord("task-1")))

	running, err := store.Transition(ctx, "task-1", tracker.TaskStateRunning, nil)
	require.NoError(t, err)
	require.Equal(t, tracker.TaskStateRunning, running.State)
	require.NotNil(t, running.StartedAt)
	require.Nil(t, running.FinishedAt)

	clk.Advance(time.Second)
	outcome := tracker.SuccessOutcome("https://example.com", []tracker.MatchResult{{Keyword: "alpha", Count: 1, Snippets: []string{"alpha."}}})
	done, err := store.Transition(ctx, "task-1", tracker.TaskStateSucceeded, &outcome)
	require.NoError(t, err)
	require.Equal(t, tracker.TaskStateSucceeded, done.State)
	require.NotNil(t, done.FinishedAt)
	require.Equal(t, time.Second, done.FinishedAt.Sub(*done.StartedAt))

	outcome.Matches[0].Snippets[0] = "mutated"
	got, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, "alpha.", got.Outcome.Matches[0].Snippets[0])

	got.Outcome.Matches[0].Count = 99
	again, err := store.Get(ctx, "task-1")
	require.NoError(t, err)
	require.Equal(t, 1, again.Outcome.Matches[0].Count)
}

func TestTaskStoreRejectsInvalidTransitions(t *testing.T) {
	t.Parallel()

	store := NewTaskStore(system.New())
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newRecord("task-2")))

	failure := tracker.FailureOutcome("https://example.com", "boom")
	_, err := store.Transition(ctx, "task-2", tracker.TaskStateFailed, &failure)
	require.ErrorIs(t, err, tracker.ErrInvalidTransition)

	_, err = store.Transition(ctx, "task-2", tracker.TaskStateRunning, nil)
	require.NoError(t, err)
	_, err = store.Transition(ctx, "task-2", tracker.TaskStateSucceeded, nil)
	require.ErrorIs(t, err, tracker.ErrInvalidTransition)

	_, err = store.Transition(ctx, "task-2", tracker.TaskStateFailed, &failure)
	require.NoError(t, err)
	_, err = store.Transition(ctx, "task-2", tracker.TaskStateRunning, nil)
	require.ErrorIs(t, err, tracker.ErrInvalidTransition)

	got, err := store.Get(ctx, "task-2")
	require.NoError(t, err)
	require.Equal(t, tracker.TaskStateFailed, got.State)
	require.Equal(t, "boom", got.Outcome.Error)
}

func TestTaskStoreNotFound(t *testing.T) {
	t.Parallel()

	store := NewTaskStore(system.New())
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	require.True(t, errors.Is(err, tracker.ErrTaskNotFound))
	_, err = store.Transition(ctx, "missing", tracker.TaskStateRunning, nil)
	require.ErrorIs(t, err, tracker.ErrTaskNotFound)
	require.NoError(t, store.Delete(ctx, "missing"))
}

func TestTaskStoreSweepEvictsOnlyExpiredTerminalRecords(t *testing.T) {
	t.Parallel()

	clk := system.NewManual(time.Unix(1_000, 0))
	store := NewTaskStore(clk)
	ctx := context.Background()
	outcome := tracker.SuccessOutcome("https://example.com", nil)

	for _, id := range []string{"old-done", "new-done", "running", "pending"} {
		require.NoError(t, store.Create(ctx, newRecord(id)))
	}
	_, err := store.Transition(ctx, "old-done", tracker.TaskStateRunning, nil)
	require.NoError(t, err)
	_, err = store.Transition(ctx, "old-done", tracker.TaskStateSucceeded, &outcome)
	require.NoError(t, err)
	_, err = store.Transition(ctx, "running", tracker.TaskStateRunning, nil)
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = store.Transition(ctx, "new-done", tracker.TaskStateRunning, nil)
	require.NoError(t, err)
	_, err = store.Transition(ctx, "new-done", tracker.TaskStateSucceeded, &outcome)
	require.NoError(t, err)

	require.Equal(t, 1, store.Sweep(time.Hour))
	require.Equal(t, 3, store.Len())
	_, err = store.Get(ctx, "old-done")
	require.ErrorIs(t, err, tracker.ErrTaskNotFound)
	for _, id := range []tracker.TaskID{"new-done", "running", "pending"} {
		_, err := store.Get(ctx, id)
		require.NoError(t, err)
	}
}

func TestTaskStoreConcurrentReadersSeeConsistentRecords(t *testing.T) {
	t.Parallel()

	store := NewTaskStore(system.New())
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newRecord("task-c")))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		outcome := tracker.SuccessOutcome("https://example.com", nil)
		_, _ = store.Transition(ctx, "task-c", tracker.TaskStateRunning, nil)
		_, _ = store.Transition(ctx, "task-c", tracker.TaskStateSucceeded, &outcome)
	}()
	for range 100 {
		got, err := store.Get(ctx, "task-c")
		require.NoError(t, err)
		if got.State.Terminal() {
			require.NotNil(t, got.Outcome)
			require.NotNil(t, got.FinishedAt)
		} else {
			require.Nil(t, got.Outcome)
		}
	}
	wg.Wait()
}
