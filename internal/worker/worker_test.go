package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-tracker/internal/clock/system"
	"github.com/JakeFAU/keyword-tracker/internal/dispatcher"
	"github.com/JakeFAU/keyword-tracker/internal/executor"
	"github.com/JakeFAU/keyword-tracker/internal/queue/memory"
	"github.com/JakeFAU/keyword-tracker/internal/registry"
	storage "github.com/JakeFAU/keyword-tracker/internal/storage/memory"
	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() (string, error) {
	return fmt.Sprintf("task-%d", s.n.Add(1)), nil
}

type fakeExecutor struct {
	mu      sync.Mutex
	outcome tracker.TaskOutcome
	release chan struct{}
	panics  bool
	specs   []tracker.TrackingSpec
}

func (e *fakeExecutor) Execute(ctx context.Context, spec tracker.TrackingSpec) tracker.TaskOutcome {
	e.mu.Lock()
	e.specs = append(e.specs, spec)
	e.mu.Unlock()
	if e.release != nil {
		select {
		case <-e.release:
		case <-ctx.Done():
			return tracker.FailureOutcome(spec.URL, ctx.Err().Error())
		}
	}
	if e.panics {
		panic("boom")
	}
	return e.outcome
}

type pipeline struct {
	reg   *registry.Registry
	queue *memory.Queue
}

func newPipeline(t *testing.T) pipeline {
	t.Helper()
	q := memory.NewQueue(8)
	d, err := dispatcher.New(q, nil, dispatcher.Config{})
	require.NoError(t, err)
	reg := registry.New(storage.NewTaskStore(system.New()), d, &seqIDs{}, system.New(), zap.NewNop())
	return pipeline{reg: reg, queue: q}
}

var spec = tracker.TrackingSpec{URL: "https://example.com", Keywords: []string{"alpha"}}

func waitForState(t *testing.T, reg *registry.Registry, id tracker.TaskID, want tracker.TaskState) tracker.TaskRecord {
	t.Helper()
	var record tracker.TaskRecord
	require.Eventually(t, func() bool {
		got, err := reg.Get(context.Background(), id)
		if err != nil {
			return false
		}
		record = got
		return got.State == want
	}, time.Second, 5*time.Millisecond)
	return record
}

func TestWorker_ProcessTask_SuccessFlow(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newPipeline(t)
	exec := &fakeExecutor{outcome: tracker.SuccessOutcome(spec.URL, []tracker.MatchResult{{Keyword: "alpha", Count: 2}})}
	go New(p.queue, p.reg, exec, zap.NewNop()).Run(ctx)

	id, err := p.reg.Submit(ctx, spec)
	require.NoError(t, err)

	record := waitForState(t, p.reg, id, tracker.TaskStateSucceeded)
	require.Equal(t, 2, record.Outcome.Matches[0].Count)
	require.NotNil(t, record.StartedAt)
	require.NotNil(t, record.FinishedAt)
}

func TestWorker_ProcessTask_FailureFlow(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newPipeline(t)
	exec := &fakeExecutor{outcome: tracker.FailureOutcome(spec.URL, "fetch https://example.com: unexpected status 500")}
	go New(p.queue, p.reg, exec, zap.NewNop()).Run(ctx)

	id, err := p.reg.Submit(ctx, spec)
	require.NoError(t, err)

	record := waitForState(t, p.reg, id, tracker.TaskStateFailed)
	require.Contains(t, record.Outcome.Error, "500")
	require.Empty(t, record.Outcome.Matches)
}

func TestWorker_ReportsRunningWhileExecuting(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newPipeline(t)
	exec := &fakeExecutor{
		outcome: tracker.SuccessOutcome(spec.URL, nil),
		release: make(chan struct{}),
	}
	go New(p.queue, p.reg, exec, zap.NewNop()).Run(ctx)

	id, err := p.reg.Submit(ctx, spec)
	require.NoError(t, err)

	running := waitForState(t, p.reg, id, tracker.TaskStateRunning)
	require.Nil(t, running.Outcome)
	require.Nil(t, running.FinishedAt)

	close(exec.release)
	waitForState(t, p.reg, id, tracker.TaskStateSucceeded)
}

func TestWorker_RecoversExecutorPanic(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newPipeline(t)
	go New(p.queue, p.reg, &fakeExecutor{panics: true}, zap.NewNop()).Run(ctx)

	id, err := p.reg.Submit(ctx, spec)
	require.NoError(t, err)

	record := waitForState(t, p.reg, id, tracker.TaskStateFailed)
	require.Contains(t, record.Outcome.Error, "internal error: boom")
}

func TestWorker_ShutdownRecordsTerminalState(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := newPipeline(t)
	exec := &fakeExecutor{release: make(chan struct{})}
	done := make(chan struct{})
	go func() {
		New(p.queue, p.reg, exec, zap.NewNop()).Run(ctx)
		close(done)
	}()

	id, err := p.reg.Submit(context.Background(), spec)
	require.NoError(t, err)
	waitForState(t, p.reg, id, tracker.TaskStateRunning)

	cancel()
	<-done
	record, err := p.reg.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, tracker.TaskStateFailed, record.State)
}

func TestWorker_StopsOnClosedQueue(t *testing.T) {
	t.Parallel()

	p := newPipeline(t)
	p.queue.Close()
	done := make(chan struct{})
	go func() {
		New(p.queue, p.reg, &fakeExecutor{}, nil).Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on closed queue")
	}
}

type staticPageFetcher struct {
	text string
	err  error
}

func (f staticPageFetcher) FetchText(context.Context, string) (string, error) {
	return f.text, f.err
}

type countingNotifier struct{ calls atomic.Int32 }

func (n *countingNotifier) Notify(context.Context, string, string) error {
	n.calls.Add(1)
	return nil
}

// TestWorker_WithExecutor runs the real executor end to end over fakes at the edges.
func TestWorker_WithExecutor(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		fetcher   staticPageFetcher
		wantState tracker.TaskState
		wantCalls int32
	}{
		{"match notifies once", staticPageFetcher{text: "Alpha rises. alpha again."}, tracker.TaskStateSucceeded, 1},
		{"no match is silent", staticPageFetcher{text: "nothing here"}, tracker.TaskStateSucceeded, 0},
		{"fetch error is silent", staticPageFetcher{err: &tracker.FetchError{URL: spec.URL, StatusCode: http.StatusNotFound}}, tracker.TaskStateFailed, 0},
		{"transport error", staticPageFetcher{err: errors.New("dial tcp: refused")}, tracker.TaskStateFailed, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			p := newPipeline(t)
			notifier := &countingNotifier{}
			exec := executor.New(tc.fetcher, notifier, executor.Config{}, zap.NewNop())
			go New(p.queue, p.reg, exec, zap.NewNop()).Run(ctx)

			id, err := p.reg.Submit(ctx, spec)
			require.NoError(t, err)
			waitForState(t, p.reg, id, tc.wantState)
			require.Equal(t, tc.wantCalls, notifier.calls.Load())
		})
	}
}
