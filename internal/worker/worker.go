// Package worker implements the task execution loop.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-tracker/internal/metrics"
	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

// Lifecycle records task state transitions.
type Lifecycle interface {
	MarkRunning(ctx context.Context, id tracker.TaskID) (tracker.TaskRecord, error)
	Complete(ctx context.Context, id tracker.TaskID, outcome tracker.TaskOutcome) (tracker.TaskRecord, error)
}

// Dequeuer yields queued tasks.
type Dequeuer interface {
	Dequeue(ctx context.Context) (tracker.QueueItem, error)
}

// Worker consumes queue items and runs them through the executor.
type Worker struct {
	queue     Dequeuer
	lifecycle Lifecycle
	executor  tracker.Executor
	logger    *zap.Logger
}

// New constructs a Worker.
func New(queue Dequeuer, lifecycle Lifecycle, executor tracker.Executor, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:     queue,
		lifecycle: lifecycle,
		executor:  executor,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			return
		}
		w.logger.Debug("dequeued task", zap.String("task_id", string(item.TaskID)))
		w.processTask(ctx, item)
	}
}

func (w *Worker) processTask(ctx context.Context, item tracker.QueueItem) {
	taskID := zap.String("task_id", string(item.TaskID))
	if _, err := w.lifecycle.MarkRunning(ctx, item.TaskID); err != nil {
		w.logger.Error("mark running failed", taskID, zap.Error(err))
		return
	}

	metrics.IncActiveWorkers()
	outcome := w.execute(ctx, item)
	metrics.DecActiveWorkers()

	// The terminal state is recorded even when shutdown canceled ctx.
	record, err := w.lifecycle.Complete(context.WithoutCancel(ctx), item.TaskID, outcome)
	if err != nil {
		w.logger.Error("complete task failed", taskID, zap.Error(err))
		return
	}
	w.logger.Info("task finished",
		taskID,
		zap.String("url", item.Spec.URL),
		zap.String("state", string(record.State)),
		zap.Bool("matched", outcome.Matched()),
	)
}

func (w *Worker) execute(ctx context.Context, item tracker.QueueItem) (outcome tracker.TaskOutcome) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("executor panicked", zap.String("task_id", string(item.TaskID)), zap.Any("panic", r))
			outcome = tracker.FailureOutcome(item.Spec.URL, fmt.Sprintf("internal error: %v", r))
		}
	}()
	return w.executor.Execute(ctx, item.Spec)
}
