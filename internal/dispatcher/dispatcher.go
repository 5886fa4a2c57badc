// Package dispatcher manages worker fan-out over the task queue and applies
// the backpressure policy on the way in.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

// Backpressure policies.
const (
	PolicyReject = "reject"
	PolicyBlock  = "block"
)

const defaultEnqueueTimeout = 2 * time.Second

// Runner is a worker loop that blocks until ctx ends.
type Runner interface {
	Run(ctx context.Context)
}

// Config controls how Enqueue behaves when the queue is full.
type Config struct {
	Backpressure   string
	EnqueueTimeout time.Duration
}

// Dispatcher fans out queue work to a pool of workers.
type Dispatcher struct {
	queue   tracker.Queue
	workers []Runner
	cfg     Config
}

// New creates a Dispatcher.
func New(queue tracker.Queue, workers []Runner, cfg Config) (*Dispatcher, error) {
	switch cfg.Backpressure {
	case "":
		cfg.Backpressure = PolicyReject
	case PolicyReject, PolicyBlock:
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", cfg.Backpressure)
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = defaultEnqueueTimeout
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		cfg:     cfg,
	}, nil
}

// AddWorker registers w with the pool. It must be called before Run.
func (d *Dispatcher) AddWorker(w Runner) {
	d.workers = append(d.workers, w)
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk Runner) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Enqueue hands an item to the workers. A full queue yields tracker.ErrQueueFull,
// immediately under the reject policy or after EnqueueTimeout under block.
func (d *Dispatcher) Enqueue(ctx context.Context, item tracker.QueueItem) error {
	if d.cfg.Backpressure == PolicyReject {
		if !d.queue.TryEnqueue(item) {
			return tracker.ErrQueueFull
		}
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, d.cfg.EnqueueTimeout)
	defer cancel()
	if err := d.queue.Enqueue(waitCtx, item); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: waited %s", tracker.ErrQueueFull, d.cfg.EnqueueTimeout)
		}
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
