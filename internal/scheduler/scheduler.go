// Package scheduler keeps named recurring jobs and submits a tracking task
// each time a job's interval elapses.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-tracker/internal/metrics"
	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

// NameGenerator produces names for jobs registered without one.
type NameGenerator interface {
	NewJobName() (string, error)
}

type entry struct {
	job    tracker.ScheduledJob
	gen    uint64
	cancel context.CancelFunc
}

// Scheduler runs one timer goroutine per job. The first firing happens one
// full interval after registration.
type Scheduler struct {
	submitter tracker.Submitter
	names     NameGenerator
	clock     tracker.Clock
	logger    *zap.Logger

	// ctx outlives individual jobs so a firing already submitting is not
	// cut short by RemoveJob.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*entry
	gen    uint64
	closed bool
}

// New constructs a Scheduler.
func New(submitter tracker.Submitter, names NameGenerator, clock tracker.Clock, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		submitter: submitter,
		names:     names,
		clock:     clock,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*entry),
	}
}

// AddJob registers spec under name and returns the name used. An empty name
// is replaced by a generated one. Re-adding a name replaces the job and
// restarts its timer.
func (s *Scheduler) AddJob(name string, spec tracker.ScheduleSpec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", tracker.ErrSchedulerClosed
	}
	if name == "" {
		generated, err := s.uniqueName()
		if err != nil {
			return "", err
		}
		name = generated
	}

	replaced := false
	if old, ok := s.jobs[name]; ok {
		old.cancel()
		replaced = true
	}

	spec.Keywords = append([]string(nil), spec.Keywords...)
	s.gen++
	jobCtx, cancel := context.WithCancel(s.ctx)
	e := &entry{
		job: tracker.ScheduledJob{
			Name:      name,
			Spec:      spec,
			CreatedAt: s.clock.Now(),
		},
		gen:    s.gen,
		cancel: cancel,
	}
	s.jobs[name] = e
	metrics.SetScheduledJobs(len(s.jobs))

	s.wg.Add(1)
	go s.run(jobCtx, name, e.gen, spec.Interval)

	s.logger.Info("job scheduled",
		zap.String("job_name", name),
		zap.String("url", spec.URL),
		zap.Duration("interval", spec.Interval),
		zap.Bool("replaced", replaced),
	)
	return name, nil
}

// RemoveJob cancels future firings of name.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", tracker.ErrJobNotFound, name)
	}
	e.cancel()
	delete(s.jobs, name)
	metrics.SetScheduledJobs(len(s.jobs))
	s.logger.Info("job removed", zap.String("job_name", name))
	return nil
}

// Job returns the registered job with the given name.
func (s *Scheduler) Job(name string) (tracker.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[name]
	if !ok {
		return tracker.ScheduledJob{}, fmt.Errorf("%w: %s", tracker.ErrJobNotFound, name)
	}
	return cloneJob(e.job), nil
}

// Jobs returns every registered job sorted by name.
func (s *Scheduler) Jobs() []tracker.ScheduledJob {
	s.mu.Lock()
	out := make([]tracker.ScheduledJob, 0, len(s.jobs))
	for _, e := range s.jobs {
		out = append(out, cloneJob(e.job))
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close stops every timer and waits for running firings to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for name, e := range s.jobs {
		e.cancel()
		delete(s.jobs, name)
	}
	metrics.SetScheduledJobs(0)
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, name string, gen uint64, interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(name, gen)
		}
	}
}

// fire submits the job's spec if gen still names the current registration.
func (s *Scheduler) fire(name string, gen uint64) {
	s.mu.Lock()
	e, ok := s.jobs[name]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	spec := e.job.Spec.TrackingSpec
	spec.Keywords = append([]string(nil), spec.Keywords...)
	s.mu.Unlock()

	id, err := s.submitter.Submit(s.ctx, spec)
	if err != nil {
		metrics.ObserveSchedulerFiring("failed")
		s.logger.Warn("scheduled submission failed", zap.String("job_name", name), zap.Error(err))
		return
	}
	metrics.ObserveSchedulerFiring("submitted")
	s.logger.Debug("scheduled submission",
		zap.String("job_name", name),
		zap.String("task_id", string(id)),
	)
}

// uniqueName must be called with s.mu held.
func (s *Scheduler) uniqueName() (string, error) {
	for {
		name, err := s.names.NewJobName()
		if err != nil {
			return "", fmt.Errorf("generate job name: %w", err)
		}
		if _, taken := s.jobs[name]; !taken {
			return name, nil
		}
	}
}

func cloneJob(job tracker.ScheduledJob) tracker.ScheduledJob {
	job.Spec.Keywords = append([]string(nil), job.Spec.Keywords...)
	return job
}
