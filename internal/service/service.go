// Package service is the boundary between transports and the tracking core.
// It validates requests and translates task state into the caller-facing
// status vocabulary.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

// Caller-facing task statuses.
const (
	StatusPending    = "pending"
	StatusInProgress = "in progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Tasks submits tasks and reads their records.
type Tasks interface {
	Submit(ctx context.Context, spec tracker.TrackingSpec) (tracker.TaskID, error)
	Get(ctx context.Context, id tracker.TaskID) (tracker.TaskRecord, error)
}

// Jobs manages recurring jobs.
type Jobs interface {
	AddJob(name string, spec tracker.ScheduleSpec) (string, error)
	RemoveJob(name string) error
	Job(name string) (tracker.ScheduledJob, error)
	Jobs() []tracker.ScheduledJob
}

// TrackingRequest asks for a one-shot check.
type TrackingRequest struct {
	URL      string
	Keywords []string
}

// ScheduleRequest asks for a recurring check. An empty JobName is generated.
type ScheduleRequest struct {
	URL      string
	Keywords []string
	Interval time.Duration
	JobName  string
}

// TaskStatus is the caller view of a task. Result is set only when completed
// and Error only when failed.
type TaskStatus struct {
	Status string               `json:"status"`
	Result *tracker.TaskOutcome `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// Service implements the tracking operations.
type Service struct {
	tasks  Tasks
	jobs   Jobs
	logger *zap.Logger
}

// New constructs a Service.
func New(tasks Tasks, jobs Jobs, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{tasks: tasks, jobs: jobs, logger: logger}
}

// SubmitTracking validates req and submits a task. Invalid input returns a
// *tracker.ValidationError and nothing is submitted.
func (s *Service) SubmitTracking(ctx context.Context, req TrackingRequest) (tracker.TaskID, error) {
	spec, err := tracker.NewTrackingSpec(req.URL, req.Keywords)
	if err != nil {
		return "", err
	}
	id, err := s.tasks.Submit(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("submit tracking: %w", err)
	}
	return id, nil
}

// GetTaskStatus reports the task's status.
func (s *Service) GetTaskStatus(ctx context.Context, id tracker.TaskID) (TaskStatus, error) {
	record, err := s.tasks.Get(ctx, id)
	if err != nil {
		return TaskStatus{}, err
	}
	return StatusOf(record), nil
}

// ScheduleTracking validates req and registers a recurring job, returning its name.
func (s *Service) ScheduleTracking(_ context.Context, req ScheduleRequest) (string, error) {
	spec, err := tracker.NewScheduleSpec(req.URL, req.Keywords, req.Interval)
	if err != nil {
		return "", err
	}
	name, err := s.jobs.AddJob(req.JobName, spec)
	if err != nil {
		return "", fmt.Errorf("schedule tracking: %w", err)
	}
	return name, nil
}

// Unschedule removes a recurring job.
func (s *Service) Unschedule(name string) error {
	return s.jobs.RemoveJob(name)
}

// Schedules lists recurring jobs sorted by name.
func (s *Service) Schedules() []tracker.ScheduledJob {
	return s.jobs.Jobs()
}

// Schedule returns one recurring job.
func (s *Service) Schedule(name string) (tracker.ScheduledJob, error) {
	return s.jobs.Job(name)
}

// StatusOf maps a record to the caller vocabulary.
func StatusOf(record tracker.TaskRecord) TaskStatus {
	switch record.State {
	case tracker.TaskStateRunning:
		return TaskStatus{Status: StatusInProgress}
	case tracker.TaskStateSucceeded:
		status := TaskStatus{Status: StatusCompleted}
		if record.Outcome != nil {
			outcome := record.Outcome.Clone()
			status.Result = &outcome
		}
		return status
	case tracker.TaskStateFailed:
		status := TaskStatus{Status: StatusFailed, Error: "unknown error"}
		if record.Outcome != nil && record.Outcome.Error != "" {
			status.Error = record.Outcome.Error
		}
		return status
	default:
		return TaskStatus{Status: StatusPending}
	}
}
