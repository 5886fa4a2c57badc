// Package tracker defines the core types shared across the tracking pipeline.
package tracker

import (
	"net/http"
	"time"
)

// TaskID identifies a single execution attempt.
type TaskID string

// TaskState represents the lifecycle state of a tracking task.
type TaskState string

// Task states. Transitions only move forward: pending, running, then a terminal state.
const (
	TaskStatePending   TaskState = "pending"
	TaskStateRunning   TaskState = "running"
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s TaskState) Terminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s TaskState) CanTransition(next TaskState) bool {
	switch s {
	case TaskStatePending:
		return next == TaskStateRunning
	case TaskStateRunning:
		return next.Terminal()
	default:
		return false
	}
}

// TrackingSpec is a validated target page plus the keywords to look for.
type TrackingSpec struct {
	URL      string   `json:"url"`
	Keywords []string `json:"keywords"`
}

// ScheduleSpec is a TrackingSpec repeated at a fixed interval.
type ScheduleSpec struct {
	TrackingSpec
	Interval time.Duration `json:"interval"`
}

// ScheduledJob is a named recurring submission held by the scheduler.
type ScheduledJob struct {
	Name      string       `json:"job_name"`
	Spec      ScheduleSpec `json:"spec"`
	CreatedAt time.Time    `json:"created_at"`
}

// MatchResult holds the occurrences of one keyword in a page.
type MatchResult struct {
	Keyword  string   `json:"keyword"`
	Count    int      `json:"count"`
	Snippets []string `json:"snippets"`
}

// TaskOutcome is the terminal result of a task. Exactly one of Matches or
// Error is populated.
type TaskOutcome struct {
	URL     string        `json:"url"`
	Matches []MatchResult `json:"matches,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// SuccessOutcome builds the outcome for a completed match run.
func SuccessOutcome(url string, matches []MatchResult) TaskOutcome {
	if matches == nil {
		matches = []MatchResult{}
	}
	return TaskOutcome{URL: url, Matches: matches}
}

// FailureOutcome builds the outcome for a task that could not complete.
func FailureOutcome(url string, errText string) TaskOutcome {
	if errText == "" {
		errText = "unknown error"
	}
	return TaskOutcome{URL: url, Error: errText}
}

// Failed reports whether the outcome carries an error.
func (o TaskOutcome) Failed() bool {
	return o.Error != ""
}

// Matched reports whether any keyword occurred at least once.
func (o TaskOutcome) Matched() bool {
	for _, m := range o.Matches {
		if m.Count > 0 {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the outcome.
func (o TaskOutcome) Clone() TaskOutcome {
	cp := o
	if o.Matches != nil {
		cp.Matches = make([]MatchResult, len(o.Matches))
		for i, m := range o.Matches {
			m.Snippets = append([]string(nil), m.Snippets...)
			cp.Matches[i] = m
		}
	}
	return cp
}

// TaskRecord is the current state and, once terminal, the outcome of a task.
type TaskRecord struct {
	ID         TaskID       `json:"id"`
	State      TaskState    `json:"state"`
	Spec       TrackingSpec `json:"spec"`
	Outcome    *TaskOutcome `json:"outcome,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Clone returns a copy that shares no mutable memory with r.
func (r TaskRecord) Clone() TaskRecord {
	cp := r
	cp.Spec.Keywords = append([]string(nil), r.Spec.Keywords...)
	if r.Outcome != nil {
		outcome := r.Outcome.Clone()
		cp.Outcome = &outcome
	}
	if r.StartedAt != nil {
		ts := *r.StartedAt
		cp.StartedAt = &ts
	}
	if r.FinishedAt != nil {
		ts := *r.FinishedAt
		cp.FinishedAt = &ts
	}
	return cp
}

// QueueItem wraps a task ready to run.
type QueueItem struct {
	TaskID    TaskID
	Spec      TrackingSpec
	Submitted int64
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the raw document returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}
