package tracker

import (
	"context"
	"time"
)

// TaskStore holds task identity to record mappings.
type TaskStore interface {
	Create(ctx context.Context, record TaskRecord) error
	Transition(ctx context.Context, id TaskID, state TaskState, outcome *TaskOutcome) (TaskRecord, error)
	Get(ctx context.Context, id TaskID) (TaskRecord, error)
	Delete(ctx context.Context, id TaskID) error
}

// Queue provides enqueue/dequeue semantics for tasks.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	TryEnqueue(item QueueItem) bool
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Fetcher fetches a URL and returns the raw document plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// PageFetcher retrieves the visible, whitespace-normalized text of a page.
type PageFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// HeadlessDetector decides whether a headless fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// Notifier delivers a summary message to the operator.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Executor runs one unit of tracking work.
type Executor interface {
	Execute(ctx context.Context, spec TrackingSpec) TaskOutcome
}

// Submitter accepts tracking work for asynchronous execution.
type Submitter interface {
	Submit(ctx context.Context, spec TrackingSpec) (TaskID, error)
}

// RateLimiter throttles fetches per host.
type RateLimiter interface {
	Wait(ctx context.Context, url string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs and job names.
type IDGenerator interface {
	NewID() (string, error)
}
