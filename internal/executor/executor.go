// Package executor runs one tracking task: fetch the page, match keywords and
// notify the operator when anything was found.
package executor

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-tracker/internal/matcher"
	"github.com/JakeFAU/keyword-tracker/internal/metrics"
	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

const defaultNotifyTimeout = 10 * time.Second

// Config controls Executor behavior.
type Config struct {
	NotifyTimeout time.Duration
}

// Executor implements tracker.Executor. It holds no per-task state.
type Executor struct {
	fetcher  tracker.PageFetcher
	notifier tracker.Notifier
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
}

// New constructs an Executor. A nil notifier disables notifications.
func New(fetcher tracker.PageFetcher, notifier tracker.Notifier, cfg Config, logger *zap.Logger) *Executor {
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		fetcher:  fetcher,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("github.com/JakeFAU/keyword-tracker/internal/executor"),
	}
}

// Execute fetches spec.URL and matches its keywords. Fetch failures become a
// failure outcome; notification failures are logged and never change the outcome.
func (e *Executor) Execute(ctx context.Context, spec tracker.TrackingSpec) tracker.TaskOutcome {
	ctx, span := e.tracer.Start(ctx, "executor.Execute",
		trace.WithAttributes(
			attribute.String("tracker.url", spec.URL),
			attribute.Int("tracker.keywords", len(spec.Keywords)),
		),
	)
	defer span.End()

	text, err := e.fetcher.FetchText(ctx, spec.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		e.logger.Warn("fetch failed", zap.String("url", spec.URL), zap.Error(err))
		return tracker.FailureOutcome(spec.URL, err.Error())
	}

	matches := matcher.Match(text, spec.Keywords)
	if subject, body, ok := Summary(spec.URL, matches); ok {
		span.SetAttributes(attribute.Bool("tracker.matched", true))
		e.notify(ctx, spec.URL, subject, body)
	}
	return tracker.SuccessOutcome(spec.URL, matches)
}

func (e *Executor) notify(ctx context.Context, url, subject, body string) {
	if e.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(ctx, e.cfg.NotifyTimeout)
	defer cancel()

	if err := e.notifier.Notify(notifyCtx, subject, body); err != nil {
		metrics.ObserveNotification("failed")
		e.logger.Error("notification failed", zap.String("url", url), zap.Error(err))
		return
	}
	metrics.ObserveNotification("sent")
	e.logger.Info("notification sent", zap.String("url", url))
}
