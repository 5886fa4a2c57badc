// Package fetcher turns a URL into the visible text of its page.
//
// A Pipeline probes the page with a plain HTTP fetcher and, when a detector
// judges the probe to be a client-rendered shell, re-fetches it with a
// headless browser. The resulting document is reduced to whitespace-normalized
// visible text.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-tracker/internal/fetcher/extract"
	"github.com/JakeFAU/keyword-tracker/internal/metrics"
	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

const defaultTimeout = 10 * time.Second

// Config controls the pipeline.
type Config struct {
	// Timeout bounds the whole fetch, including rate-limit waits and any
	// headless promotion.
	Timeout time.Duration
	// Headers are sent with every request.
	Headers http.Header
}

// Pipeline implements tracker.PageFetcher.
type Pipeline struct {
	probe    tracker.Fetcher
	headless tracker.Fetcher
	detector tracker.HeadlessDetector
	limiter  tracker.RateLimiter
	cfg      Config
	logger   *zap.Logger
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithHeadless enables promotion to a headless fetcher when detector agrees.
func WithHeadless(headless tracker.Fetcher, detector tracker.HeadlessDetector) Option {
	return func(p *Pipeline) {
		p.headless = headless
		p.detector = detector
	}
}

// WithRateLimiter throttles fetches before they start.
func WithRateLimiter(limiter tracker.RateLimiter) Option {
	return func(p *Pipeline) {
		p.limiter = limiter
	}
}

// New constructs a Pipeline around the probe fetcher.
func New(probe tracker.Fetcher, cfg Config, logger *zap.Logger, opts ...Option) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		probe:  probe,
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchText retrieves url and returns its visible text. Non-2xx statuses,
// transport failures and timeouts are reported as *tracker.FetchError.
func (p *Pipeline) FetchText(ctx context.Context, url string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if p.limiter != nil {
		if err := p.limiter.Wait(fetchCtx, url); err != nil {
			metrics.ObserveFetch(url, "rate_limited", 0)
			return "", p.wrapError(url, err)
		}
	}

	request := tracker.FetchRequest{URL: url, Headers: p.cfg.Headers}
	resp, err := p.probe.Fetch(fetchCtx, request)
	if err != nil {
		metrics.ObserveFetch(url, "error", 0)
		return "", p.wrapError(url, err)
	}

	resp = p.maybePromote(fetchCtx, request, resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveFetch(url, "http_error", len(resp.Body))
		p.logger.Debug("fetch returned non-success status",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return "", &tracker.FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	text, err := extract.VisibleText(resp.Body)
	if err != nil {
		metrics.ObserveFetch(url, "parse_error", len(resp.Body))
		return "", &tracker.FetchError{URL: url, Err: err}
	}
	metrics.ObserveFetch(url, "success", len(resp.Body))
	p.logger.Debug("page fetched",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Bool("headless", resp.UsedHeadless),
		zap.Duration("duration", resp.Duration),
	)
	return text, nil
}

func (p *Pipeline) maybePromote(
	ctx context.Context,
	request tracker.FetchRequest,
	probe tracker.FetchResponse,
) tracker.FetchResponse {
	if p.headless == nil || p.detector == nil || !p.detector.ShouldPromote(probe) {
		return probe
	}
	rendered, err := p.headless.Fetch(ctx, request)
	if err != nil {
		metrics.ObserveHeadlessPromotion("failed")
		p.logger.Warn("headless promotion failed", zap.String("url", request.URL), zap.Error(err))
		return probe
	}
	metrics.ObserveHeadlessPromotion("applied")
	p.logger.Info("headless promotion applied", zap.String("url", request.URL))
	rendered.UsedHeadless = true
	return rendered
}

func (p *Pipeline) wrapError(url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out after %s: %w", p.cfg.Timeout, err)
	}
	return &tracker.FetchError{URL: url, Err: err}
}
