// Package metrics exposes Prometheus collectors for the tracker service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_tasks_total",
			Help: "Total number of tracking tasks, labeled by state reached.",
		},
		[]string{"status"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_notifications_total",
			Help: "Total number of operator notifications, labeled by result.",
		},
		[]string{"result"},
	)

	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_fetches_total",
			Help: "Total number of page fetches, labeled by site and outcome.",
		},
		[]string{"site", "outcome"},
	)

	fetchBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_fetch_bytes_total",
			Help: "Total number of bytes fetched, labeled by site.",
		},
		[]string{"site"},
	)

	headlessPromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_headless_promotions_total",
			Help: "Total number of headless render attempts, labeled by result.",
		},
		[]string{"result"},
	)

	schedulerFiringsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_scheduler_firings_total",
			Help: "Total number of scheduled job firings, labeled by submission result.",
		},
		[]string{"result"},
	)

	scheduledJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_scheduled_jobs",
			Help: "Number of currently registered recurring jobs.",
		},
	)

	queueRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_queue_rejections_total",
			Help: "Total number of submissions rejected because the task queue was full.",
		},
	)

	tasksEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_tasks_evicted_total",
			Help: "Total number of terminal task records evicted after retention.",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_active_workers",
			Help: "Number of workers currently executing a task.",
		},
	)

	rateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SanitizeSite extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveTask increments the task counter for the given state.
func ObserveTask(status string) {
	tasksTotal.WithLabelValues(status).Inc()
}

// ObserveNotification records a notification attempt ("sent" or "failed").
func ObserveNotification(result string) {
	notificationsTotal.WithLabelValues(result).Inc()
}

// ObserveFetch records a page fetch and the bytes it returned.
func ObserveFetch(site, outcome string, bytesFetched int) {
	sanitized := SanitizeSite(site)
	fetchesTotal.WithLabelValues(sanitized, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitized).Add(float64(bytesFetched))
	}
}

// ObserveHeadlessPromotion records a headless render attempt.
func ObserveHeadlessPromotion(result string) {
	headlessPromotionsTotal.WithLabelValues(result).Inc()
}

// ObserveSchedulerFiring records one timer firing of a recurring job.
func ObserveSchedulerFiring(result string) {
	schedulerFiringsTotal.WithLabelValues(result).Inc()
}

// SetScheduledJobs reports the number of registered recurring jobs.
func SetScheduledJobs(n int) {
	scheduledJobs.Set(float64(n))
}

// ObserveQueueRejection counts a submission turned away by backpressure.
func ObserveQueueRejection() {
	queueRejectionsTotal.Inc()
}

// ObserveEvictions counts task records dropped by the retention sweep.
func ObserveEvictions(n int) {
	if n > 0 {
		tasksEvictedTotal.Add(float64(n))
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
