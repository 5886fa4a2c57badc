// Command tracker hosts the keyword tracking service.
//
// Architecture overview:
//   - HTTP API: internal/api.Server accepts one-shot checks (POST /track), reports task status
//     (GET /status/{task_id}) and manages recurring checks under /track/schedule.
//   - Registry & queue: accepted checks get a pending task record and flow through a bounded in-memory queue
//     sized by workers.queue_depth. A full queue answers 503 under the reject policy, or after
//     workers.enqueue_timeout_ms under block.
//   - Workers: workers.concurrency goroutines fetch each page with the Colly probe, optionally promote to a
//     headless Chromedp render, extract visible text, count keywords and notify once when anything matched.
//   - Scheduler: one ticker per recurring job submits a fresh check every interval.
//   - Notifications: notify.driver selects the zap log (default), SMTP or Pub/Sub driver.
//
// Quick checklist:
//   - Configure via YAML (tracker serve --config config.yaml) or env vars such as TRACKER_SERVER_PORT,
//     TRACKER_WORKERS_CONCURRENCY, TRACKER_NOTIFY_DRIVER and TRACKER_SMTP_HOST.
//   - Metrics are served on /metrics; SIGINT or SIGTERM drains the HTTP server and stops the workers.
package main
