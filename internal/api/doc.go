// Package api hosts the HTTP server, middleware, and REST handlers. Routes:
//   - POST /track submits a one-shot check and answers 202 with a task_id.
//   - GET /status/{task_id} reports pending, in progress, completed or failed.
//   - POST /track/schedule registers a recurring check; GET lists jobs and
//     GET or DELETE /track/schedule/{job_name} addresses one.
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
package api
