// Package api exposes the HTTP interface for the tracker service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/keyword-tracker/internal/metrics"
	"github.com/JakeFAU/keyword-tracker/internal/service"
	"github.com/JakeFAU/keyword-tracker/internal/tracker"
)

const (
	defaultIntervalMinutes = 60
	defaultRequestTimeout  = 30 * time.Second
	maxRequestBytes        = 1 << 20
)

// TrackingService is the core the handlers call into.
type TrackingService interface {
	SubmitTracking(ctx context.Context, req service.TrackingRequest) (tracker.TaskID, error)
	GetTaskStatus(ctx context.Context, id tracker.TaskID) (service.TaskStatus, error)
	ScheduleTracking(ctx context.Context, req service.ScheduleRequest) (string, error)
	Unschedule(name string) error
	Schedules() []tracker.ScheduledJob
	Schedule(name string) (tracker.ScheduledJob, error)
}

// Config controls the HTTP layer.
type Config struct {
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the tracking service.
type Server struct {
	router  chi.Router
	service TrackingService
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(svc TrackingService, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	s := &Server{
		service: svc,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/track", s.track)
	r.Get("/status/{task_id}", s.taskStatus)
	r.Route("/track/schedule", func(r chi.Router) {
		r.Post("/", s.schedule)
		r.Get("/", s.listSchedules)
		r.Get("/{job_name}", s.getSchedule)
		r.Delete("/{job_name}", s.deleteSchedule)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// All dependencies are in-process.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type trackRequest struct {
	URL      string   `json:"url"`
	Keywords []string `json:"keywords"`
}

type scheduleRequest struct {
	URL             string   `json:"url"`
	Keywords        []string `json:"keywords"`
	IntervalMinutes *int     `json:"interval_minutes"`
	JobName         string   `json:"job_name"`
}

type scheduleView struct {
	JobName         string    `json:"job_name"`
	URL             string    `json:"url"`
	Keywords        []string  `json:"keywords"`
	IntervalMinutes float64   `json:"interval_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s *Server) track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.service.SubmitTracking(r.Context(), service.TrackingRequest{URL: req.URL, Keywords: req.Keywords})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"task_id": string(id)})
}

func (s *Server) taskStatus(w http.ResponseWriter, r *http.Request) {
	id := tracker.TaskID(chi.URLParam(r, "task_id"))
	status, err := s.service.GetTaskStatus(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !s.decode(w, r, &req) {
		return
	}
	minutes := defaultIntervalMinutes
	if req.IntervalMinutes != nil {
		minutes = *req.IntervalMinutes
	}
	interval, err := tracker.IntervalFromMinutes(minutes)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	name, err := s.service.ScheduleTracking(r.Context(), service.ScheduleRequest{
		URL:      req.URL,
		Keywords: req.Keywords,
		Interval: interval,
		JobName:  req.JobName,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"message":  fmt.Sprintf("Scheduled scraping every %d minutes.", minutes),
		"job_name": name,
	})
}

func (s *Server) listSchedules(w http.ResponseWriter, _ *http.Request) {
	jobs := s.service.Schedules()
	views := make([]scheduleView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, toScheduleView(job))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Schedule(chi.URLParam(r, "job_name"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toScheduleView(job))
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Unschedule(chi.URLParam(r, "job_name")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toScheduleView(job tracker.ScheduledJob) scheduleView {
	return scheduleView{
		JobName:         job.Name,
		URL:             job.Spec.URL,
		Keywords:        job.Spec.Keywords,
		IntervalMinutes: job.Spec.Interval.Minutes(),
		CreatedAt:       job.CreatedAt,
	}
}

// decode reads a JSON body of at most maxRequestBytes, answering 413 when it
// is larger and 400 in the validation error shape on any other failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes))
			return false
		}
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": map[string][]string{"_schema": {"Invalid input type."}},
		})
		return false
	}
	return true
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var verr *tracker.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, map[string]any{"errors": verr.Fields})
	case errors.Is(err, tracker.ErrTaskNotFound):
		s.writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, tracker.ErrJobNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, tracker.ErrQueueFull):
		s.writeError(w, http.StatusServiceUnavailable, "task queue is full, retry later")
	case errors.Is(err, tracker.ErrSchedulerClosed):
		s.writeError(w, http.StatusServiceUnavailable, "scheduler is shutting down")
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
