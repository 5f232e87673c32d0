// Package api exposes the HTTP interface for the crawl service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/crawl"
	"github.com/seedline/crawld/internal/scheduler"
)

// JobService is the scheduler surface the API depends on.
type JobService interface {
	StartJob(urls []string, priority int) (string, error)
	PauseJob(jobID string) error
	ResumeJob(jobID string) error
	CancelJob(jobID string) error
	GetJobStatus(jobID string) (crawl.Job, error)
}

// Config tunes request handling.
type Config struct {
	DefaultPriority int
	MaxURLsPerJob   int
}

// Server wires HTTP handlers to the scheduler.
type Server struct {
	router chi.Router
	jobs   JobService
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(jobs JobService, cfg Config, logger *zap.Logger) *Server {
	if cfg.MaxURLsPerJob <= 0 {
		cfg.MaxURLsPerJob = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{jobs: jobs, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(recoverMiddleware(logger))
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.startJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJobStatus)
				r.Post("/pause", s.pauseJob)
				r.Post("/resume", s.resumeJob)
				r.Post("/cancel", s.cancelJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startJobRequest struct {
	URLs     []string `json:"urls"`
	Priority *int     `json:"priority"`
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls required")
		return
	}
	if len(req.URLs) > s.cfg.MaxURLsPerJob {
		writeError(w, http.StatusBadRequest, "too many urls")
		return
	}
	priority := s.cfg.DefaultPriority
	if req.Priority != nil {
		priority = *req.Priority
	}

	jobID, err := s.jobs.StartJob(req.URLs, priority)
	if err != nil {
		s.logger.Warn("start job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.jobs.GetJobStatus(jobID)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) pauseJob(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.jobs.PauseJob, "paused")
}

func (s *Server) resumeJob(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.jobs.ResumeJob, "running")
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.jobs.CancelJob, "cancelled")
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, op func(string) error, state string) {
	jobID := chi.URLParam(r, "job_id")
	if err := op(jobID); err != nil {
		writeLifecycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": state})
}

func writeLifecycleError(w http.ResponseWriter, err error) {
	if errors.Is(err, scheduler.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	// Invalid state transition (pausing a completed job and the like).
	writeError(w, http.StatusConflict, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
