// Package http serves the operational endpoints of a batch run: liveness,
// readiness, and the Prometheus scrape target. The listener only exists
// while a pipeline command is running, so every payload names the run
// being probed.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// ReadinessChecker reports whether the run has produced a consistent
// feature store state. The pipeline implements it: readiness flips once a
// run completes.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes /healthz, /readyz, and /metrics while a batch run is in
// flight.
type Server struct {
	mode    string
	started time.Time
	checker ReadinessChecker
	logger  *slog.Logger
	inner   *http.Server
}

// NewServer creates the run's metrics listener. mode names the batch being
// executed and is echoed in the health payloads.
func NewServer(addr, mode string, checker ReadinessChecker, logger *slog.Logger) *Server {
	s := &Server{
		mode:    mode,
		started: domain.Now(),
		checker: checker,
		logger:  logger,
	}
	s.inner = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("metrics listener starting", "addr", s.inner.Addr, "mode", s.mode)
	return s.inner.ListenAndServe()
}

// Shutdown drains in-flight scrapes within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

// ServeHTTP delegates to the route table, for tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.inner.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "crossflow",
		"mode":    s.mode,
		"uptime":  domain.Now().Sub(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.checker.CheckReadiness(ctx); err != nil {
		s.respond(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"mode":   s.mode,
			"error":  err.Error(),
		})
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": "ready", "mode": s.mode})
}

func (s *Server) respond(w http.ResponseWriter, status int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("health response write failed", "error", err)
	}
}
