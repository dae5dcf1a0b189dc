// Package server exposes health, tick status and Prometheus metrics over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"plexsleep/internal/idle"
	"plexsleep/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// StatusSource provides the latest tick report
type StatusSource interface {
	Last() (idle.Report, bool)
}

// Server is the status HTTP server
type Server struct {
	addr     string
	status   StatusSource
	gatherer prometheus.Gatherer
	version  string
	logger   *logging.Logger
}

// New creates a status server listening on addr
func New(addr string, status StatusSource, gatherer prometheus.Gatherer, version string, logger *logging.Logger) *Server {
	return &Server{
		addr:     addr,
		status:   status,
		gatherer: gatherer,
		version:  version,
		logger:   logger,
	}
}

// Handler returns the chi router with all routes mounted
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": s.version,
		})
	})
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.status.Last()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "starting",
		})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Report:           report,
		RemainingSeconds: report.RemainingSeconds(),
	})
}

type statusResponse struct {
	idle.Report
	RemainingSeconds int `json:"remaining_seconds"`
}

// Serve listens until ctx is cancelled, then shuts down gracefully
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("server.started", "Status server listening", map[string]interface{}{
		"addr": ln.Addr().String(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("server.shutdown.failed", "Status server shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.logger.Info("server.stopped", "Status server stopped", nil)
	return ctx.Err()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("server.request", "HTTP request served", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"remote":      r.RemoteAddr,
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
