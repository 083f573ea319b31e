// Package metrics serves the Prometheus scrape endpoint and the health report
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tradecore/internal/core"
	"tradecore/internal/infrastructure/health"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Server handles Prometheus metrics export and the /healthz probe
type Server struct {
	port   int
	health *health.Manager
	logger core.ILogger
	srv    *http.Server
}

// NewServer creates a new metrics server. A nil health manager disables /healthz.
func NewServer(port int, hm *health.Manager, logger core.ILogger) *Server {
	return &Server{
		port:   port,
		health: hm,
		logger: logger.WithField("component", "metrics_server"),
	}
}

// Handler returns the endpoint mux
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if s.health != nil {
		mux.HandleFunc("/healthz", s.handleHealth)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	report := s.health.Report()
	w.Header().Set("Content-Type", "application/json")
	if !report.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.logger.Warn("Failed to write health report", "error", err)
	}
}

// Start starts the metrics HTTP server
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("Starting Prometheus metrics server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server failed", "error", err)
		}
	}()
}

// Stop gracefully stops the metrics server
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.logger.Info("Stopping metrics server")
	return s.srv.Shutdown(ctx)
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Stop(stopCtx)
}
