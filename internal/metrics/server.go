package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cricv/devserve/internal/model"
)

// Status is the snapshot served on the /status endpoint.
type Status struct {
	// RunID identifies the current run.
	RunID string `json:"runId"`

	// Profile is the active launch profile.
	Profile string `json:"profile"`

	// Addr is the address the supervised server listens on.
	Addr string `json:"addr"`

	// StartedAt is when supervision began.
	StartedAt time.Time `json:"startedAt"`

	// Uptime is the elapsed supervision time.
	Uptime string `json:"uptime"`
}

// StatusFunc produces the current status snapshot on demand.
type StatusFunc func() Status

// Server is the metrics sidecar. It serves Prometheus metrics on
// /metrics, a liveness check on /healthz, and a JSON snapshot on /status.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer creates the sidecar server. The statusFn may be nil, in which
// case /status serves an empty snapshot.
func NewServer(addr string, statusFn StatusFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok")) //nolint:errcheck // Liveness response is best effort
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		var status Status
		if statusFn != nil {
			status = statusFn()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			logger.Debug("failed to encode status", "error", err)
		}
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving in the background. Serve errors other than
// graceful shutdown are logged, not returned: the sidecar failing must
// never take the supervised server down with it.
func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics sidecar listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics sidecar failed", "error", err)
		}
	}()
}

// Shutdown stops the sidecar gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Observe updates the Prometheus collectors from a lifecycle event.
// It satisfies the supervisor's observer contract.
func Observe(ev *model.RunEvent) {
	switch ev.Type {
	case model.EventStart:
		StartsTotal.Inc()
		Running.Set(1)
	case model.EventReady:
		if d, err := time.ParseDuration(ev.Detail); err == nil {
			ReadyDuration.Observe(d.Seconds())
		}
	case model.EventReload:
		RestartsTotal.WithLabelValues("reload").Inc()
		WatchedEventsTotal.Inc()
		Running.Set(0)
	case model.EventCrash:
		RestartsTotal.WithLabelValues("crash").Inc()
		Running.Set(0)
	case model.EventStop:
		Running.Set(0)
	}
}
