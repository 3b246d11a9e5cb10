// Package http implements the agent's own health and metrics endpoints,
// adapted from the donor's internal/http server: the same /healthz,
// /readyz, /metrics trio, with readiness checks against this agent's
// journal and event bus in place of the donor's Postgres pool and Kafka
// consumers.
package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// JournalChecker abstracts the journal's readiness check for testability.
type JournalChecker interface {
	Ready(ctx context.Context) error
}

// EventBusChecker abstracts the event bus's readiness check for testability.
type EventBusChecker interface {
	Ready(ctx context.Context) error
}

type Server struct {
	srv     *http.Server
	journal JournalChecker
	bus     EventBusChecker
	logger  *zap.Logger
}

// NewServer builds the health/metrics server. journal and bus may be
// disabled instances (their Ready always returns nil) or nil outright;
// either is reported as healthy since an unconfigured sink has nothing
// to wait on.
func NewServer(addr string, journal JournalChecker, bus EventBusChecker, logger *zap.Logger) *Server {
	s := &Server{journal: journal, bus: bus, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	allOK := true

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.journal != nil {
		if err := s.journal.Ready(ctx); err != nil {
			checks["journal"] = "error"
			allOK = false
		} else {
			checks["journal"] = "ok"
		}
	}
	if s.bus != nil {
		if err := s.bus.Ready(ctx); err != nil {
			checks["event_bus"] = "error"
			allOK = false
		} else {
			checks["event_bus"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	httpStatus := http.StatusOK
	if !allOK {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}
