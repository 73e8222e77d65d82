// Package httpapi serves the local observability endpoints for the headless
// watcher: liveness, stream status, and Prometheus metrics.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arenalive/arenalive/internal/config"
	"github.com/arenalive/arenalive/internal/observability"
	"github.com/arenalive/arenalive/internal/stream"
)

// StatusSource is the stream coordinator surface the API reads from.
type StatusSource interface {
	SessionID() string
	Connected() bool
	Ended() bool
	Snapshot() *stream.Snapshot
	PipelineState() stream.PipelineState
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	SessionID     string           `json:"session_id"`
	Connected     bool             `json:"connected"`
	Ended         bool             `json:"ended"`
	PipelineState string           `json:"pipeline_state"`
	Snapshot      *stream.Snapshot `json:"snapshot,omitempty"`
}

// NewRouter builds the API router.
func NewRouter(src StatusSource, metrics *observability.Metrics) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			SessionID:     src.SessionID(),
			Connected:     src.Connected(),
			Ended:         src.Ended(),
			PipelineState: src.PipelineState().String(),
			Snapshot:      src.Snapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
		metrics.Registry(),
		promhttp.HandlerOpts{},
	))

	return r
}

// Server wraps the HTTP listener with graceful shutdown.
type Server struct {
	srv      *http.Server
	log      *slog.Logger
	shutdown time.Duration
}

// NewServer builds a server for the given handler.
func NewServer(cfg config.ServerConfig, handler http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		log:      log,
		shutdown: cfg.ShutdownTimeout,
	}
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", slog.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
