// Package server exposes the inspection API: health, last run status,
// persisted summaries and transactions, a live summary stream and a manual
// run trigger.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/booksampler/internal/server/handler"
	"github.com/alanyoungcy/booksampler/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr   string
	APIKey string // empty disables authentication
}

// Handlers aggregates the route handlers. Runs, Trigger, Stream and Metrics
// may be nil.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Runs    *handler.RunsHandler
	Trigger *handler.TriggerHandler
	Stream  *handler.StreamHandler
	Metrics http.Handler
}

// Server is the inspection HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers the routes and wraps them in auth and request logging.
// Health and metrics stay unauthenticated.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	api := http.NewServeMux()
	api.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	if handlers.Runs != nil {
		api.HandleFunc("GET /api/runs/{id}/summaries", handlers.Runs.ListSummaries)
		api.HandleFunc("GET /api/transactions/{id}", handlers.Runs.ListTransactions)
	}
	if handlers.Trigger != nil {
		api.HandleFunc("POST /api/runs/trigger", handlers.Trigger.TriggerRun)
	}
	if handlers.Stream != nil {
		api.HandleFunc("GET /api/summaries/stream", handlers.Stream.StreamSummaries)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	if handlers.Metrics != nil {
		mux.Handle("GET /metrics", handlers.Metrics)
	}
	mux.Handle("/api/", middleware.Auth(cfg.APIKey)(api))

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           middleware.Logging(logger)(mux),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "server listening", slog.String("addr", s.httpServer.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen: %w", err)
	}
}
