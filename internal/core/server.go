// Package core provides the HTTP chassis for the WPRE service. It builds a
// chi router that serves both the standalone HTTP listener and the AWS Lambda
// proxy integration, and applies the cross-cutting concerns (recovery,
// request IDs, logging, CORS, metrics) before requests reach handlers.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"wpre/internal/config"
)

// MetricsCollector records API telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds the router and the dependencies shared by every route.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// HealthProbes are run by GET /health.
	HealthProbes []HealthProbe

	// RouteRegistrars mount domain handlers on the root router. Handlers
	// live in their own package, so main wires them here.
	RouteRegistrars []func(chi.Router)

	// Closers run in order on Shutdown.
	Closers []func(ctx context.Context) error

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty router.
// Call MountRoutes after registering handlers.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the chi.Mux for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases background resources (dispatcher, store). Every closer
// runs even if an earlier one fails.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	var errs []error
	for _, closer := range s.Closers {
		if err := closer(ctx); err != nil {
			s.Logger.Error("error releasing server resource", "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("releasing server resources: %w", err)
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
