// Package core provides the HTTP chassis for the daypass API.
// It builds a chi router usable both by net/http (local) and a Lambda proxy
// adapter, and applies recovery, logging, metrics and CORS before requests
// reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"daypass/internal/config"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server holds the dependencies shared by every route.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. The entry point
	// fills this in so core never imports handler packages.
	V1RouteRegistrars []func(chi.Router)

	// Closer releases pooled resources on Shutdown. Optional.
	Closer func()

	router *chi.Mux
}

// NewServer validates the critical dependencies and prepares an empty router.
// Callers mount routes with MountRoutes after filling in the optional fields.
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

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources. It is safe to call without a Closer.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")
	if s.Closer != nil {
		s.Closer()
	}
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
