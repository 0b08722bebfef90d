// Package core provides the API chassis for the AgroIA advisor. It builds a
// chi router that serves both standard HTTP (local and container deploys) and
// AWS Lambda proxy events, and it owns the cross-cutting concerns (panic
// recovery, request IDs, logging, CORS and error envelopes) that run before a
// request reaches a domain handler.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"agroia/internal/config"
)

// Server holds the dependencies shared by every route.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	HealthProbes []HealthProbe

	// V1RouteRegistrars are mounted under /v1 by MountRoutes. The entry point
	// populates them so core never imports handler packages.
	V1RouteRegistrars []func(chi.Router)

	// Closers run in reverse order on Shutdown (database pools, SDK clients).
	Closers []func()

	router *chi.Mux
}

// NewServer creates a server with an empty router. Call MountRoutes after
// registering handlers.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if logger == nil {
		return nil, errors.New("logger must not be nil")
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

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases registered resources. It honours ctx cancellation between
// closers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	for i := len(s.Closers) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("shutdown interrupted: %w", err)
		}
		s.Closers[i]()
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
