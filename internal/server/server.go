// Package server wires the HTTP API: job submission, result polling, the
// function registry, the receipt stream, health and metrics.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Praises003/aether/internal/config"
	"github.com/Praises003/aether/internal/database"
	"github.com/Praises003/aether/internal/realtime"
	"github.com/Praises003/aether/internal/registry"
	"github.com/Praises003/aether/internal/server/handlers"
)

type Server struct {
	cfg        *config.Config
	db         *database.DB
	jobs       handlers.JobService
	functions  registry.Store
	broker     *realtime.Broker
	limiter    *RateLimiter
	checks     map[string]handlers.Check
	version    string
	httpServer *http.Server
	router     *Router
}

type Option func(*Server)

// WithDatabase reports the database in /health.
func WithDatabase(db *database.DB) Option {
	return func(s *Server) {
		s.db = db
	}
}

// WithBroker enables the receipt stream.
func WithBroker(b *realtime.Broker) Option {
	return func(s *Server) {
		s.broker = b
	}
}

// WithHealthCheck adds a named component to /health.
func WithHealthCheck(name string, check handlers.Check) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

func New(cfg *config.Config, jobService handlers.JobService, functions registry.Store, opts ...Option) *Server {
	srv := &Server{
		cfg:       cfg,
		jobs:      jobService,
		functions: functions,
		checks:    make(map[string]handlers.Check),
		version:   "dev",
	}

	for _, opt := range opts {
		opt(srv)
	}

	if rule := cfg.Server.SubmitRateLimit; rule.Max > 0 && rule.Window > 0 {
		srv.limiter = NewRateLimiter(rule)
	}

	srv.router = NewRouter(srv)
	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return srv
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	log.Info().
		Str("addr", s.cfg.Server.Address()).
		Msg("Starting server")

	if s.broker != nil {
		s.broker.Start(ctx)
		log.Info().Msg("Receipt stream started")
	}

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server")

	if s.broker != nil {
		s.broker.Stop()
		log.Info().Msg("Receipt stream stopped")
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}

	return s.httpServer.Shutdown(ctx)
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Config() *config.Config {
	return s.cfg
}

func (s *Server) Broker() *realtime.Broker {
	return s.broker
}
