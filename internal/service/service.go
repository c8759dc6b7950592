// Package service exposes the query pipeline over HTTP.
package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/sibylhq/sibyl/internal/agents"
	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/generation"
	"github.com/sibylhq/sibyl/internal/ingest"
	"github.com/sibylhq/sibyl/internal/retrieval"
	"github.com/sibylhq/sibyl/internal/vector"
)

// Server timeouts.
const (
	readHeaderTimeout = 10 * time.Second
	shutdownGrace     = 10 * time.Second
)

// Service is the HTTP front of the pipeline.
type Service struct {
	version string
	cfg     *config.Config

	orchestrator *agents.Orchestrator
	ingester     *ingest.Ingester
	engine       *retrieval.Engine
	settings     *generation.Settings
	index        vector.Index

	router    *chi.Mux
	server    *http.Server
	startTime time.Time
}

// Deps bundles the wired pipeline components the service serves.
type Deps struct {
	Orchestrator *agents.Orchestrator
	Ingester     *ingest.Ingester
	Engine       *retrieval.Engine
	Settings     *generation.Settings
	Index        vector.Index
}

// NewService assembles the HTTP service around a wired pipeline.
func NewService(version string, cfg *config.Config, deps Deps) *Service {
	s := &Service{
		version:      version,
		cfg:          cfg,
		orchestrator: deps.Orchestrator,
		ingester:     deps.Ingester,
		engine:       deps.Engine,
		settings:     deps.Settings,
		index:        deps.Index,
		router:       chi.NewRouter(),
		startTime:    time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Service) setupMiddleware() {
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(RequestID)
	s.router.Use(RequestLogger)
	s.router.Use(chimiddleware.Recoverer)

	maxBody := s.cfg.HTTP.MaxBodySize
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	s.router.Use(MaxBodySize(maxBody))
}

func (s *Service) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/ingest", s.handleIngest)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
		r.Get("/agents", s.handleAgents)
		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
		r.Get("/status", s.handleStatus)
	})
}

// Handler exposes the assembled router, mainly for tests.
func (s *Service) Handler() http.Handler { return s.router }

// Start runs the HTTP server until it fails or Shutdown is called.
func (s *Service) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.HTTP.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Info().Str("addr", addr).Str("version", s.version).Msg("HTTP service listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()

	log.Info().Msg("Shutting down HTTP service")
	return s.server.Shutdown(ctx)
}
