// Package api serves validation runs over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/speclint/internal/config"
	"github.com/dgallion1/speclint/internal/pipeline"
	"github.com/dgallion1/speclint/internal/schema"
)

// Server is the HTTP API server for speclint.
type Server struct {
	router chi.Router
	reg    *schema.Registry
	runs   *pipeline.RunStore
	stats  *pipeline.RunStats
	links  pipeline.LinkChecker
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server. links may be nil.
func NewServer(reg *schema.Registry, links pipeline.LinkChecker, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		reg:   reg,
		runs:  pipeline.NewRunStore(cfg.RunTTL),
		stats: pipeline.NewRunStats(time.Hour),
		links: links,
		log:   log,
		cfg:   cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// StartCleanup evicts expired runs until ctx is done.
func (s *Server) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runs.Cleanup()
			}
		}
	}()
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints when an API key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Get("/api/schemas", s.handleListSchemas)
		r.Post("/api/validate", s.handleValidate)
		r.Get("/api/runs/{runID}", s.handleGetRun)
		r.Get("/api/stats/runs", s.handleRunStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
