// Package server provides the HTTP API for proozl.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/config"
	"github.com/hyperjump/proozl/internal/coordinator"
	"github.com/hyperjump/proozl/internal/resultcache"
)

// Refresher starts background sweeps and reports on them.
type Refresher interface {
	Trigger(ctx context.Context, opts resultcache.SweepOptions) bool
	Status() resultcache.SchedulerStatus
}

// Stats reports store sizes for the status endpoint.
type Stats interface {
	CountResults(ctx context.Context) (int64, error)
	CountAnalyses(ctx context.Context) (int64, error)
}

type diskUser interface {
	DiskUsage() (int64, error)
}

// Server is the HTTP server for the proozl API.
type Server struct {
	coord     *coordinator.Coordinator
	refresher Refresher
	stats     Stats
	config    *config.ServerConfig
	logger    *zap.Logger
	router    chi.Router
	server    *http.Server

	// ctx outlives single requests; triggered sweeps run under it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server with the given dependencies. refresher may be nil, in
// which case the refresh endpoint answers 501.
func NewServer(
	coord *coordinator.Coordinator,
	refresher Refresher,
	stats Stats,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		coord:     coord,
		refresher: refresher,
		stats:     stats,
		config:    cfg,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/invoke", s.handleInvoke)
	r.Get("/api/v1/results", s.handleResults)
	r.Get("/api/v1/analysis", s.handleAnalysis)
	r.Post("/api/v1/refresh", s.handleRefresh)
	r.Get("/api/v1/refresh", s.handleRefreshStatus)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and cancels any sweep it started.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
