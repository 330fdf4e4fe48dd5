package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/config"
	"github.com/hyperjump/proozl/internal/mcp"
	"github.com/hyperjump/proozl/internal/resultcache"
	"github.com/hyperjump/proozl/internal/server"
	"github.com/hyperjump/proozl/internal/stream"
	"github.com/hyperjump/proozl/pkg/utils"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, change stream and refresh scheduler",
		Long: `Start the HTTP API.

Alongside the API, serve drains the change stream (recomputing analyses when a
cached search is inserted or modified) and runs the periodic refresh sweep.

Example:
  proozl serve --config ./config.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	var wg sync.WaitGroup
	startChangeStream(ctx, &wg, cfg, components, logger)

	sched := resultcache.NewScheduler(components.Results, components.Store, cfg.Refresh.Interval,
		components.Sweep, cfg.Refresh.ResetWindowOrDefault())
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sched.Run(ctx)
	}()

	srv := server.NewServer(components.Coordinator, sched, components.Store, &cfg.Server,
		utils.Component(logger, "server"))
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	logger.Info("Shutting down...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
	sched.Wait()
	wg.Wait()
	return err
}

// startChangeStream runs the outbox drain loop, woken by writes to the database files.
// Without a working watcher the stream still polls.
func startChangeStream(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, components *Components, logger *zap.Logger) {
	st := stream.New(components.Store, components.Store, components.Coordinator, stream.Options{
		PollInterval: cfg.Stream.PollInterval,
		BatchSize:    cfg.Stream.BatchSize,
	}, utils.Component(logger, "stream"))

	watcher := stream.NewDBWatcher(components.Store.Path(), st.Notify,
		stream.WithLogger(utils.Component(logger, "watcher")),
		stream.WithDebounce(cfg.Stream.Debounce),
	)
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("database watcher unavailable, polling only", zap.Error(err))
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer watcher.Stop()
		_ = st.Run(ctx)
	}()
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the search and analysis tools over MCP stdio",
		Long: `Start the MCP server for paper search.

The server communicates via stdio and provides two tools:
  - search_papers: Search arXiv through the cache
  - get_analysis: Get the word rankings of a cached search

The change stream runs alongside, so analyses appear shortly after a search is cached.

Example:
  proozl mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx, cancel := context.WithCancel(contextOrBackground(cmd.Context()))
			var wg sync.WaitGroup
			startChangeStream(ctx, &wg, cfg, components, logger)
			defer func() {
				cancel()
				wg.Wait()
			}()

			s := mcp.NewServer(mcp.Config{Name: cfg.MCP.Name, Version: cfg.MCP.Version},
				components.Coordinator, utils.Component(logger, "mcp"))
			return s.ServeStdio()
		},
	}
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
