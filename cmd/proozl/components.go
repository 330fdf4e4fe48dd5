package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/analysis"
	"github.com/hyperjump/proozl/internal/config"
	"github.com/hyperjump/proozl/internal/coordinator"
	"github.com/hyperjump/proozl/internal/fetch"
	"github.com/hyperjump/proozl/internal/lexical"
	"github.com/hyperjump/proozl/internal/ranking"
	"github.com/hyperjump/proozl/internal/resultcache"
	"github.com/hyperjump/proozl/internal/storage"
	"github.com/hyperjump/proozl/pkg/utils"
)

// Components holds the wired services shared by the commands.
type Components struct {
	Store       *storage.SQLiteStore
	Results     *resultcache.Cache
	Analyses    *analysis.Cache
	Coordinator *coordinator.Coordinator
	Sweep       resultcache.SweepOptions
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	representative, err := ranking.ParseRepresentativePolicy(cfg.Analysis.Representative)
	if err != nil {
		return nil, err
	}
	stale, err := analysis.ParseStalePolicy(cfg.Analysis.StalePolicy)
	if err != nil {
		return nil, err
	}

	bundle, err := lexical.LoadBundle(lexical.BundleOptions{ExtraStopwords: cfg.Analysis.ExtraStopwords})
	if err != nil {
		return nil, fmt.Errorf("failed to load lexical resources: %w", err)
	}
	engine := ranking.NewEngine(bundle, ranking.Options{
		TopN:           cfg.Analysis.TopN,
		Representative: representative,
	})

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client := fetch.NewArxivClient(
		fetch.WithBaseURL(cfg.Arxiv.BaseURL),
		fetch.WithTimeout(cfg.Arxiv.Timeout),
		fetch.WithLogger(utils.Component(logger, "arxiv")),
	)
	results := resultcache.New(store, client, resultcache.Options{
		MaxResults: cfg.Arxiv.MaxResults,
		SortBy:     fetch.SortOrder(cfg.Arxiv.SortBy),
	}, utils.Component(logger, "results"))
	analyses := analysis.New(store, store, engine, stale, utils.Component(logger, "analysis"))

	logger.Debug("components initialized",
		zap.String("representative", string(representative)),
		zap.String("stale_policy", string(stale)),
		zap.Int("top_n", cfg.Analysis.TopN))

	return &Components{
		Store:       store,
		Results:     results,
		Analyses:    analyses,
		Coordinator: coordinator.New(results, analyses, utils.Component(logger, "coordinator")),
		Sweep: resultcache.SweepOptions{
			PageSize:   cfg.Refresh.PageSize,
			MinSpacing: cfg.Refresh.MinSpacing,
		},
	}, nil
}
