// Package resultcache serves search pages from the store, fetching on miss and keeping
// hit counters, and refreshes every cached page in a resumable sweep.
package resultcache

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/fetch"
	"github.com/hyperjump/proozl/internal/models"
	"github.com/hyperjump/proozl/internal/storage"
)

// Options configures a Cache.
type Options struct {
	MaxResults int
	SortBy     fetch.SortOrder
}

// Cache owns the ResultRecord lifecycle.
type Cache struct {
	store   storage.ResultStore
	fetcher fetch.Fetcher
	opts    Options
	logger  *zap.Logger
}

// New creates a Cache. A nil logger disables logging.
func New(store storage.ResultStore, fetcher fetch.Fetcher, opts Options, logger *zap.Logger) *Cache {
	if opts.MaxResults <= 0 {
		opts.MaxResults = fetch.DefaultMaxResults
	}
	if opts.SortBy == "" {
		opts.SortBy = fetch.SortLastUpdated
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{store: store, fetcher: fetcher, opts: opts, logger: logger}
}

// GetOrFetch returns the cached page for key, counting the hit. On a miss the page is
// fetched upstream and stored with both counters at 1. An empty upstream answer is
// returned as an unpersisted empty record. maxResults <= 0 uses the configured default.
func (c *Cache) GetOrFetch(ctx context.Context, key models.CacheKey, maxResults int) (*models.ResultRecord, error) {
	rec, err := c.store.GetResult(ctx, key)
	switch {
	case err == nil:
		window, total, err := c.store.IncrementHits(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count hit: %w", err)
		}
		rec.HitsWindow, rec.HitsTotal = window, total
		c.logger.Debug("result cache hit",
			zap.String("query", key.Query),
			zap.Int("page_start", key.PageStart),
			zap.Int("hits_total", total))
		return rec, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to look up result: %w", err)
	}

	if maxResults <= 0 {
		maxResults = c.opts.MaxResults
	}
	docs := c.fetcher.Fetch(ctx, fetch.Params{
		Query:      key.Query,
		Start:      key.PageStart,
		MaxResults: maxResults,
		SortBy:     c.opts.SortBy,
	})
	if len(docs) == 0 {
		c.logger.Debug("upstream returned no results",
			zap.String("query", key.Query),
			zap.Int("page_start", key.PageStart))
		return &models.ResultRecord{Key: key, Documents: []models.Document{}}, nil
	}

	stored, err := c.store.CreateResult(ctx, &models.ResultRecord{
		Key:        key,
		Documents:  docs,
		NumResults: len(docs),
		HitsWindow: 1,
		HitsTotal:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}
	c.logger.Info("cached new result",
		zap.String("query", key.Query),
		zap.Int("page_start", key.PageStart),
		zap.Int("num_results", stored.NumResults))
	return stored, nil
}

// ResetWindow zeroes the windowed hit counter of every record.
func (c *Cache) ResetWindow(ctx context.Context) (int64, error) {
	n, err := c.store.ResetWindow(ctx)
	if err != nil {
		return 0, err
	}
	c.logger.Info("hit window reset", zap.Int64("records", n))
	return n, nil
}
