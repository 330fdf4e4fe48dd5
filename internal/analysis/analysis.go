// Package analysis maintains one ranking per cached search page, recomputed when the
// page's documents change and served as a plain lookup.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/models"
	"github.com/hyperjump/proozl/internal/storage"
)

// StalePolicy decides what happens to an existing analysis when its page has no documents.
type StalePolicy string

const (
	// StaleKeep leaves the last computed analysis in place.
	StaleKeep StalePolicy = "keep"
	// StaleInvalidate deletes the analysis.
	StaleInvalidate StalePolicy = "invalidate"
)

// ParseStalePolicy validates a policy name from configuration. Empty selects StaleKeep.
func ParseStalePolicy(name string) (StalePolicy, error) {
	switch p := StalePolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return StaleKeep, nil
	case StaleKeep, StaleInvalidate:
		return p, nil
	default:
		return "", fmt.Errorf("unknown stale policy %q", name)
	}
}

// Outcome reports what Recompute did.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeInserted
	OutcomeUpdated
	OutcomeInvalidated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeInvalidated:
		return "invalidated"
	default:
		return "skipped"
	}
}

// Ranker produces a ranking for a document set.
type Ranker interface {
	Rank(docs []models.Document, query string) models.RankingResult
}

// Cache owns the AnalysisRecord lifecycle. It only reads result records.
type Cache struct {
	results  storage.ResultStore
	analyses storage.AnalysisStore
	ranker   Ranker
	policy   StalePolicy
	logger   *zap.Logger
}

// New creates a Cache. An empty policy selects StaleKeep; a nil logger disables logging.
func New(results storage.ResultStore, analyses storage.AnalysisStore, ranker Ranker, policy StalePolicy, logger *zap.Logger) *Cache {
	if policy == "" {
		policy = StaleKeep
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{results: results, analyses: analyses, ranker: ranker, policy: policy, logger: logger}
}

// Recompute ranks the current documents for key and upserts the analysis.
func (c *Cache) Recompute(ctx context.Context, key models.CacheKey) (Outcome, error) {
	rec, err := c.results.GetResult(ctx, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return OutcomeSkipped, fmt.Errorf("failed to read result: %w", err)
	}
	if rec.Empty() {
		return c.handleStale(ctx, key)
	}

	ranking := c.ranker.Rank(rec.Documents, key.Query)

	existing, err := c.analyses.GetAnalysis(ctx, key)
	switch {
	case err == nil:
		if err := c.analyses.UpdateAnalysis(ctx, existing.ID, ranking); err != nil {
			return OutcomeSkipped, fmt.Errorf("failed to update analysis: %w", err)
		}
		c.logger.Debug("analysis updated", zap.String("query", key.Query), zap.Int("page_start", key.PageStart))
		return OutcomeUpdated, nil
	case !errors.Is(err, storage.ErrNotFound):
		return OutcomeSkipped, fmt.Errorf("failed to look up analysis: %w", err)
	}

	err = c.analyses.InsertAnalysis(ctx, &models.AnalysisRecord{Key: key, Ranking: ranking})
	if errors.Is(err, storage.ErrDuplicate) {
		// lost an insert race; the winner's record is updated instead
		existing, gerr := c.analyses.GetAnalysis(ctx, key)
		if gerr != nil {
			return OutcomeSkipped, fmt.Errorf("failed to look up analysis: %w", gerr)
		}
		if uerr := c.analyses.UpdateAnalysis(ctx, existing.ID, ranking); uerr != nil {
			return OutcomeSkipped, fmt.Errorf("failed to update analysis: %w", uerr)
		}
		return OutcomeUpdated, nil
	}
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to insert analysis: %w", err)
	}
	c.logger.Debug("analysis inserted", zap.String("query", key.Query), zap.Int("page_start", key.PageStart))
	return OutcomeInserted, nil
}

func (c *Cache) handleStale(ctx context.Context, key models.CacheKey) (Outcome, error) {
	if c.policy != StaleInvalidate {
		return OutcomeSkipped, nil
	}
	deleted, err := c.analyses.DeleteAnalysis(ctx, key)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("failed to invalidate analysis: %w", err)
	}
	if !deleted {
		return OutcomeSkipped, nil
	}
	c.logger.Info("analysis invalidated", zap.String("query", key.Query), zap.Int("page_start", key.PageStart))
	return OutcomeInvalidated, nil
}

// Read returns the stored ranking for key, or an error wrapping storage.ErrNotFound.
// It never computes a ranking.
func (c *Cache) Read(ctx context.Context, key models.CacheKey) (*models.RankingResult, error) {
	rec, err := c.analyses.GetAnalysis(ctx, key)
	if err != nil {
		return nil, err
	}
	return &rec.Ranking, nil
}
