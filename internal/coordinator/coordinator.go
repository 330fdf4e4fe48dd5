// Package coordinator routes change notifications and direct queries to the two caches
// and turns every outcome into a {status, body} response.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/analysis"
	"github.com/hyperjump/proozl/internal/models"
	"github.com/hyperjump/proozl/internal/storage"
)

const (
	NoResultsBody  = "No results found"
	NoAnalysisBody = "No analysis yet"
)

// Response is the result of one invocation.
type Response struct {
	Status int `json:"statusCode"`
	Body   any `json:"body"`
}

// SignalResult reports the handling of one ChangeSignal.
type SignalResult struct {
	Key     models.CacheKey `json:"key"`
	Outcome string          `json:"outcome"`
	Error   string          `json:"error,omitempty"`
}

// BatchResult is the body returned for a ChangeBatch.
type BatchResult struct {
	Results []SignalResult `json:"results"`
	Skipped int            `json:"skipped"`
}

// ResultSource serves cached search pages.
type ResultSource interface {
	GetOrFetch(ctx context.Context, key models.CacheKey, maxResults int) (*models.ResultRecord, error)
}

// Analyzer recomputes and reads rankings.
type Analyzer interface {
	Recompute(ctx context.Context, key models.CacheKey) (analysis.Outcome, error)
	Read(ctx context.Context, key models.CacheKey) (*models.RankingResult, error)
}

// Coordinator dispatches invocations. It holds no state of its own.
type Coordinator struct {
	results  ResultSource
	analyses Analyzer
	logger   *zap.Logger
}

// New creates a Coordinator. A nil logger disables logging.
func New(results ResultSource, analyses Analyzer, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{results: results, analyses: analyses, logger: logger}
}

// Invoke parses raw and handles the resulting invocation.
func (c *Coordinator) Invoke(ctx context.Context, raw []byte) Response {
	inv, err := ParseInvocation(raw)
	if err != nil {
		c.logger.Warn("rejected invocation", zap.Error(err))
		return Response{Status: http.StatusBadRequest, Body: err.Error()}
	}
	return c.Handle(ctx, inv)
}

// Handle runs one invocation. It never panics; unexpected failures become a 500 response.
func (c *Coordinator) Handle(ctx context.Context, inv Invocation) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("invocation panicked", zap.Any("panic", r))
			resp = Response{Status: http.StatusInternalServerError, Body: "internal error"}
		}
	}()

	switch v := inv.(type) {
	case ChangeSignal:
		res := c.recompute(ctx, v)
		if res.Error != "" {
			return Response{Status: http.StatusInternalServerError, Body: res}
		}
		return Response{Status: http.StatusOK, Body: res}
	case ChangeBatch:
		return c.handleBatch(ctx, v)
	case AnalysisQuery:
		return c.handleAnalysisQuery(ctx, v)
	case ResultQuery:
		return c.handleResultQuery(ctx, v)
	default:
		return Response{
			Status: http.StatusBadRequest,
			Body:   fmt.Sprintf("%s: %T", ErrUnsupportedInvocation, inv),
		}
	}
}

func (c *Coordinator) recompute(ctx context.Context, sig ChangeSignal) SignalResult {
	outcome, err := c.analyses.Recompute(ctx, sig.Key)
	if err != nil {
		c.logger.Error("failed to recompute analysis",
			zap.String("query", sig.Key.Query),
			zap.Int("page_start", sig.Key.PageStart),
			zap.Error(err))
		return SignalResult{Key: sig.Key, Outcome: "failed", Error: err.Error()}
	}
	c.logger.Debug("analysis recomputed",
		zap.String("query", sig.Key.Query),
		zap.Int("page_start", sig.Key.PageStart),
		zap.Stringer("outcome", outcome))
	return SignalResult{Key: sig.Key, Outcome: outcome.String()}
}

func (c *Coordinator) handleBatch(ctx context.Context, batch ChangeBatch) Response {
	for _, err := range batch.Skipped {
		c.logger.Warn("skipped change record", zap.Error(err))
	}
	body := BatchResult{Results: make([]SignalResult, 0, len(batch.Signals)), Skipped: len(batch.Skipped)}
	for _, sig := range batch.Signals {
		if ctx.Err() != nil {
			break
		}
		body.Results = append(body.Results, c.recompute(ctx, sig))
	}
	return Response{Status: http.StatusOK, Body: body}
}

func (c *Coordinator) handleAnalysisQuery(ctx context.Context, q AnalysisQuery) Response {
	ranking, err := c.analyses.Read(ctx, q.Key)
	if errors.Is(err, storage.ErrNotFound) {
		return Response{Status: http.StatusOK, Body: NoAnalysisBody}
	}
	if err != nil {
		c.logger.Error("failed to read analysis", zap.String("query", q.Key.Query), zap.Error(err))
		return Response{Status: http.StatusInternalServerError, Body: "failed to read analysis"}
	}
	return Response{Status: http.StatusOK, Body: models.AnalysisPayload{WordRankings: *ranking}}
}

func (c *Coordinator) handleResultQuery(ctx context.Context, q ResultQuery) Response {
	rec, err := c.results.GetOrFetch(ctx, q.Key, q.MaxResults)
	if err != nil {
		c.logger.Error("failed to serve results", zap.String("query", q.Key.Query), zap.Error(err))
		return Response{Status: http.StatusInternalServerError, Body: "failed to serve results"}
	}
	if rec.Empty() {
		return Response{Status: http.StatusOK, Body: NoResultsBody}
	}
	return Response{Status: http.StatusOK, Body: rec.Documents}
}
