package resultcache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/proozl/internal/fetch"
	"github.com/hyperjump/proozl/internal/models"
	"github.com/hyperjump/proozl/internal/storage"
)

const (
	DefaultPageSize   = 25
	DefaultMinSpacing = 3 * time.Second

	// SweepCheckpoint is the checkpoint name under which Sweep persists its cursor.
	SweepCheckpoint = "refresh_sweep"
)

// SweepOptions controls one RefreshAll pass.
type SweepOptions struct {
	// Cursor resumes a previous pass. Empty starts from the first record.
	Cursor   storage.Cursor
	PageSize int
	// MaxRecords suspends the pass after this many records. Zero means no limit.
	MaxRecords int
	// MinSpacing is the minimum delay between upstream fetches.
	MinSpacing time.Duration
	// Progress, if set, is called after each record with the cursor that resumes after it.
	Progress func(storage.Cursor)
}

// SweepReport summarizes a RefreshAll pass.
type SweepReport struct {
	Scanned int
	Updated int
	Cleared int
	Failed  int
	// Cursor resumes after the last processed record. Empty when Completed.
	Cursor    storage.Cursor
	Completed bool
}

func (r SweepReport) String() string {
	return fmt.Sprintf("Updated: %d, Cleared: %d", r.Updated, r.Cleared)
}

// RefreshAll re-fetches every stored record. Non-empty answers replace the documents,
// empty answers soft-evict the record. Store failures are logged and counted and the
// pass continues. The pass stops between records when ctx is done or MaxRecords is
// reached, returning a report whose Cursor resumes it.
func (c *Cache) RefreshAll(ctx context.Context, opts SweepOptions) (SweepReport, error) {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MinSpacing <= 0 {
		opts.MinSpacing = DefaultMinSpacing
	}
	if err := opts.Cursor.Validate(); err != nil {
		return SweepReport{}, err
	}

	limiter := rate.NewLimiter(rate.Every(opts.MinSpacing), 1)
	report := SweepReport{Cursor: opts.Cursor}
	cursor := opts.Cursor

	for {
		page, err := c.store.ScanResults(ctx, cursor, opts.PageSize)
		if err != nil {
			return report, fmt.Errorf("failed to scan results: %w", err)
		}

		for _, rec := range page.Records {
			if opts.MaxRecords > 0 && report.Scanned >= opts.MaxRecords {
				c.logger.Info("refresh sweep suspended", zap.String("report", report.String()))
				return report, nil
			}
			if err := limiter.Wait(ctx); err != nil {
				c.logger.Info("refresh sweep cancelled", zap.String("report", report.String()))
				return report, err
			}

			if err := c.refreshRecord(ctx, rec, &report); err != nil {
				c.logger.Info("refresh sweep cancelled", zap.String("report", report.String()))
				return report, err
			}
			report.Scanned++
			report.Cursor = storage.CursorFor(rec)
			if opts.Progress != nil {
				opts.Progress(report.Cursor)
			}
		}

		if page.Next == "" {
			break
		}
		cursor = page.Next
	}

	report.Cursor = ""
	report.Completed = true
	c.logger.Info("refresh sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("failed", report.Failed),
		zap.String("report", report.String()))
	return report, nil
}

// refreshRecord returns an error only when ctx ended during the fetch. The record is
// then left untouched so a resumed pass fetches it again.
func (c *Cache) refreshRecord(ctx context.Context, rec *models.ResultRecord, report *SweepReport) error {
	docs := c.fetcher.Fetch(ctx, fetch.Params{
		Query:      rec.Key.Query,
		Start:      rec.Key.PageStart,
		MaxResults: c.opts.MaxResults,
		SortBy:     c.opts.SortBy,
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.store.ReplaceDocuments(ctx, rec.ID, docs); err != nil {
		report.Failed++
		c.logger.Error("failed to refresh result",
			zap.String("id", rec.ID),
			zap.String("query", rec.Key.Query),
			zap.Int("page_start", rec.Key.PageStart),
			zap.Error(err))
		return nil
	}
	if len(docs) == 0 {
		report.Cleared++
		return nil
	}
	report.Updated++
	return nil
}

// Sweep runs RefreshAll resuming from the cursor saved in cp and saves progress after
// every record. A completed pass clears the saved cursor.
func (c *Cache) Sweep(ctx context.Context, cp storage.Checkpoints, opts SweepOptions) (SweepReport, error) {
	saved, err := cp.LoadCheckpoint(ctx, SweepCheckpoint)
	if err != nil {
		return SweepReport{}, err
	}
	if opts.Cursor == "" && saved != "" {
		if err := storage.Cursor(saved).Validate(); err != nil {
			c.logger.Warn("discarding invalid sweep checkpoint", zap.String("cursor", saved))
		} else {
			opts.Cursor = storage.Cursor(saved)
			c.logger.Info("resuming refresh sweep", zap.String("cursor", saved))
		}
	}

	progress := opts.Progress
	opts.Progress = func(cur storage.Cursor) {
		// detached so the last checkpoint survives cancellation
		if err := cp.SaveCheckpoint(context.WithoutCancel(ctx), SweepCheckpoint, string(cur)); err != nil {
			c.logger.Warn("failed to save sweep checkpoint", zap.Error(err))
		}
		if progress != nil {
			progress(cur)
		}
	}

	report, err := c.RefreshAll(ctx, opts)
	if report.Completed {
		if serr := cp.SaveCheckpoint(ctx, SweepCheckpoint, ""); serr != nil {
			c.logger.Warn("failed to clear sweep checkpoint", zap.Error(serr))
		}
	}
	return report, err
}
