// Package storage defines the persistence interfaces for both cache tiers, the change
// outbox and sweep checkpoints, with a SQLite implementation and an in-memory fake.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hyperjump/proozl/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for the requested key or id.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert would create a second record for a key.
	ErrDuplicate = errors.New("record already exists")
	// ErrInvalidCursor is returned when a scan cursor cannot be decoded.
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Cursor is an opaque continuation token for ScanResults. The zero value starts a scan
// from the beginning.
type Cursor string

// CursorFor returns the cursor that resumes a scan after rec.
func CursorFor(rec *models.ResultRecord) Cursor {
	if rec == nil || rec.ID == "" {
		return ""
	}
	return Cursor(base64.RawURLEncoding.EncodeToString([]byte(rec.ID)))
}

// afterID decodes the record id a cursor points past.
func (c Cursor) afterID() (string, error) {
	if c == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil || len(raw) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCursor, string(c))
	}
	return string(raw), nil
}

// Validate reports whether c can be used to resume a scan.
func (c Cursor) Validate() error {
	_, err := c.afterID()
	return err
}

// ResultPage is one page of a result scan. Next is empty when the scan is complete.
type ResultPage struct {
	Records []*models.ResultRecord
	Next    Cursor
}

// ResultStore persists ResultRecords. Every method is a single atomic primitive.
type ResultStore interface {
	GetResult(ctx context.Context, key models.CacheKey) (*models.ResultRecord, error)
	// CreateResult upserts rec by key. On conflict the existing id is kept, documents are
	// replaced and each counter becomes the larger of the stored and supplied values.
	CreateResult(ctx context.Context, rec *models.ResultRecord) (*models.ResultRecord, error)
	// IncrementHits adds one to both hit counters and returns the new values.
	IncrementHits(ctx context.Context, id string) (window, total int, err error)
	// ReplaceDocuments swaps the document list wholesale, leaving counters untouched.
	// A nil or empty docs soft-evicts the record.
	ReplaceDocuments(ctx context.Context, id string, docs []models.Document) error
	ScanResults(ctx context.Context, cursor Cursor, limit int) (ResultPage, error)
	// ResetWindow zeroes every windowed hit counter and returns the number of records touched.
	ResetWindow(ctx context.Context) (int64, error)
	CountResults(ctx context.Context) (int64, error)
}

// AnalysisStore persists AnalysisRecords, at most one per key.
type AnalysisStore interface {
	GetAnalysis(ctx context.Context, key models.CacheKey) (*models.AnalysisRecord, error)
	// InsertAnalysis stores a new record, assigning an id when rec.ID is empty.
	// It returns ErrDuplicate if a record for rec.Key already exists.
	InsertAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
	UpdateAnalysis(ctx context.Context, id string, ranking models.RankingResult) error
	// DeleteAnalysis reports whether a record was removed.
	DeleteAnalysis(ctx context.Context, key models.CacheKey) (bool, error)
	CountAnalyses(ctx context.Context) (int64, error)
}

// ChangeFeed exposes the outbox of result mutations in commit order.
type ChangeFeed interface {
	// Changes returns up to limit entries with Seq greater than after.
	Changes(ctx context.Context, after int64, limit int) ([]models.Change, error)
}

// Checkpoints stores named progress markers (sweep cursors, stream offsets).
type Checkpoints interface {
	// LoadCheckpoint returns "" when name has never been saved.
	LoadCheckpoint(ctx context.Context, name string) (string, error)
	SaveCheckpoint(ctx context.Context, name, value string) error
}

// Store is the full persistence surface used by the caches.
type Store interface {
	ResultStore
	AnalysisStore
	ChangeFeed
	Checkpoints
	Close() error
}
