package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/proozl/internal/models"
)

// MemoryStore is an in-memory Store. Each method holds one mutex for its whole body, so
// every primitive is atomic with respect to the others.
type MemoryStore struct {
	mu          sync.Mutex
	results     map[models.CacheKey]*models.ResultRecord
	byID        map[string]models.CacheKey
	analyses    map[models.CacheKey]*models.AnalysisRecord
	changes     []models.Change
	checkpoints map[string]string
	seq         int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results:     make(map[models.CacheKey]*models.ResultRecord),
		byID:        make(map[string]models.CacheKey),
		analyses:    make(map[models.CacheKey]*models.AnalysisRecord),
		checkpoints: make(map[string]string),
	}
}

func copyResult(r *models.ResultRecord) *models.ResultRecord {
	c := *r
	c.Documents = append([]models.Document{}, r.Documents...)
	return &c
}

// GetResult returns a copy of the record for key.
func (m *MemoryStore) GetResult(_ context.Context, key models.CacheKey) (*models.ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.results[key]
	if !ok {
		return nil, fmt.Errorf("%w: result %s", ErrNotFound, key)
	}
	return copyResult(rec), nil
}

// CreateResult upserts rec and records an INSERT or MODIFY change.
func (m *MemoryStore) CreateResult(_ context.Context, rec *models.ResultRecord) (*models.ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()

	if existing, ok := m.results[rec.Key]; ok {
		existing.Documents = append([]models.Document{}, rec.Documents...)
		existing.NumResults = len(rec.Documents)
		existing.HitsWindow = max(existing.HitsWindow, rec.HitsWindow)
		existing.HitsTotal = max(existing.HitsTotal, rec.HitsTotal)
		existing.UpdatedAt = now
		m.appendChange(models.ChangeModify, rec.Key, now)
		return copyResult(existing), nil
	}

	stored := copyResult(rec)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.NumResults = len(stored.Documents)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.results[rec.Key] = stored
	m.byID[stored.ID] = rec.Key
	m.appendChange(models.ChangeInsert, rec.Key, now)
	return copyResult(stored), nil
}

// IncrementHits adds one to both counters.
func (m *MemoryStore) IncrementHits(_ context.Context, id string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.byID[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: result %s", ErrNotFound, id)
	}
	rec := m.results[key]
	rec.HitsWindow++
	rec.HitsTotal++
	return rec.HitsWindow, rec.HitsTotal, nil
}

// ReplaceDocuments swaps the documents of one record and records a MODIFY change.
func (m *MemoryStore) ReplaceDocuments(_ context.Context, id string, docs []models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: result %s", ErrNotFound, id)
	}
	now := time.Now().UTC()
	rec := m.results[key]
	rec.Documents = append([]models.Document{}, docs...)
	rec.NumResults = len(docs)
	rec.UpdatedAt = now
	m.appendChange(models.ChangeModify, key, now)
	return nil
}

func (m *MemoryStore) appendChange(kind models.ChangeKind, key models.CacheKey, at time.Time) {
	m.seq++
	m.changes = append(m.changes, models.Change{Seq: m.seq, Kind: kind, Key: key, CreatedAt: at})
}

// ScanResults returns up to limit records ordered by id, starting after cursor.
func (m *MemoryStore) ScanResults(_ context.Context, cursor Cursor, limit int) (ResultPage, error) {
	after, err := cursor.afterID()
	if err != nil {
		return ResultPage{}, err
	}
	if limit <= 0 {
		limit = 25
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.byID))
	for id := range m.byID {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var page ResultPage
	for _, id := range ids {
		if len(page.Records) == limit {
			break
		}
		page.Records = append(page.Records, copyResult(m.results[m.byID[id]]))
	}
	if len(page.Records) == limit {
		page.Next = CursorFor(page.Records[len(page.Records)-1])
	}
	return page, nil
}

// ResetWindow zeroes HitsWindow on every record.
func (m *MemoryStore) ResetWindow(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, rec := range m.results {
		if rec.HitsWindow != 0 {
			rec.HitsWindow = 0
			n++
		}
	}
	return n, nil
}

// CountResults returns the number of result records.
func (m *MemoryStore) CountResults(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.results)), nil
}

// GetAnalysis returns a copy of the analysis for key.
func (m *MemoryStore) GetAnalysis(_ context.Context, key models.CacheKey) (*models.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.analyses[key]
	if !ok {
		return nil, fmt.Errorf("%w: analysis %s", ErrNotFound, key)
	}
	c := *rec
	return &c, nil
}

// InsertAnalysis inserts a new analysis record.
func (m *MemoryStore) InsertAnalysis(_ context.Context, rec *models.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.analyses[rec.Key]; ok {
		return fmt.Errorf("%w: analysis %s", ErrDuplicate, rec.Key)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UpdatedAt = time.Now().UTC()
	c := *rec
	m.analyses[rec.Key] = &c
	return nil
}

// UpdateAnalysis replaces the ranking of an existing record.
func (m *MemoryStore) UpdateAnalysis(_ context.Context, id string, ranking models.RankingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.analyses {
		if rec.ID == id {
			rec.Ranking = ranking
			rec.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: analysis %s", ErrNotFound, id)
}

// DeleteAnalysis removes the analysis for key.
func (m *MemoryStore) DeleteAnalysis(_ context.Context, key models.CacheKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.analyses[key]; !ok {
		return false, nil
	}
	delete(m.analyses, key)
	return true, nil
}

// CountAnalyses returns the number of analysis records.
func (m *MemoryStore) CountAnalyses(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.analyses)), nil
}

// Changes returns outbox entries after the given sequence number.
func (m *MemoryStore) Changes(_ context.Context, after int64, limit int) ([]models.Change, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Change
	for _, c := range m.changes {
		if c.Seq <= after {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// LoadCheckpoint returns the saved value for name.
func (m *MemoryStore) LoadCheckpoint(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkpoints[name], nil
}

// SaveCheckpoint stores value under name.
func (m *MemoryStore) SaveCheckpoint(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[name] = value
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
