package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/proozl/internal/models"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_results (
		id TEXT PRIMARY KEY,
		query_string TEXT NOT NULL,
		page_start INTEGER NOT NULL CHECK (page_start >= 0),
		documents TEXT NOT NULL DEFAULT '[]',
		num_results INTEGER NOT NULL DEFAULT 0,
		hits_window INTEGER NOT NULL DEFAULT 0 CHECK (hits_window >= 0),
		hits_total INTEGER NOT NULL DEFAULT 0 CHECK (hits_total >= hits_window),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_results_key ON search_results(query_string, page_start);

	CREATE TABLE IF NOT EXISTS result_analyses (
		id TEXT PRIMARY KEY,
		query_string TEXT NOT NULL,
		page_start INTEGER NOT NULL,
		ranking TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_analyses_key ON result_analyses(query_string, page_start);

	CREATE TABLE IF NOT EXISTS result_changes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		event_name TEXT NOT NULL,
		query_string TEXT NOT NULL,
		page_start INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS checkpoints (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

const resultColumns = `id, query_string, page_start, documents, num_results, hits_window, hits_total, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*models.ResultRecord, error) {
	var rec models.ResultRecord
	var docsJSON string
	var pageStart, numResults, window, total int64
	if err := row.Scan(&rec.ID, &rec.Key.Query, &pageStart, &docsJSON, &numResults, &window, &total, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Key.PageStart = int(pageStart)
	rec.NumResults = int(numResults)
	rec.HitsWindow = int(window)
	rec.HitsTotal = int(total)
	if err := json.Unmarshal([]byte(docsJSON), &rec.Documents); err != nil {
		return nil, fmt.Errorf("failed to unmarshal documents: %w", err)
	}
	if rec.Documents == nil {
		rec.Documents = []models.Document{}
	}
	return &rec, nil
}

func marshalDocuments(docs []models.Document) (string, error) {
	if docs == nil {
		docs = []models.Document{}
	}
	data, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal documents: %w", err)
	}
	return string(data), nil
}

// GetResult returns the record for key.
func (s *SQLiteStore) GetResult(ctx context.Context, key models.CacheKey) (*models.ResultRecord, error) {
	rec, err := scanResult(s.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM search_results WHERE query_string = ? AND page_start = ?`,
		key.Query, key.PageStart,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: result %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return rec, nil
}

// CreateResult upserts rec and records an INSERT or MODIFY change in the same transaction.
func (s *SQLiteStore) CreateResult(ctx context.Context, rec *models.ResultRecord) (*models.ResultRecord, error) {
	docsJSON, err := marshalDocuments(rec.Documents)
	if err != nil {
		return nil, err
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var storedID string
	err = tx.QueryRowContext(ctx,
		`INSERT INTO search_results (id, query_string, page_start, documents, num_results, hits_window, hits_total, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(query_string, page_start) DO UPDATE SET
			documents = excluded.documents,
			num_results = excluded.num_results,
			hits_window = MAX(hits_window, excluded.hits_window),
			hits_total = MAX(hits_total, excluded.hits_total),
			updated_at = excluded.updated_at
		 RETURNING id`,
		id, rec.Key.Query, rec.Key.PageStart, docsJSON, len(rec.Documents), rec.HitsWindow, rec.HitsTotal, now, now,
	).Scan(&storedID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert result: %w", err)
	}

	kind := models.ChangeInsert
	if storedID != id {
		kind = models.ChangeModify
	}
	if err := appendChange(ctx, tx, kind, rec.Key, now); err != nil {
		return nil, err
	}

	stored, err := scanResult(tx.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM search_results WHERE id = ?`, storedID))
	if err != nil {
		return nil, fmt.Errorf("failed to read back result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit result: %w", err)
	}
	return stored, nil
}

// IncrementHits atomically adds one to both counters.
func (s *SQLiteStore) IncrementHits(ctx context.Context, id string) (int, int, error) {
	var window, total int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE search_results SET hits_window = hits_window + 1, hits_total = hits_total + 1
		 WHERE id = ? RETURNING hits_window, hits_total`, id,
	).Scan(&window, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fmt.Errorf("%w: result %s", ErrNotFound, id)
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to increment hits: %w", err)
	}
	return int(window), int(total), nil
}

// ReplaceDocuments swaps the documents of one record and records a MODIFY change.
func (s *SQLiteStore) ReplaceDocuments(ctx context.Context, id string, docs []models.Document) error {
	docsJSON, err := marshalDocuments(docs)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var key models.CacheKey
	var pageStart int64
	err = tx.QueryRowContext(ctx,
		`UPDATE search_results SET documents = ?, num_results = ?, updated_at = ?
		 WHERE id = ? RETURNING query_string, page_start`,
		docsJSON, len(docs), now, id,
	).Scan(&key.Query, &pageStart)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: result %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to replace documents: %w", err)
	}
	key.PageStart = int(pageStart)

	if err := appendChange(ctx, tx, models.ChangeModify, key, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	return nil
}

func appendChange(ctx context.Context, tx *sql.Tx, kind models.ChangeKind, key models.CacheKey, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO result_changes (event_name, query_string, page_start, created_at) VALUES (?, ?, ?, ?)`,
		string(kind), key.Query, key.PageStart, at,
	)
	if err != nil {
		return fmt.Errorf("failed to append change: %w", err)
	}
	return nil
}

// ScanResults returns up to limit records ordered by id, starting after cursor.
func (s *SQLiteStore) ScanResults(ctx context.Context, cursor Cursor, limit int) (ResultPage, error) {
	after, err := cursor.afterID()
	if err != nil {
		return ResultPage{}, err
	}
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM search_results WHERE id > ? ORDER BY id LIMIT ?`,
		after, limit,
	)
	if err != nil {
		return ResultPage{}, fmt.Errorf("failed to scan results: %w", err)
	}
	defer rows.Close()

	var page ResultPage
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return ResultPage{}, err
		}
		page.Records = append(page.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return ResultPage{}, fmt.Errorf("failed to scan results: %w", err)
	}
	if len(page.Records) == limit {
		page.Next = CursorFor(page.Records[len(page.Records)-1])
	}
	return page, nil
}

// ResetWindow zeroes hits_window on every record.
func (s *SQLiteStore) ResetWindow(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE search_results SET hits_window = 0 WHERE hits_window <> 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset hit window: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// CountResults returns the number of result records.
func (s *SQLiteStore) CountResults(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM search_results`).Scan(&n)
	return n, err
}

// GetAnalysis returns the analysis for key.
func (s *SQLiteStore) GetAnalysis(ctx context.Context, key models.CacheKey) (*models.AnalysisRecord, error) {
	var rec models.AnalysisRecord
	var rankingJSON string
	var pageStart int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, query_string, page_start, ranking, updated_at
		 FROM result_analyses WHERE query_string = ? AND page_start = ?`,
		key.Query, key.PageStart,
	).Scan(&rec.ID, &rec.Key.Query, &pageStart, &rankingJSON, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: analysis %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	rec.Key.PageStart = int(pageStart)
	if err := json.Unmarshal([]byte(rankingJSON), &rec.Ranking); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ranking: %w", err)
	}
	return &rec, nil
}

// InsertAnalysis inserts a new analysis record.
func (s *SQLiteStore) InsertAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	rankingJSON, err := json.Marshal(rec.Ranking)
	if err != nil {
		return fmt.Errorf("failed to marshal ranking: %w", err)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO result_analyses (id, query_string, page_start, ranking, updated_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Key.Query, rec.Key.PageStart, string(rankingJSON), rec.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: analysis %s", ErrDuplicate, rec.Key)
	}
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

// UpdateAnalysis replaces the ranking of an existing record.
func (s *SQLiteStore) UpdateAnalysis(ctx context.Context, id string, ranking models.RankingResult) error {
	rankingJSON, err := json.Marshal(ranking)
	if err != nil {
		return fmt.Errorf("failed to marshal ranking: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE result_analyses SET ranking = ?, updated_at = ? WHERE id = ?`,
		string(rankingJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: analysis %s", ErrNotFound, id)
	}
	return nil
}

// DeleteAnalysis removes the analysis for key.
func (s *SQLiteStore) DeleteAnalysis(ctx context.Context, key models.CacheKey) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM result_analyses WHERE query_string = ? AND page_start = ?`, key.Query, key.PageStart)
	if err != nil {
		return false, fmt.Errorf("failed to delete analysis: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// CountAnalyses returns the number of analysis records.
func (s *SQLiteStore) CountAnalyses(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM result_analyses`).Scan(&n)
	return n, err
}

// Changes returns outbox entries after the given sequence number.
func (s *SQLiteStore) Changes(ctx context.Context, after int64, limit int) ([]models.Change, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, event_name, query_string, page_start, created_at
		 FROM result_changes WHERE seq > ? ORDER BY seq LIMIT ?`,
		after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read changes: %w", err)
	}
	defer rows.Close()

	var changes []models.Change
	for rows.Next() {
		var c models.Change
		var kind string
		var pageStart int64
		if err := rows.Scan(&c.Seq, &kind, &c.Key.Query, &pageStart, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Kind = models.ChangeKind(kind)
		c.Key.PageStart = int(pageStart)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// LoadCheckpoint returns the saved value for name.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, name string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM checkpoints WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return value, nil
}

// SaveCheckpoint stores value under name.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, name, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (name, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
