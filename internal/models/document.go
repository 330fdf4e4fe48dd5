// Package models defines the cached search slices, fetched papers and ranking results.
package models

import "time"

// Document is one paper returned by the search feed. It is never mutated after fetch.
type Document struct {
	Title    string   `json:"title"`
	Link     string   `json:"link"`
	Abstract string   `json:"abstract"`
	Authors  []string `json:"authors"`
}

// ResultRecord is a cached page of search results for one CacheKey.
// HitsTotal >= HitsWindow >= 0 holds for every persisted record.
type ResultRecord struct {
	ID         string     `json:"id"`
	Key        CacheKey   `json:"key"`
	Documents  []Document `json:"results"`
	NumResults int        `json:"num_results"`
	HitsWindow int        `json:"num_of_hits_wk"`
	HitsTotal  int        `json:"num_of_hits_all"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Persisted reports whether the record exists in the store. Records built from an
// empty upstream lookup are returned to callers but never stored.
func (r *ResultRecord) Persisted() bool {
	return r != nil && r.ID != ""
}

// Empty reports whether the record carries no documents (never fetched or soft-evicted).
func (r *ResultRecord) Empty() bool {
	return r == nil || len(r.Documents) == 0
}

// AnalysisRecord holds the ranking derived from the documents of one ResultRecord.
type AnalysisRecord struct {
	ID        string        `json:"id"`
	Key       CacheKey      `json:"key"`
	Ranking   RankingResult `json:"word_rankings"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ChangeKind names the mutation that produced a Change.
type ChangeKind string

const (
	// ChangeInsert is emitted when a result record is created.
	ChangeInsert ChangeKind = "INSERT"
	// ChangeModify is emitted when a result record's documents are replaced or cleared.
	ChangeModify ChangeKind = "MODIFY"
)

// Change is one entry of the result-cache change outbox.
type Change struct {
	Seq       int64      `json:"seq"`
	Kind      ChangeKind `json:"event_name"`
	Key       CacheKey   `json:"key"`
	CreatedAt time.Time  `json:"created_at"`
}
