package models

import (
	"encoding/json"
	"fmt"
)

// TermCount is one ranked entry. It encodes as a two-element JSON array [term, count].
type TermCount struct {
	Term  string
	Count int
}

// MarshalJSON implements json.Marshaler.
func (t TermCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{t.Term, t.Count})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *TermCount) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("term count: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &t.Term); err != nil {
		return fmt.Errorf("term count: term: %w", err)
	}
	// Counts written by other encoders may arrive as decimals (e.g. 4.0).
	var n float64
	if err := json.Unmarshal(pair[1], &n); err != nil {
		return fmt.Errorf("term count: count: %w", err)
	}
	if n != float64(int(n)) {
		return fmt.Errorf("term count: count %v is not an integer", n)
	}
	t.Count = int(n)
	return nil
}

// RankingResult is the lexical summary of a document set.
// Both lists are ordered by count descending, ties by first occurrence.
type RankingResult struct {
	ProperNouns []TermCount `json:"pn10"`
	Terms       []TermCount `json:"root10"`
}

// AnalysisPayload is the body served for a ranking.
type AnalysisPayload struct {
	WordRankings RankingResult `json:"word_rankings"`
}
