package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/proozl/internal/models"
	"github.com/hyperjump/proozl/internal/storage"
)

// countingRanker ranks each document title as a single term.
type countingRanker struct {
	calls int
}

func (r *countingRanker) Rank(docs []models.Document, _ string) models.RankingResult {
	r.calls++
	out := models.RankingResult{ProperNouns: []models.TermCount{}, Terms: []models.TermCount{}}
	for _, d := range docs {
		out.Terms = append(out.Terms, models.TermCount{Term: d.Title, Count: 1})
	}
	return out
}

func setup(t *testing.T, policy StalePolicy) (*Cache, *storage.MemoryStore, *countingRanker, models.CacheKey) {
	t.Helper()
	store := storage.NewMemoryStore()
	ranker := &countingRanker{}
	key, err := models.NewCacheKey("black hole", 0)
	if err != nil {
		t.Fatal(err)
	}
	return New(store, store, ranker, policy, nil), store, ranker, key
}

func seed(t *testing.T, store *storage.MemoryStore, key models.CacheKey, titles ...string) *models.ResultRecord {
	t.Helper()
	docs := make([]models.Document, len(titles))
	for i, title := range titles {
		docs[i] = models.Document{Title: title}
	}
	rec, err := store.CreateResult(context.Background(), &models.ResultRecord{Key: key, Documents: docs, HitsWindow: 1, HitsTotal: 1})
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

func TestRecompute_IdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	c, store, _, key := setup(t, "")
	seed(t, store, key, "horizon")

	out, err := c.Recompute(ctx, key)
	if err != nil || out != OutcomeInserted {
		t.Fatalf("first Recompute = %s, %v", out, err)
	}
	first, _ := store.GetAnalysis(ctx, key)

	out, err = c.Recompute(ctx, key)
	if err != nil || out != OutcomeUpdated {
		t.Fatalf("second Recompute = %s, %v", out, err)
	}
	second, _ := store.GetAnalysis(ctx, key)

	if n, _ := store.CountAnalyses(ctx); n != 1 {
		t.Errorf("expected exactly one analysis, got %d", n)
	}
	if first.ID != second.ID {
		t.Errorf("analysis id changed: %s -> %s", first.ID, second.ID)
	}
}

func TestRecompute_FollowsDocumentChanges(t *testing.T) {
	ctx := context.Background()
	c, store, _, key := setup(t, "")
	rec := seed(t, store, key, "horizon")
	if _, err := c.Recompute(ctx, key); err != nil {
		t.Fatal(err)
	}

	if err := store.ReplaceDocuments(ctx, rec.ID, []models.Document{{Title: "singularity"}, {Title: "ergosphere"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Recompute(ctx, key); err != nil {
		t.Fatal(err)
	}
	got, err := c.Read(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Terms) != 2 || got.Terms[0].Term != "singularity" {
		t.Errorf("ranking = %+v", got)
	}
}

func TestRecompute_AbsentResult(t *testing.T) {
	ctx := context.Background()
	c, store, ranker, key := setup(t, "")
	out, err := c.Recompute(ctx, key)
	if err != nil || out != OutcomeSkipped {
		t.Fatalf("Recompute = %s, %v", out, err)
	}
	if ranker.calls != 0 {
		t.Error("ranker should not run without documents")
	}
	if n, _ := store.CountAnalyses(ctx); n != 0 {
		t.Errorf("no analysis should be written, got %d", n)
	}
}

func TestRecompute_StalePolicies(t *testing.T) {
	tests := []struct {
		policy   StalePolicy
		want     Outcome
		wantKept bool
	}{
		{StaleKeep, OutcomeSkipped, true},
		{StaleInvalidate, OutcomeInvalidated, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			ctx := context.Background()
			c, store, _, key := setup(t, tt.policy)
			rec := seed(t, store, key, "horizon")
			if _, err := c.Recompute(ctx, key); err != nil {
				t.Fatal(err)
			}
			if err := store.ReplaceDocuments(ctx, rec.ID, nil); err != nil {
				t.Fatal(err)
			}

			out, err := c.Recompute(ctx, key)
			if err != nil || out != tt.want {
				t.Fatalf("Recompute = %s, %v, want %s", out, err, tt.want)
			}
			_, err = c.Read(ctx, key)
			if kept := err == nil; kept != tt.wantKept {
				t.Errorf("analysis kept = %v, want %v (err %v)", kept, tt.wantKept, err)
			}
		})
	}
}

func TestRead_NeverComputes(t *testing.T) {
	ctx := context.Background()
	c, store, ranker, key := setup(t, "")
	seed(t, store, key, "horizon")

	if _, err := c.Read(ctx, key); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound before recompute, got %v", err)
	}
	if ranker.calls != 0 {
		t.Error("Read must not rank")
	}
}

func TestParseStalePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    StalePolicy
		wantErr bool
	}{
		{"", StaleKeep, false},
		{"KEEP", StaleKeep, false},
		{"invalidate", StaleInvalidate, false},
		{"tombstone", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStalePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStalePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}
