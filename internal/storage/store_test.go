package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/proozl/internal/models"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "proozl.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func mustKey(t *testing.T, q string, start int) models.CacheKey {
	t.Helper()
	k, err := models.NewCacheKey(q, start)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func sampleDocs(titles ...string) []models.Document {
	out := make([]models.Document, len(titles))
	for i, title := range titles {
		out[i] = models.Document{
			Title:    title,
			Link:     "http://arxiv.org/abs/" + title,
			Abstract: "abstract of " + title,
			Authors:  []string{"A. Author", "B. Author"},
		}
	}
	return out
}

func TestStore_ResultLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := mustKey(t, "Black Hole", 0)

			if _, err := store.GetResult(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			created, err := store.CreateResult(ctx, &models.ResultRecord{
				Key: key, Documents: sampleDocs("p1", "p2"), HitsWindow: 1, HitsTotal: 1,
			})
			if err != nil {
				t.Fatal(err)
			}
			if created.ID == "" || created.NumResults != 2 {
				t.Fatalf("unexpected created record %+v", created)
			}

			got, err := store.GetResult(ctx, key)
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != created.ID || len(got.Documents) != 2 || got.Documents[1].Authors[1] != "B. Author" {
				t.Errorf("got %+v", got)
			}

			for i := 0; i < 3; i++ {
				if _, _, err := store.IncrementHits(ctx, created.ID); err != nil {
					t.Fatal(err)
				}
			}
			w, total, err := store.IncrementHits(ctx, created.ID)
			if err != nil {
				t.Fatal(err)
			}
			if w != 5 || total != 5 {
				t.Errorf("hits = %d/%d, want 5/5", w, total)
			}

			if err := store.ReplaceDocuments(ctx, created.ID, nil); err != nil {
				t.Fatal(err)
			}
			got, _ = store.GetResult(ctx, key)
			if got.ID != created.ID || len(got.Documents) != 0 || got.Documents == nil || got.HitsTotal != 5 {
				t.Errorf("after soft-evict got %+v", got)
			}

			n, err := store.ResetWindow(ctx)
			if err != nil || n != 1 {
				t.Fatalf("ResetWindow = %d, %v", n, err)
			}
			got, _ = store.GetResult(ctx, key)
			if got.HitsWindow != 0 || got.HitsTotal != 5 {
				t.Errorf("after reset got %d/%d", got.HitsWindow, got.HitsTotal)
			}

			if _, _, err := store.IncrementHits(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			if err := store.ReplaceDocuments(ctx, "missing", nil); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStore_CreateResultUpsertKeepsIDAndCounters(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := mustKey(t, "dark matter", 25)

			first, err := store.CreateResult(ctx, &models.ResultRecord{Key: key, Documents: sampleDocs("a"), HitsWindow: 1, HitsTotal: 1})
			if err != nil {
				t.Fatal(err)
			}
			if _, _, err := store.IncrementHits(ctx, first.ID); err != nil {
				t.Fatal(err)
			}

			second, err := store.CreateResult(ctx, &models.ResultRecord{Key: key, Documents: sampleDocs("b", "c"), HitsWindow: 1, HitsTotal: 1})
			if err != nil {
				t.Fatal(err)
			}
			if second.ID != first.ID {
				t.Errorf("id changed: %s -> %s", first.ID, second.ID)
			}
			if second.HitsTotal != 2 || second.HitsWindow != 2 {
				t.Errorf("counters regressed: %d/%d", second.HitsWindow, second.HitsTotal)
			}
			if len(second.Documents) != 2 || second.Documents[0].Title != "b" {
				t.Errorf("documents not replaced: %+v", second.Documents)
			}
			if n, _ := store.CountResults(ctx); n != 1 {
				t.Errorf("CountResults = %d", n)
			}
		})
	}
}

func TestStore_ConcurrentIncrements(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec, err := store.CreateResult(ctx, &models.ResultRecord{Key: mustKey(t, "quasar", 0), Documents: sampleDocs("q"), HitsWindow: 1, HitsTotal: 1})
			if err != nil {
				t.Fatal(err)
			}
			const n = 20
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, _, err := store.IncrementHits(ctx, rec.ID); err != nil {
						t.Error(err)
					}
				}()
			}
			wg.Wait()
			got, _ := store.GetResult(ctx, rec.Key)
			if got.HitsTotal != n+1 || got.HitsWindow != n+1 {
				t.Errorf("hits = %d/%d, want %d", got.HitsWindow, got.HitsTotal, n+1)
			}
		})
	}
}

func TestStore_ScanResultsCursor(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, q := range []string{"a1", "a2", "a3", "a4", "a5"} {
				if _, err := store.CreateResult(ctx, &models.ResultRecord{Key: mustKey(t, q, 0), Documents: sampleDocs(q)}); err != nil {
					t.Fatal(err)
				}
			}

			seen := make(map[string]bool)
			var cursor Cursor
			pages := 0
			for {
				page, err := store.ScanResults(ctx, cursor, 2)
				if err != nil {
					t.Fatal(err)
				}
				pages++
				for _, r := range page.Records {
					if seen[r.ID] {
						t.Errorf("record %s returned twice", r.ID)
					}
					seen[r.ID] = true
				}
				if page.Next == "" {
					break
				}
				cursor = page.Next
			}
			if len(seen) != 5 || pages != 3 {
				t.Errorf("saw %d records in %d pages", len(seen), pages)
			}

			if _, err := store.ScanResults(ctx, Cursor("%%%"), 2); !errors.Is(err, ErrInvalidCursor) {
				t.Errorf("expected ErrInvalidCursor, got %v", err)
			}
		})
	}
}

func TestStore_AnalysisUniqueness(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := mustKey(t, "black hole", 0)
			ranking := models.RankingResult{
				ProperNouns: []models.TermCount{{Term: "Hawking", Count: 3}},
				Terms:       []models.TermCount{{Term: "radiation", Count: 2}},
			}

			if _, err := store.GetAnalysis(ctx, key); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			rec := &models.AnalysisRecord{Key: key, Ranking: ranking}
			if err := store.InsertAnalysis(ctx, rec); err != nil {
				t.Fatal(err)
			}
			if rec.ID == "" {
				t.Fatal("expected id to be assigned")
			}
			if err := store.InsertAnalysis(ctx, &models.AnalysisRecord{Key: key, Ranking: ranking}); !errors.Is(err, ErrDuplicate) {
				t.Errorf("expected ErrDuplicate, got %v", err)
			}

			ranking.Terms = append(ranking.Terms, models.TermCount{Term: "horizon", Count: 1})
			if err := store.UpdateAnalysis(ctx, rec.ID, ranking); err != nil {
				t.Fatal(err)
			}
			got, err := store.GetAnalysis(ctx, key)
			if err != nil {
				t.Fatal(err)
			}
			if got.ID != rec.ID || len(got.Ranking.Terms) != 2 || got.Ranking.ProperNouns[0].Count != 3 {
				t.Errorf("got %+v", got)
			}
			if n, _ := store.CountAnalyses(ctx); n != 1 {
				t.Errorf("CountAnalyses = %d", n)
			}

			if err := store.UpdateAnalysis(ctx, "missing", ranking); !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			deleted, err := store.DeleteAnalysis(ctx, key)
			if err != nil || !deleted {
				t.Fatalf("DeleteAnalysis = %v, %v", deleted, err)
			}
			deleted, _ = store.DeleteAnalysis(ctx, key)
			if deleted {
				t.Error("second delete should report false")
			}
		})
	}
}

func TestStore_ChangeOutbox(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := mustKey(t, "neutron star", 0)

			rec, err := store.CreateResult(ctx, &models.ResultRecord{Key: key, Documents: sampleDocs("n")})
			if err != nil {
				t.Fatal(err)
			}
			if _, _, err := store.IncrementHits(ctx, rec.ID); err != nil {
				t.Fatal(err)
			}
			if err := store.ReplaceDocuments(ctx, rec.ID, sampleDocs("m")); err != nil {
				t.Fatal(err)
			}

			changes, err := store.Changes(ctx, 0, 10)
			if err != nil {
				t.Fatal(err)
			}
			if len(changes) != 2 {
				t.Fatalf("expected 2 changes (hits are not changes), got %d", len(changes))
			}
			if changes[0].Kind != models.ChangeInsert || changes[1].Kind != models.ChangeModify {
				t.Errorf("kinds = %s, %s", changes[0].Kind, changes[1].Kind)
			}
			if changes[1].Key != key || changes[1].Seq <= changes[0].Seq {
				t.Errorf("unexpected change %+v", changes[1])
			}

			rest, _ := store.Changes(ctx, changes[0].Seq, 10)
			if len(rest) != 1 || rest[0].Seq != changes[1].Seq {
				t.Errorf("Changes after %d = %+v", changes[0].Seq, rest)
			}
		})
	}
}

func TestStore_Checkpoints(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			v, err := store.LoadCheckpoint(ctx, "sweep")
			if err != nil || v != "" {
				t.Fatalf("LoadCheckpoint = %q, %v", v, err)
			}
			if err := store.SaveCheckpoint(ctx, "sweep", "abc"); err != nil {
				t.Fatal(err)
			}
			if err := store.SaveCheckpoint(ctx, "sweep", "def"); err != nil {
				t.Fatal(err)
			}
			if v, _ := store.LoadCheckpoint(ctx, "sweep"); v != "def" {
				t.Errorf("checkpoint = %q", v)
			}
		})
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proozl.db")
	ctx := context.Background()
	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := store.CreateResult(ctx, &models.ResultRecord{Key: mustKey(t, "pulsar", 0), Documents: sampleDocs("p"), HitsWindow: 1, HitsTotal: 1})
	if err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	store, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	got, err := store.GetResult(ctx, rec.Key)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != rec.ID || got.CreatedAt.IsZero() || store.Path() != path {
		t.Errorf("got %+v", got)
	}
}

func TestCursorFor(t *testing.T) {
	if CursorFor(nil) != "" || CursorFor(&models.ResultRecord{}) != "" {
		t.Error("cursor for unpersisted record should be empty")
	}
	c := CursorFor(&models.ResultRecord{ID: "abc"})
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if id, _ := c.afterID(); id != "abc" {
		t.Errorf("afterID = %q", id)
	}
}
