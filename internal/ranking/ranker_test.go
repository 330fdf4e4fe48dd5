package ranking

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/proozl/internal/lexical"
	"github.com/hyperjump/proozl/internal/models"
)

type stubTagger struct {
	proper map[string]bool
}

func (s stubTagger) Tag(text string) []lexical.TaggedToken {
	var out []lexical.TaggedToken
	for _, field := range strings.Fields(text) {
		word := strings.TrimRight(field, ".,")
		tag := "NN"
		if s.proper[word] {
			tag = "NNP"
		}
		out = append(out, lexical.TaggedToken{Text: word, Tag: tag})
	}
	return out
}

func newTestEngine(t *testing.T, opts Options, proper ...string) *Engine {
	t.Helper()
	set := make(map[string]bool)
	for _, p := range proper {
		set[p] = true
	}
	b, err := lexical.LoadBundle(lexical.BundleOptions{Tagger: stubTagger{proper: set}})
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(b, opts)
}

func groups(pairs ...[]string) *lexical.TermGroups {
	g := lexical.NewTermGroups()
	for _, p := range pairs {
		for _, form := range p[1:] {
			g.Append(p[0], form)
		}
	}
	return g
}

func TestRankTokens_TermGroupExample(t *testing.T) {
	tokens := lexical.FilteredTokens{Groups: groups(
		[]string{"compute", "computed", "computed", "computing", "computing"},
		[]string{"apply", "apply", "applying", "applying", "applied", "applied"},
		[]string{"run", "ran", "run"},
		[]string{"find", "find", "found", "found", "finds"},
	)}

	got := RankTokens(tokens, Options{Representative: RepresentativeLemma})
	want := []models.TermCount{
		{Term: "apply", Count: 5},
		{Term: "compute", Count: 4},
		{Term: "find", Count: 4},
		{Term: "run", Count: 2},
	}
	if !reflect.DeepEqual(got.Terms, want) {
		t.Errorf("Terms = %v, want %v", got.Terms, want)
	}

	got = RankTokens(tokens, Options{Representative: RepresentativeFirstSurface})
	if got.Terms[1].Term != "computed" || got.Terms[3].Term != "ran" {
		t.Errorf("first-surface labels: got %v", got.Terms)
	}
}

func TestRankTokens_TopNAndTieBreak(t *testing.T) {
	var pns []string
	// twelve names seen once each, then "Zeta" twice: Zeta first, then first-seen order
	for _, n := range []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta", "Eta", "Theta", "Iota", "Kappa", "Lambda", "Omicron"} {
		pns = append(pns, n)
	}
	pns = append(pns, "Zeta")

	got := RankTokens(lexical.FilteredTokens{ProperNouns: pns}, Options{})
	if len(got.ProperNouns) != DefaultTopN {
		t.Fatalf("expected %d proper nouns, got %d", DefaultTopN, len(got.ProperNouns))
	}
	if got.ProperNouns[0] != (models.TermCount{Term: "Zeta", Count: 2}) {
		t.Errorf("first = %v", got.ProperNouns[0])
	}
	wantOrder := []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Eta", "Theta", "Iota", "Kappa"}
	for i, name := range wantOrder {
		if got.ProperNouns[i+1].Term != name {
			t.Errorf("position %d = %s, want %s", i+1, got.ProperNouns[i+1].Term, name)
		}
	}
}

func TestEngine_Rank_Deterministic(t *testing.T) {
	e := newTestEngine(t, Options{}, "Hawking", "Penrose", "Kerr")
	input := []models.Document{
		{Abstract: "Hawking radiation from rotating Kerr geometry. Penrose process extracts energy."},
		{Abstract: "Penrose diagrams describe Kerr spacetime and Hawking evaporation of horizons."},
		{Abstract: "Horizons radiate; geometry shapes radiation spectra near Kerr solutions."},
	}
	first, err := json.Marshal(e.Rank(input, "black hole"))
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		again, _ := json.Marshal(e.Rank(input, "black hole"))
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, again)
		}
	}
}

func TestEngine_Rank_QueryExclusion(t *testing.T) {
	e := newTestEngine(t, Options{}, "Black", "Blackwell")
	got := e.Rank([]models.Document{{Abstract: "Black holes are observed near Blackwell crater"}}, "black hole")

	for _, tc := range got.Terms {
		switch strings.ToLower(tc.Term) {
		case "black", "hole", "holes":
			t.Errorf("query term %q in terms", tc.Term)
		}
	}
	found := false
	for _, tc := range got.ProperNouns {
		if tc.Term == "Blackwell" {
			found = true
		}
	}
	if !found {
		t.Errorf("Blackwell missing from proper nouns: %v", got.ProperNouns)
	}
}

func TestEngine_Rank_QueryExclusionWithDefaultBundle(t *testing.T) {
	b, err := lexical.LoadBundle(lexical.BundleOptions{})
	if err != nil {
		t.Fatal(err)
	}
	got := NewEngine(b, Options{}).Rank(
		[]models.Document{{Abstract: "Black holes are observed near Blackwell crater."}}, "black hole")

	for _, list := range [][]models.TermCount{got.ProperNouns, got.Terms} {
		for _, tc := range list {
			switch strings.ToLower(tc.Term) {
			case "black", "hole", "holes":
				t.Errorf("query term %q ranked: %+v", tc.Term, got)
			}
		}
	}
	want := models.TermCount{Term: "Blackwell", Count: 1}
	if len(got.ProperNouns) != 1 || got.ProperNouns[0] != want {
		t.Errorf("proper nouns = %v, want [%v]", got.ProperNouns, want)
	}
}

func TestEngine_Rank_LemmaLabelIsStem(t *testing.T) {
	e := newTestEngine(t, Options{Representative: RepresentativeLemma})
	got := e.Rank([]models.Document{{Abstract: "computed computing"}}, "")
	want := []models.TermCount{{Term: "comput", Count: 2}}
	if !reflect.DeepEqual(got.Terms, want) {
		t.Errorf("Terms = %v, want %v", got.Terms, want)
	}
}

func TestEngine_Rank_StopwordsNeverRanked(t *testing.T) {
	e := newTestEngine(t, Options{}, "The", "And", "Of")
	got := e.Rank([]models.Document{
		{Abstract: "The and a of the of and The And Of cosmology"},
	}, "")
	for _, list := range [][]models.TermCount{got.ProperNouns, got.Terms} {
		for _, tc := range list {
			switch strings.ToLower(tc.Term) {
			case "the", "and", "a", "of":
				t.Errorf("stopword %q ranked", tc.Term)
			}
		}
	}
}

func TestEngine_Rank_Empty(t *testing.T) {
	e := newTestEngine(t, Options{})
	got := e.Rank(nil, "anything")
	if got.ProperNouns == nil || got.Terms == nil {
		t.Fatal("empty ranking lists should be non-nil")
	}
	if len(got.ProperNouns) != 0 || len(got.Terms) != 0 {
		t.Errorf("expected empty lists, got %+v", got)
	}
	data, _ := json.Marshal(got)
	if string(data) != `{"pn10":[],"root10":[]}` {
		t.Errorf("json = %s", data)
	}
}

func TestParseRepresentativePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    RepresentativePolicy
		wantErr bool
	}{
		{"", RepresentativeFirstSurface, false},
		{"Lemma", RepresentativeLemma, false},
		{"first_surface", RepresentativeFirstSurface, false},
		{"stem", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRepresentativePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRepresentativePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestCounter(t *testing.T) {
	c := NewCounter()
	c.Add("b", "B", 1)
	c.Add("a", "A", 2)
	c.Add("b", "ignored", 1)
	if c.Len() != 2 || c.Count("b") != 2 || c.Count("missing") != 0 {
		t.Errorf("unexpected counter state: len=%d b=%d", c.Len(), c.Count("b"))
	}
	got := c.MostCommon(0)
	want := []models.TermCount{{Term: "B", Count: 2}, {Term: "A", Count: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MostCommon = %v, want %v", got, want)
	}
}
