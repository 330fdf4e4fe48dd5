package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/proozl/internal/models"
	"github.com/hyperjump/proozl/internal/resultcache"
)

func sampleRecord() *models.ResultRecord {
	return &models.ResultRecord{
		ID:  "rec-1",
		Key: models.CacheKey{Query: "black hole", PageStart: 0},
		Documents: []models.Document{
			{
				Title:    "Hawking Radiation",
				Link:     "http://arxiv.org/abs/1",
				Abstract: "We study radiation near horizons.",
				Authors:  []string{"S. Hawking"},
			},
		},
		NumResults: 1,
		HitsWindow: 2,
		HitsTotal:  5,
	}
}

func TestWriteDocuments_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDocuments(&buf, sampleRecord(), OutputJSON); err != nil {
		t.Fatalf("WriteDocuments(json): %v", err)
	}
	var decoded models.ResultRecord
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.ID != "rec-1" || len(decoded.Documents) != 1 || decoded.HitsTotal != 5 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteDocuments_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDocuments(&buf, sampleRecord(), OutputText); err != nil {
		t.Fatalf("WriteDocuments(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{"1 papers", `"black hole"`, "5 total", "[1] Hawking Radiation", "S. Hawking", "radiation near horizons"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteDocuments_empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDocuments(&buf, &models.ResultRecord{}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No results found") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteRanking(t *testing.T) {
	key := models.CacheKey{Query: "black hole"}
	ranking := &models.RankingResult{
		ProperNouns: []models.TermCount{{Term: "Hawking", Count: 3}},
		Terms:       []models.TermCount{},
	}

	var buf bytes.Buffer
	if err := WriteRanking(&buf, key, ranking, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Proper nouns", "Hawking", "(none)"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}

	buf.Reset()
	if err := WriteRanking(&buf, key, ranking, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"pn10"`) || !strings.Contains(buf.String(), `"Hawking"`) {
		t.Errorf("json output = %s", buf.String())
	}

	buf.Reset()
	if err := WriteRanking(&buf, key, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No analysis yet") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteSweepReport(t *testing.T) {
	var buf bytes.Buffer
	report := resultcache.SweepReport{Scanned: 3, Updated: 2, Cleared: 1, Cursor: "abc"}
	if err := WriteSweepReport(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Updated: 2, Cleared: 1") || !strings.Contains(out, "--cursor abc") {
		t.Errorf("got %q", out)
	}

	buf.Reset()
	if err := WriteSweepReport(&buf, resultcache.SweepReport{Completed: true}, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["completed"] != true {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty", "", 5, ""},
		{"short", "hi", 5, "hi"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"multibyte", "Schrödinger", 7, "Schrödi..."},
		{"maxLen zero", "ab", 0, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.s, tt.maxLen)
			if got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"more", "one two three four", 3, "one two three..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
