// Package cli provides output formatting for the proozl commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/proozl/internal/models"
	"github.com/hyperjump/proozl/internal/resultcache"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteDocuments writes one cached search page to w.
func WriteDocuments(w io.Writer, rec *models.ResultRecord, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rec)
	}
	if rec.Empty() {
		fmt.Fprintln(w, "No results found")
		return nil
	}
	fmt.Fprintf(w, "\n%d papers for %q (start %d, hits %d this window, %d total)\n\n",
		len(rec.Documents), rec.Key.Query, rec.Key.PageStart, rec.HitsWindow, rec.HitsTotal)
	for i, doc := range rec.Documents {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s\n", rec.Key.PageStart+i+1, doc.Title)
		if len(doc.Authors) > 0 {
			fmt.Fprintf(w, "Authors: %s\n", Truncate(strings.Join(doc.Authors, ", "), 120))
		}
		fmt.Fprintf(w, "Link: %s\n", doc.Link)
		fmt.Fprintf(w, "\n%s\n\n", TruncateWords(doc.Abstract, 40))
	}
	return nil
}

// WriteRanking writes a ranking to w. A nil ranking prints the "no analysis" message.
func WriteRanking(w io.Writer, key models.CacheKey, ranking *models.RankingResult, format OutputFormat) error {
	if format == OutputJSON {
		if ranking == nil {
			return writeJSON(w, map[string]any{"key": key, "word_rankings": nil})
		}
		return writeJSON(w, models.AnalysisPayload{WordRankings: *ranking})
	}
	if ranking == nil {
		fmt.Fprintf(w, "No analysis yet for %q (start %d)\n", key.Query, key.PageStart)
		return nil
	}
	fmt.Fprintf(w, "\nAnalysis for %q (start %d)\n", key.Query, key.PageStart)
	writeTermColumn(w, "Proper nouns", ranking.ProperNouns)
	writeTermColumn(w, "Terms", ranking.Terms)
	return nil
}

func writeTermColumn(w io.Writer, title string, terms []models.TermCount) {
	fmt.Fprintf(w, "\n--- %s ---\n", title)
	if len(terms) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for i, tc := range terms {
		fmt.Fprintf(w, "%3d. %-24s %d\n", i+1, tc.Term, tc.Count)
	}
}

// WriteSweepReport writes the summary of a refresh sweep.
func WriteSweepReport(w io.Writer, report resultcache.SweepReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, map[string]any{
			"scanned":   report.Scanned,
			"updated":   report.Updated,
			"cleared":   report.Cleared,
			"failed":    report.Failed,
			"cursor":    string(report.Cursor),
			"completed": report.Completed,
		})
	}
	fmt.Fprintf(w, "%s (scanned %d, failed %d)\n", report, report.Scanned, report.Failed)
	if !report.Completed && report.Cursor != "" {
		fmt.Fprintf(w, "Sweep suspended; resume with --cursor %s\n", report.Cursor)
	}
	return nil
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
