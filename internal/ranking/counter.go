package ranking

import (
	"sort"

	"github.com/hyperjump/proozl/internal/models"
)

// Counter is a frequency table that remembers the order in which keys were first added,
// so that ties are broken by first occurrence instead of map iteration order.
type Counter struct {
	index   map[string]int
	entries []counterEntry
}

type counterEntry struct {
	key   string
	label string
	count int
}

// NewCounter returns an empty Counter.
func NewCounter() *Counter {
	return &Counter{index: make(map[string]int)}
}

// Add increments key by n. The label recorded on the first Add for a key is the one
// reported by MostCommon.
func (c *Counter) Add(key, label string, n int) {
	if i, ok := c.index[key]; ok {
		c.entries[i].count += n
		return
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, counterEntry{key: key, label: label, count: n})
}

// Len returns the number of distinct keys.
func (c *Counter) Len() int {
	return len(c.entries)
}

// Count returns the current count for key.
func (c *Counter) Count(key string) int {
	if i, ok := c.index[key]; ok {
		return c.entries[i].count
	}
	return 0
}

// MostCommon returns up to n entries ordered by count descending, then first occurrence.
// A non-positive n returns every entry.
func (c *Counter) MostCommon(n int) []models.TermCount {
	sorted := append([]counterEntry(nil), c.entries...)
	// entries are already in first-occurrence order; a stable sort keeps it for ties
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].count > sorted[j].count
	})
	if n > 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	out := make([]models.TermCount, len(sorted))
	for i, e := range sorted {
		out[i] = models.TermCount{Term: e.label, Count: e.count}
	}
	return out
}
