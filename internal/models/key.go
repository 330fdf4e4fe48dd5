package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidKey is returned when a cache key cannot be built from caller input.
var ErrInvalidKey = errors.New("invalid cache key")

// CacheKey identifies one cached search slice in both cache tiers.
// Build it with NewCacheKey so that casing and whitespace never produce distinct keys.
type CacheKey struct {
	Query     string `json:"query_string"`
	PageStart int    `json:"page_start"`
}

// NewCacheKey lowercases and trims query, collapses inner whitespace runs to a single
// space, and validates that pageStart is non-negative.
func NewCacheKey(query string, pageStart int) (CacheKey, error) {
	q := NormalizeQuery(query)
	if q == "" {
		return CacheKey{}, fmt.Errorf("%w: query cannot be empty", ErrInvalidKey)
	}
	if pageStart < 0 {
		return CacheKey{}, fmt.Errorf("%w: page start %d is negative", ErrInvalidKey, pageStart)
	}
	return CacheKey{Query: q, PageStart: pageStart}, nil
}

// NormalizeQuery returns the canonical form of a caller-supplied query string.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s@%d", k.Query, k.PageStart)
}
