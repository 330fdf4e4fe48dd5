// Package ranking turns a set of abstracts into a deterministic summary of the most
// frequent proper nouns and topic terms.
package ranking

import (
	"fmt"
	"strings"

	"github.com/hyperjump/proozl/internal/lexical"
	"github.com/hyperjump/proozl/internal/models"
)

// DefaultTopN is the length of each ranked list.
const DefaultTopN = 10

// RepresentativePolicy selects the label shown for a lemma group.
type RepresentativePolicy string

const (
	// RepresentativeFirstSurface labels a group with the first surface form seen for it.
	RepresentativeFirstSurface RepresentativePolicy = "first_surface"
	// RepresentativeLemma labels a group with its lowercased group key. With the default
	// Snowball lemmatizer that key is a stem such as "comput", not a dictionary word.
	RepresentativeLemma RepresentativePolicy = "lemma"
)

// ParseRepresentativePolicy validates a policy name from configuration.
// An empty name selects RepresentativeFirstSurface.
func ParseRepresentativePolicy(name string) (RepresentativePolicy, error) {
	switch p := RepresentativePolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return RepresentativeFirstSurface, nil
	case RepresentativeFirstSurface, RepresentativeLemma:
		return p, nil
	default:
		return "", fmt.Errorf("unknown representative policy %q", name)
	}
}

// Options configures an Engine.
type Options struct {
	TopN           int
	Representative RepresentativePolicy
}

func (o *Options) applyDefaults() {
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.Representative == "" {
		o.Representative = RepresentativeFirstSurface
	}
}

// Engine ranks document sets using a shared lexical bundle.
type Engine struct {
	bundle *lexical.Bundle
	opts   Options
}

// NewEngine creates an Engine. bundle must come from lexical.LoadBundle.
func NewEngine(bundle *lexical.Bundle, opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{bundle: bundle, opts: opts}
}

// Rank filters the abstracts of docs against query and returns the top proper nouns and
// terms. The output depends only on the order and content of docs and on query.
func (e *Engine) Rank(docs []models.Document, query string) models.RankingResult {
	return RankTokens(e.bundle.Filter(docs, query), e.opts)
}

// RankTokens ranks already filtered tokens.
func RankTokens(tokens lexical.FilteredTokens, opts Options) models.RankingResult {
	opts.applyDefaults()

	proper := NewCounter()
	for _, pn := range tokens.ProperNouns {
		proper.Add(pn, pn, 1)
	}

	terms := NewCounter()
	if tokens.Groups != nil {
		for _, lemma := range tokens.Groups.Lemmas() {
			forms := tokens.Groups.Forms(lemma)
			if len(forms) == 0 {
				continue
			}
			label := forms[0]
			if opts.Representative == RepresentativeLemma {
				label = strings.ToLower(lemma)
			}
			terms.Add(lemma, label, len(forms))
		}
	}

	return models.RankingResult{
		ProperNouns: proper.MostCommon(opts.TopN),
		Terms:       terms.MostCommon(opts.TopN),
	}
}
