// Package lexical tokenizes, tags and lemmatizes abstracts and applies the
// stopword, length and query-exclusion rules that feed the ranking engine.
package lexical

import (
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
)

// TaggedToken is a surface form paired with its Penn Treebank part-of-speech tag.
type TaggedToken struct {
	Text string
	Tag  string
}

// Tagger splits text into tokens and tags each one.
// Implementations must be deterministic and safe for concurrent use.
type Tagger interface {
	Tag(text string) []TaggedToken
}

// Lemmatizer maps a lowercased word to the base form used to group surface variants.
type Lemmatizer interface {
	Lemma(word string) string
}

// BundleOptions configures LoadBundle. Nil Tagger or Lemmatizer selects the defaults.
type BundleOptions struct {
	Tagger         Tagger
	Lemmatizer     Lemmatizer
	ExtraStopwords []string
}

// Bundle holds the lexical resources shared by every filter call.
// It is built once at process start and passed by reference.
type Bundle struct {
	stopwords  analysis.TokenMap
	tagger     Tagger
	lemmatizer Lemmatizer
}

// LoadBundle loads the English stop list, the lemmatizer and the tagger and checks
// that each of them is usable.
func LoadBundle(opts BundleOptions) (*Bundle, error) {
	stop := analysis.NewTokenMap()
	if err := stop.LoadBytes(en.EnglishStopWords); err != nil {
		return nil, fmt.Errorf("failed to load stopwords: %w", err)
	}
	for _, w := range opts.ExtraStopwords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			stop.AddToken(w)
		}
	}

	b := &Bundle{
		stopwords:  stop,
		tagger:     opts.Tagger,
		lemmatizer: opts.Lemmatizer,
	}
	if b.lemmatizer == nil {
		b.lemmatizer = SnowballLemmatizer{}
	}
	if b.tagger == nil {
		tagger, err := NewProseTagger()
		if err != nil {
			return nil, err
		}
		b.tagger = tagger
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bundle) validate() error {
	if len(b.stopwords) == 0 {
		return errors.New("stopword list is empty")
	}
	if b.lemmatizer.Lemma("papers") == "" {
		return errors.New("lemmatizer returned an empty lemma")
	}
	if len(b.tagger.Tag("Hawking studied black holes.")) == 0 {
		return errors.New("tagger produced no tokens")
	}
	return nil
}

// IsStopword reports whether the lowercase form of word is in the stop list.
func (b *Bundle) IsStopword(word string) bool {
	return b.stopwords[strings.ToLower(word)]
}

// Lemma returns the lemma of the lowercased word.
func (b *Bundle) Lemma(word string) string {
	return b.lemmatizer.Lemma(strings.ToLower(word))
}
