package lexical

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/proozl/internal/models"
)

// MinTokenLength is the shortest token (in runes) that survives filtering.
const MinTokenLength = 4

// TermGroups maps lemmas to the surface forms observed for them, preserving the order in
// which lemmas were first seen and the order of forms within each lemma.
type TermGroups struct {
	order []string
	forms map[string][]string
}

// NewTermGroups returns an empty TermGroups.
func NewTermGroups() *TermGroups {
	return &TermGroups{forms: make(map[string][]string)}
}

// Append records surface as an occurrence of lemma.
func (g *TermGroups) Append(lemma, surface string) {
	if _, ok := g.forms[lemma]; !ok {
		g.order = append(g.order, lemma)
	}
	g.forms[lemma] = append(g.forms[lemma], surface)
}

// Lemmas returns lemmas in first-seen order.
func (g *TermGroups) Lemmas() []string {
	return append([]string(nil), g.order...)
}

// Forms returns the surface forms recorded for lemma, duplicates included.
func (g *TermGroups) Forms(lemma string) []string {
	return append([]string(nil), g.forms[lemma]...)
}

// Len returns the number of distinct lemmas.
func (g *TermGroups) Len() int {
	return len(g.order)
}

// FilteredTokens is the output of Filter.
type FilteredTokens struct {
	ProperNouns []string
	Groups      *TermGroups
}

// Filter tokenizes and tags every abstract in document order and keeps the tokens that
// are alphanumeric, at least MinTokenLength runes long, not stopwords and not inflections
// of a query word. NNP/NNPS tokens go to ProperNouns; the rest are grouped by lemma.
func (b *Bundle) Filter(docs []models.Document, query string) FilteredTokens {
	out := FilteredTokens{Groups: NewTermGroups()}
	if len(docs) == 0 {
		return out
	}

	excluded := make(map[string]struct{})
	for _, qw := range strings.Fields(query) {
		excluded[b.Lemma(qw)] = struct{}{}
	}

	for _, doc := range docs {
		for _, tok := range b.tagger.Tag(doc.Abstract) {
			if !keep(b, tok.Text) {
				continue
			}
			lemma := b.Lemma(tok.Text)
			if _, skip := excluded[lemma]; skip {
				continue
			}
			if IsProperNoun(tok.Tag) {
				out.ProperNouns = append(out.ProperNouns, tok.Text)
				continue
			}
			out.Groups.Append(lemma, tok.Text)
		}
	}
	return out
}

func keep(b *Bundle, word string) bool {
	return isAlphanumeric(word) &&
		utf8.RuneCountInString(word) >= MinTokenLength &&
		!b.IsStopword(word)
}

// IsProperNoun reports whether tag is a singular or plural proper noun tag.
func IsProperNoun(tag string) bool {
	return tag == "NNP" || tag == "NNPS"
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
