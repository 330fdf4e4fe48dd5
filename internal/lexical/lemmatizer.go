package lexical

import "github.com/kljensen/snowball/english"

// SnowballLemmatizer groups inflections with the Snowball English stemmer. The result is
// a stem, not a dictionary lemma: "holes" and "hole" share "hole"; "computed" and
// "computing" share "comput".
type SnowballLemmatizer struct{}

// Lemma implements Lemmatizer.
func (SnowballLemmatizer) Lemma(word string) string {
	return english.Stem(word, true)
}
