package lexical

import (
	"fmt"

	"github.com/jdkato/prose/v2"
)

// ProseTagger tokenizes and tags English text with prose's averaged perceptron model.
// The model is decoded once by NewProseTagger and shared by every call.
type ProseTagger struct {
	model *prose.Model
}

// NewProseTagger decodes prose's bundled tagging model.
func NewProseTagger() (*ProseTagger, error) {
	doc, err := prose.NewDocument("",
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load tagging model: %w", err)
	}
	if doc.Model == nil {
		return nil, fmt.Errorf("failed to load tagging model: no model")
	}
	return &ProseTagger{model: doc.Model}, nil
}

// Tag implements Tagger. Text that prose cannot process yields no tokens.
func (t *ProseTagger) Tag(text string) []TaggedToken {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
		prose.UsingModel(t.model),
	)
	if err != nil {
		return nil
	}
	toks := doc.Tokens()
	out := make([]TaggedToken, len(toks))
	for i, tok := range toks {
		out[i] = TaggedToken{Text: tok.Text, Tag: tok.Tag}
	}
	return out
}
