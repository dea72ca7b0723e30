package extractor

import (
	"fmt"
	"strings"
)

// Choice matches whichever of its alternatives matches first, in declaration
// order, and captures that alternative's value under its own capture name.
//
// Extraction re-matches alternatives textually; it does not recover which
// alternative the engine actually took during generation. When two
// alternatives can produce the same text, the earlier one wins.
type Choice struct {
	alternatives []Extractor
	captureName  string
	nonterminal  string
}

// NewChoice creates a choice extractor over the given alternatives.
func NewChoice(alternatives []Extractor, captureName, nonterminal string) *Choice {
	return &Choice{
		alternatives: alternatives,
		captureName:  captureName,
		nonterminal:  nonterminal,
	}
}

// Alternatives returns the constituent extractors in declaration order.
func (c *Choice) Alternatives() []Extractor { return c.alternatives }

func (c *Choice) Nonterminal() string { return c.nonterminal }

func (c *Choice) CaptureName() string { return c.captureName }

func (c *Choice) Reference() string { return c.nonterminal }

// String returns the placeholder form, so an extractor can be embedded in a
// template with fmt.Sprintf.
func (c *Choice) String() string { return "${" + c.nonterminal + "}" }

func (c *Choice) Extract(text string) (string, any, error) {
	for _, alt := range c.alternatives {
		rest, value, err := alt.Extract(text)
		if err == nil {
			return rest, value, nil
		}
	}
	refs := make([]string, len(c.alternatives))
	for i, alt := range c.alternatives {
		refs[i] = alt.Reference()
	}
	return text, nil, fmt.Errorf("no alternative of %s matches at %q: %w",
		strings.Join(refs, " | "), head(text), ErrNoMatch)
}
