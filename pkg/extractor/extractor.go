// Package extractor provides the units that both define a grammar fragment
// and recover a value from the text that fragment matched. A formatter runs
// its extractors in declaration order over the generated output; each one
// consumes a prefix and hands the remainder to the next.
package extractor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMatch is returned when the remaining text does not start with
// something the extractor's grammar fragment could have produced.
var ErrNoMatch = errors.New("text does not match extractor")

// Extractor consumes a prefix of the generated output and returns the
// remainder plus the extracted value. Extractors are immutable after
// construction and safe to share between formatters.
type Extractor interface {
	// Nonterminal returns the grammar fragment identifier owned by this
	// extractor, or "" for literal extractors, which are inlined into
	// productions instead of owning a rule.
	Nonterminal() string

	// CaptureName returns the name the extracted value is surfaced under,
	// or "" if the extractor does not capture.
	CaptureName() string

	// Reference returns the token used to reference this extractor inside a
	// grammar production.
	Reference() string

	// Extract consumes a prefix of text and returns the remaining suffix
	// plus the extracted value.
	Extract(text string) (rest string, value any, err error)
}

// Literal matches one exact string.
type Literal struct {
	text      string
	reference string
}

// NewLiteral creates a literal extractor. The reference is the quoted form
// embedded directly into productions.
func NewLiteral(text, reference string) *Literal {
	return &Literal{text: text, reference: reference}
}

// Text returns the literal string.
func (l *Literal) Text() string { return l.text }

func (l *Literal) Nonterminal() string { return "" }

func (l *Literal) CaptureName() string { return "" }

func (l *Literal) Reference() string { return l.reference }

func (l *Literal) Extract(text string) (string, any, error) {
	if !strings.HasPrefix(text, l.text) {
		return text, nil, fmt.Errorf("expected literal %q at %q: %w", l.text, head(text), ErrNoMatch)
	}
	return text[len(l.text):], l.text, nil
}

// head truncates text for error messages.
func head(s string) string {
	if len(s) <= 40 {
		return s
	}
	return s[:40] + "..."
}
