package extractor

import (
	"fmt"
	"regexp"
)

// Regex matches a pattern anchored at the start of the remaining text and
// captures the matched substring.
type Regex struct {
	pattern     string
	re          *regexp.Regexp
	captureName string
	nonterminal string
}

// NewRegex creates a regex extractor bound to a nonterminal. The pattern is
// compiled anchored at the start of the input.
func NewRegex(pattern, captureName, nonterminal string) (*Regex, error) {
	re, err := regexp.Compile(`\A(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return &Regex{
		pattern:     pattern,
		re:          re,
		captureName: captureName,
		nonterminal: nonterminal,
	}, nil
}

// Pattern returns the original, unanchored pattern.
func (r *Regex) Pattern() string { return r.pattern }

func (r *Regex) Nonterminal() string { return r.nonterminal }

func (r *Regex) CaptureName() string { return r.captureName }

func (r *Regex) Reference() string { return r.nonterminal }

// String returns the placeholder form, so an extractor can be embedded in a
// template with fmt.Sprintf.
func (r *Regex) String() string { return "${" + r.nonterminal + "}" }

func (r *Regex) Extract(text string) (string, any, error) {
	loc := r.re.FindStringIndex(text)
	if loc == nil {
		return text, nil, fmt.Errorf("pattern %q does not match at %q: %w", r.pattern, head(text), ErrNoMatch)
	}
	return text[loc[1]:], text[:loc[1]], nil
}
