package kbnf

import (
	"fmt"
	"strings"
)

// Grammar text contract:
//
//	name := production;
//
// where a production is a space-joined sequence of quoted literal strings,
// nonterminal names and #'...' pattern terminals, with alternation via |.
// Bounded free-text rules use except!(excepted_nonterminal) with an optional
// ('stop'|'stop') suffix alternation. The final document always contains
// exactly one start rule.

// FormatRule renders a single grammar rule.
func FormatRule(name, body string) string {
	return fmt.Sprintf("%s := %s;", name, body)
}

// JoinRules assembles rule texts into one grammar document.
func JoinRules(rules []string) string {
	return strings.Join(rules, "\n")
}

// QuoteLiteral renders a string as a single-quoted KBNF literal.
func QuoteLiteral(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}

// RegexTerminal renders a regex pattern as a #'...' terminal. The pattern is
// passed through unaltered except for quote escaping, so the engine sees the
// same pattern the extractor matches with.
func RegexTerminal(pattern string) string {
	return "#'" + strings.ReplaceAll(pattern, "'", `\'`) + "'"
}

// ExceptedTerminal renders the bounded free-text construct: any text not
// containing a string matched by the excepted nonterminal, optionally
// followed by one of the stop literals.
func ExceptedTerminal(exceptedNonterminal string, stops []string) string {
	var sb strings.Builder
	sb.WriteString("except!(")
	sb.WriteString(exceptedNonterminal)
	sb.WriteByte(')')
	if len(stops) > 0 {
		quoted := make([]string, len(stops))
		for i, s := range stops {
			quoted[i] = QuoteLiteral(s)
		}
		sb.WriteByte('(')
		sb.WriteString(strings.Join(quoted, "|"))
		sb.WriteByte(')')
	}
	return sb.String()
}
