package grammargen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stencildev/stencil/pkg/extractor"
	"github.com/stencildev/stencil/pkg/kbnf"
	"github.com/stencildev/stencil/pkg/schema"
)

// JSONGenerator compiles a schema into grammar rules matching its JSON
// surface form. Every rule is prefixed with the fragment's nonterminal, so
// multiple schema fragments compose into one grammar without collision.
//
// Fields are emitted in declaration order and all declared fields are
// generated; optionality is a validation concern, not a surface-form one.
type JSONGenerator struct {
	schemas map[string]schema.Schema
}

// NewJSONGenerator creates a JSON grammar generator.
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{schemas: map[string]schema.Schema{}}
}

// Generate compiles the schema into rules rooted at nonterminal. The schema
// is remembered so Extractor can attach validation for the same nonterminal.
func (g *JSONGenerator) Generate(s schema.Schema, nonterminal string) (string, error) {
	w := &ruleWriter{prefix: nonterminal, terminals: map[string]bool{}}
	if err := w.objectRule(nonterminal, s.Fields); err != nil {
		return "", err
	}
	g.schemas[nonterminal] = s
	return kbnf.JoinRules(w.rules), nil
}

// Extractor returns an extractor that consumes one JSON value prefix,
// deserializes it and validates it against the schema Generate saw for this
// nonterminal.
func (g *JSONGenerator) Extractor(nonterminal, captureName string, deserialize Deserializer) extractor.Extractor {
	s, ok := g.schemas[nonterminal]
	return &jsonExtractor{
		nonterminal: nonterminal,
		captureName: captureName,
		deserialize: deserialize,
		validates:   ok,
		schema:      s,
	}
}

// ruleWriter accumulates the rules of one schema fragment.
type ruleWriter struct {
	prefix    string
	rules     []string
	terminals map[string]bool
}

// terminalPatterns are the scalar JSON terminals, emitted once per fragment
// on first use.
var terminalPatterns = map[string]string{
	"ws":      `[ \n\t]*`,
	"string":  `"([^"\\]|\\["\\/bfnrtu]|\\u[0-9a-fA-F]{4})*"`,
	"integer": `-?(0|[1-9][0-9]*)`,
	"number":  `-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?`,
}

// terminal returns the namespaced nonterminal for a scalar terminal,
// emitting its rule on first use.
func (w *ruleWriter) terminal(kind string) string {
	name := w.prefix + "_" + kind
	if w.terminals[kind] {
		return name
	}
	w.terminals[kind] = true
	if kind == "boolean" {
		w.rules = append(w.rules, kbnf.FormatRule(name, kbnf.QuoteLiteral("true")+" | "+kbnf.QuoteLiteral("false")))
	} else {
		w.rules = append(w.rules, kbnf.FormatRule(name, kbnf.RegexTerminal(terminalPatterns[kind])))
	}
	return name
}

// objectRule emits the rule for a JSON object with the given fields under
// name.
func (w *ruleWriter) objectRule(name string, fields []schema.Field) error {
	ws := w.terminal("ws")
	tokens := []string{kbnf.QuoteLiteral("{"), ws}
	for i, f := range fields {
		if i > 0 {
			tokens = append(tokens, kbnf.QuoteLiteral(","), ws)
		}
		valueRef, err := w.valueRule(name+"_"+sanitize(f.Name), f)
		if err != nil {
			return err
		}
		tokens = append(tokens,
			kbnf.QuoteLiteral(`"`+f.Name+`"`), ws,
			kbnf.QuoteLiteral(":"), ws,
			valueRef, ws)
	}
	tokens = append(tokens, kbnf.QuoteLiteral("}"))
	w.rules = append(w.rules, kbnf.FormatRule(name, strings.Join(tokens, " ")))
	return nil
}

// valueRule returns the reference for a field's value, emitting rules for
// composite types under name.
func (w *ruleWriter) valueRule(name string, f schema.Field) (string, error) {
	switch f.Type {
	case schema.TypeString:
		return w.terminal("string"), nil
	case schema.TypeInteger:
		return w.terminal("integer"), nil
	case schema.TypeNumber:
		return w.terminal("number"), nil
	case schema.TypeBoolean:
		return w.terminal("boolean"), nil
	case schema.TypeArray:
		if f.Items == nil {
			return "", fmt.Errorf("array field %q has no item type", f.Name)
		}
		itemRef, err := w.valueRule(name+"_item", *f.Items)
		if err != nil {
			return "", err
		}
		ws := w.terminal("ws")
		items := name + "_items"
		w.rules = append(w.rules, kbnf.FormatRule(items,
			itemRef+" | "+strings.Join([]string{itemRef, ws, kbnf.QuoteLiteral(","), ws, items}, " ")))
		w.rules = append(w.rules, kbnf.FormatRule(name,
			strings.Join([]string{kbnf.QuoteLiteral("["), ws, kbnf.QuoteLiteral("]")}, " ")+
				" | "+
				strings.Join([]string{kbnf.QuoteLiteral("["), ws, items, ws, kbnf.QuoteLiteral("]")}, " ")))
		return name, nil
	case schema.TypeObject:
		if err := w.objectRule(name, f.Properties); err != nil {
			return "", err
		}
		return name, nil
	default:
		return "", fmt.Errorf("field %q has unsupported type %q", f.Name, f.Type)
	}
}

// sanitize makes a field name safe for use inside a nonterminal.
func sanitize(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// jsonExtractor consumes exactly one JSON value from the front of the
// remaining text.
type jsonExtractor struct {
	nonterminal string
	captureName string
	deserialize Deserializer
	validates   bool
	schema      schema.Schema
}

func (e *jsonExtractor) Nonterminal() string { return e.nonterminal }

func (e *jsonExtractor) CaptureName() string { return e.captureName }

func (e *jsonExtractor) Reference() string { return e.nonterminal }

func (e *jsonExtractor) String() string { return "${" + e.nonterminal + "}" }

func (e *jsonExtractor) Extract(text string) (string, any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return text, nil, fmt.Errorf("no JSON value for %s: %v: %w", e.nonterminal, err, extractor.ErrNoMatch)
	}
	consumed := int(dec.InputOffset())

	value, err := e.deserialize(raw)
	if err != nil {
		return text, nil, fmt.Errorf("deserialize %s: %w", e.nonterminal, err)
	}

	if e.validates {
		if verrs := e.schema.Validate(value); len(verrs) > 0 {
			msgs := make([]string, len(verrs))
			for i, ve := range verrs {
				msgs[i] = ve.Error()
			}
			return text, nil, fmt.Errorf("validation of %s failed: %s", e.nonterminal, strings.Join(msgs, "; "))
		}
	}

	return text[consumed:], value, nil
}
