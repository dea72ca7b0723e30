// Package formatter compiles literal/placeholder templates into a KBNF
// grammar plus an ordered extractor sequence, and provides the per-generation
// runtime that enforces the grammar token-by-token and re-parses the
// generated text into named captures.
package formatter

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"
	"unicode"

	"github.com/stencildev/stencil/internal/logger"
	"github.com/stencildev/stencil/pkg/extractor"
	"github.com/stencildev/stencil/pkg/grammargen"
	"github.com/stencildev/stencil/pkg/kbnf"
	"github.com/stencildev/stencil/pkg/schema"
)

// builderInstances guarantees nonterminal uniqueness across builders whose
// grammars may end up composed. Never reset.
var builderInstances atomic.Uint64

// Builder accumulates grammar fragments and their extractors, then builds
// formatters. It is not safe for concurrent mutation, but a fully built
// template may be built into any number of independent formatters.
type Builder struct {
	sequence     []string
	rules        []string
	captureNames map[string]extractor.Extractor
	nonterminals map[string]extractor.Extractor
	extractors   []extractor.Extractor
	counter      int
	instanceID   uint64
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		captureNames: map[string]extractor.Extractor{},
		nonterminals: map[string]extractor.Extractor{},
		instanceID:   builderInstances.Add(1) - 1,
	}
}

// Scanner states for AppendString.
const (
	stateNormal = iota
	stateEscaped
	stateDollar
	statePlaceholder
)

// AppendString appends a template string to the format. `${name}` references
// a previously declared fragment; a backslash takes the next character
// literally; a lone `$` not followed by `{` is plain text.
func (b *Builder) AppendString(s string) error {
	var (
		tokens     []string
		extractors []extractor.Extractor
		pending    strings.Builder
		name       strings.Builder
		state      = stateNormal
	)

	commitLiteral := func() {
		if pending.Len() == 0 {
			return
		}
		text := pending.String()
		quoted := kbnf.QuoteLiteral(text)
		tokens = append(tokens, quoted)
		extractors = append(extractors, extractor.NewLiteral(text, quoted))
		pending.Reset()
	}

	for _, r := range s {
		switch state {
		case stateNormal:
			switch r {
			case '\\':
				state = stateEscaped
			case '$':
				state = stateDollar
			default:
				pending.WriteRune(r)
			}
		case stateEscaped:
			pending.WriteRune(r)
			state = stateNormal
		case stateDollar:
			switch r {
			case '{':
				commitLiteral()
				name.Reset()
				state = statePlaceholder
			case '$':
				pending.WriteByte('$')
			case '\\':
				pending.WriteByte('$')
				state = stateEscaped
			default:
				pending.WriteByte('$')
				pending.WriteRune(r)
				state = stateNormal
			}
		case statePlaceholder:
			if r != '}' {
				name.WriteRune(r)
				continue
			}
			ext, ok := b.nonterminals[name.String()]
			if !ok {
				// Placeholders may also name a fragment by its capture name.
				ext, ok = b.captureNames[name.String()]
			}
			if !ok {
				return fmt.Errorf("placeholder ${%s}: %w", name.String(), ErrUnresolvedPlaceholder)
			}
			tokens = append(tokens, ext.Reference())
			extractors = append(extractors, ext)
			state = stateNormal
		}
	}

	switch state {
	case stateDollar:
		pending.WriteByte('$')
	case stateEscaped:
		pending.WriteByte('\\')
	case statePlaceholder:
		return fmt.Errorf("placeholder ${%s: %w", name.String(), ErrUnterminatedPlaceholder)
	}
	commitLiteral()

	b.sequence = append(b.sequence, tokens...)
	b.extractors = append(b.extractors, extractors...)
	return nil
}

// AppendLine appends a template string followed by a newline.
func (b *Builder) AppendLine(s string) error {
	return b.AppendString(s + "\n")
}

// AppendMultiline appends a multi-line template, preserving the first line's
// leading whitespace and removing the common leading whitespace from all
// subsequent lines. Tabs and spaces both count as whitespace but are not
// interchangeable. Fully blank lines are normalized to a bare newline.
func (b *Builder) AppendMultiline(s string) error {
	idx := strings.IndexByte(s, '\n')
	if idx < 0 {
		return b.AppendString(s)
	}
	return b.AppendString(s[:idx+1] + dedent(s[idx+1:]))
}

// dedent strips the longest common leading whitespace from all non-blank
// lines and normalizes blank lines to empty.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	margin := ""
	first := true
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := line[:len(line)-len(trimmed)]
		if first {
			margin = indent
			first = false
			continue
		}
		i := 0
		for i < len(margin) && i < len(indent) && margin[i] == indent[i] {
			i++
		}
		margin = margin[:i]
	}
	for i, line := range lines {
		if strings.TrimLeft(line, " \t") == "" {
			lines[i] = ""
		} else {
			lines[i] = strings.TrimPrefix(line, margin)
		}
	}
	return strings.Join(lines, "\n")
}

// newNonterminal derives a unique nonterminal for a combinator call,
// validating and reserving nothing yet: registration happens only after the
// whole call has succeeded.
func (b *Builder) newNonterminal(kind, captureName string) (string, error) {
	if captureName != "" {
		if !isIdentifier(captureName) {
			return "", fmt.Errorf("capture name %q: %w", captureName, ErrInvalidCaptureName)
		}
		if _, dup := b.captureNames[captureName]; dup {
			return "", fmt.Errorf("capture name %q: %w", captureName, ErrDuplicateCaptureName)
		}
		return fmt.Sprintf("__%s_%s_%d", kind, captureName, b.instanceID), nil
	}
	nt := fmt.Sprintf("__%s_%d_%d", kind, b.counter, b.instanceID)
	b.counter++
	return nt, nil
}

// register commits a fully constructed extractor and its rules.
func (b *Builder) register(ext extractor.Extractor, rules ...string) {
	if name := ext.CaptureName(); name != "" {
		b.captureNames[name] = ext
	}
	b.nonterminals[ext.Nonterminal()] = ext
	b.rules = append(b.rules, rules...)
}

// isIdentifier reports whether s is a valid capture name: letters, digits
// and underscores, not starting with a digit.
func isIdentifier(s string) bool {
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return s != ""
}

// Regex declares a fragment matching a regular expression. Pass "" for
// captureName to declare an anonymous fragment.
func (b *Builder) Regex(pattern, captureName string) (*extractor.Regex, error) {
	nt, err := b.newNonterminal("regex", captureName)
	if err != nil {
		return nil, err
	}
	ext, err := extractor.NewRegex(pattern, captureName, nt)
	if err != nil {
		return nil, err
	}
	b.register(ext, kbnf.FormatRule(nt, kbnf.RegexTerminal(pattern)))
	return ext, nil
}

// Choose declares an alternation over the given alternatives. Plain strings
// are treated as literals; anything else must be an extractor previously
// declared on a builder sharing this grammar.
func (b *Builder) Choose(captureName string, alternatives ...any) (*extractor.Choice, error) {
	if len(alternatives) == 0 {
		return nil, fmt.Errorf("choose: at least one alternative required")
	}
	alts := make([]extractor.Extractor, len(alternatives))
	for i, alt := range alternatives {
		switch v := alt.(type) {
		case string:
			alts[i] = extractor.NewLiteral(v, kbnf.QuoteLiteral(v))
		case extractor.Extractor:
			alts[i] = v
		default:
			return nil, fmt.Errorf("choose: alternative %d has unsupported type %T", i, alt)
		}
	}
	nt, err := b.newNonterminal("choice", captureName)
	if err != nil {
		return nil, err
	}
	refs := make([]string, len(alts))
	for i, alt := range alts {
		refs[i] = alt.Reference()
	}
	ext := extractor.NewChoice(alts, captureName, nt)
	b.register(ext, kbnf.FormatRule(nt, strings.Join(refs, " | ")))
	return ext, nil
}

// TextOption configures a bounded free-text fragment.
type TextOption func(*textConfig)

type textConfig struct {
	stops    []string
	excludes []string
}

// WithStop adds strings the generated text stops at. Stop strings are
// included in both the generated text and the captured value.
func WithStop(stops ...string) TextOption {
	return func(c *textConfig) {
		c.stops = append(c.stops, stops...)
	}
}

// WithoutContent adds strings the generated text may never contain. They
// never appear in the captured value.
func WithoutContent(excludes ...string) TextOption {
	return func(c *textConfig) {
		c.excludes = append(c.excludes, excludes...)
	}
}

// Text declares a free-text fragment. Without options it matches any string;
// with stop or exclusion sets it matches any text not containing them,
// optionally terminated by one of the stop strings.
func (b *Builder) Text(captureName string, opts ...TextOption) (*extractor.Regex, error) {
	var cfg textConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	nt, err := b.newNonterminal("str", captureName)
	if err != nil {
		return nil, err
	}

	var capturePattern, body string
	var extraRules []string
	if len(cfg.stops) == 0 && len(cfg.excludes) == 0 {
		capturePattern = `(?s).*`
		body = kbnf.RegexTerminal(".*")
	} else {
		all := append(slices.Clone(cfg.stops), cfg.excludes...)
		metas := make([]string, len(all))
		quoted := make([]string, len(all))
		for i, s := range all {
			metas[i] = regexp.QuoteMeta(s)
			quoted[i] = kbnf.QuoteLiteral(s)
		}
		capturePattern = `(?s).*?(?:` + strings.Join(metas, "|") + `)`
		excepted := nt + "_excepted"
		extraRules = append(extraRules, kbnf.FormatRule(excepted, strings.Join(quoted, " | ")))
		body = kbnf.ExceptedTerminal(excepted, cfg.stops)
	}

	ext, err := extractor.NewRegex(capturePattern, captureName, nt)
	if err != nil {
		return nil, err
	}
	b.register(ext, append(extraRules, kbnf.FormatRule(nt, body))...)
	return ext, nil
}

// Schema declares a structured fragment whose grammar and extractor come
// from the generator collaborator. The extracted text is deserialized into
// the schema's target type.
func (b *Builder) Schema(s schema.Schema, gen grammargen.Generator, captureName string) (extractor.Extractor, error) {
	nt, err := b.newNonterminal("schema", captureName)
	if err != nil {
		return nil, err
	}
	fragment, err := gen.Generate(s, nt)
	if err != nil {
		return nil, fmt.Errorf("schema fragment for %s: %w", nt, err)
	}
	ext := gen.Extractor(nt, captureName, s.Unmarshal)
	b.register(ext, fragment)
	return ext, nil
}

// Grammar compiles the accumulated fragments into one grammar document with
// a synthetic start rule referencing every top-level fragment in order.
func (b *Builder) Grammar() (string, error) {
	if len(b.sequence) == 0 {
		return "", ErrEmptyTemplate
	}
	rules := make([]string, 0, len(b.rules)+1)
	rules = append(rules, b.rules...)
	rules = append(rules, kbnf.FormatRule("start", strings.Join(b.sequence, " ")))
	return kbnf.JoinRules(rules), nil
}

// Extractors returns a copy of the extractor sequence, one entry per
// occurrence in the template, in extraction order.
func (b *Builder) Extractors() []extractor.Extractor {
	return slices.Clone(b.extractors)
}

// Decompose runs the extraction pass over already generated text, without an
// engine. The text must match the compiled grammar exactly.
func (b *Builder) Decompose(output string) (Captures, error) {
	return decompose(b.extractors, output)
}

// DecodeFunc turns an ordered token ID sequence back into text. It must be
// pure and deterministic.
type DecodeFunc func(tokenIDs []uint32) string

// BuildOption configures engine construction at build time.
type BuildOption func(*buildConfig)

type buildConfig struct {
	engineName   string
	factory      kbnf.Factory
	engineConfig *kbnf.Config
}

// WithEngine selects a registered engine factory by name. The default is
// "kbnf".
func WithEngine(name string) BuildOption {
	return func(c *buildConfig) {
		c.engineName = name
	}
}

// WithEngineFactory supplies an engine factory directly, bypassing the
// registry.
func WithEngineFactory(f kbnf.Factory) BuildOption {
	return func(c *buildConfig) {
		c.factory = f
	}
}

// WithEngineConfig supplies engine construction options.
func WithEngineConfig(cfg *kbnf.Config) BuildOption {
	return func(c *buildConfig) {
		c.engineConfig = cfg
	}
}

// Build compiles the grammar, constructs an engine over it and returns a
// formatter ready to accept tokens. The builder is not consumed: it can be
// appended to and built again, and every built formatter is independent.
func (b *Builder) Build(vocab kbnf.Vocabulary, decode DecodeFunc, opts ...BuildOption) (*Formatter, error) {
	grammar, err := b.Grammar()
	if err != nil {
		return nil, err
	}

	cfg := buildConfig{engineName: "kbnf"}
	for _, opt := range opts {
		opt(&cfg)
	}

	var engine kbnf.Engine
	if cfg.factory != nil {
		engine, err = cfg.factory(grammar, vocab, cfg.engineConfig)
	} else {
		engine, err = kbnf.New(cfg.engineName, grammar, vocab, cfg.engineConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("engine construction failed: %w", err)
	}

	logger.Debug("formatter built",
		"rules", len(b.rules),
		"extractors", len(b.extractors),
		"grammar_size", len(grammar))

	return &Formatter{
		extractors: slices.Clone(b.extractors),
		engine:     engine,
		decode:     decode,
		grammar:    grammar,
		captures:   Captures{},
	}, nil
}
