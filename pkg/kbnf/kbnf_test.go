package kbnf

import (
	"errors"
	"strings"
	"testing"
)

// --- Grammar Text Tests ---

func TestFormatRule(t *testing.T) {
	got := FormatRule("start", "'a' b")
	want := "start := 'a' b;"
	if got != want {
		t.Errorf("FormatRule() = %q, want %q", got, want)
	}
}

func TestJoinRules(t *testing.T) {
	got := JoinRules([]string{"a := 'x';", "start := a;"})
	want := "a := 'x';\nstart := a;"
	if got != want {
		t.Errorf("JoinRules() = %q, want %q", got, want)
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "'hello'"},
		{"empty", "", "''"},
		{"single quote", "it's", `'it\'s'`},
		{"backslash", `a\b`, `'a\\b'`},
		{"newline", "a\nb", `'a\nb'`},
		{"carriage return", "a\rb", `'a\rb'`},
		{"tab", "a\tb", `'a\tb'`},
		{"control char", "a\x01b", `'a\u0001b'`},
		{"unicode", "héllo", "'héllo'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteLiteral(tt.input); got != tt.want {
				t.Errorf("QuoteLiteral(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRegexTerminal(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    string
	}{
		{"plain", "[a-z]+", "#'[a-z]+'"},
		{"quote escaped", "it's", `#'it\'s'`},
		{"backslash untouched", `\d+`, `#'\d+'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RegexTerminal(tt.pattern); got != tt.want {
				t.Errorf("RegexTerminal(%q) = %q, want %q", tt.pattern, got, tt.want)
			}
		})
	}
}

func TestExceptedTerminal(t *testing.T) {
	got := ExceptedTerminal("__str_x_0_excepted", []string{";", "\n"})
	want := `except!(__str_x_0_excepted)(';'|'\n')`
	if got != want {
		t.Errorf("ExceptedTerminal() = %q, want %q", got, want)
	}
}

func TestExceptedTerminal_NoStops(t *testing.T) {
	got := ExceptedTerminal("__str_x_0_excepted", nil)
	want := "except!(__str_x_0_excepted)"
	if got != want {
		t.Errorf("ExceptedTerminal() = %q, want %q", got, want)
	}
}

// --- AcceptResult Tests ---

func TestAcceptResult_String(t *testing.T) {
	tests := []struct {
		result AcceptResult
		want   string
	}{
		{Accepted, "accepted"},
		{Rejected, "rejected"},
		{Finished, "finished"},
		{AcceptResult(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.result.String(); got != tt.want {
			t.Errorf("AcceptResult(%d).String() = %q, want %q", tt.result, got, tt.want)
		}
	}
}

// --- Vocabulary Tests ---

func TestMapVocabulary(t *testing.T) {
	vocab := MapVocabulary{
		0: []byte("a"),
		1: []byte("bc"),
	}

	if vocab.Size() != 2 {
		t.Errorf("Size() = %d, want 2", vocab.Size())
	}

	b, ok := vocab.Token(1)
	if !ok || string(b) != "bc" {
		t.Errorf("Token(1) = %q, %v", b, ok)
	}

	if _, ok := vocab.Token(99); ok {
		t.Error("Token(99) should not exist")
	}
}

// --- Registry Tests ---

type nopEngine struct{}

func (nopEngine) TryAcceptToken(uint32) AcceptResult          { return Accepted }
func (nopEngine) TryAcceptBytes([]byte) AcceptResult          { return Accepted }
func (nopEngine) ComputeAllowedTokens()                       {}
func (nopEngine) AllowedTokensSinceLastComputation() []uint32 { return nil }
func (nopEngine) TokensToFinishSinceLastComputation() []uint32 {
	return nil
}
func (nopEngine) MaskLogits(logits []float32) []float32 { return logits }
func (nopEngine) IsFinished() bool                      { return false }
func (nopEngine) Reset()                                {}

func TestRegistry_RegisterAndNew(t *testing.T) {
	var gotGrammar string
	Register("test-engine", func(grammar string, vocab Vocabulary, cfg *Config) (Engine, error) {
		gotGrammar = grammar
		return nopEngine{}, nil
	})

	engine, err := New("test-engine", "start := 'a';", MapVocabulary{}, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if engine == nil {
		t.Fatal("New() returned nil engine")
	}

	if gotGrammar != "start := 'a';" {
		t.Errorf("factory received grammar %q", gotGrammar)
	}
}

func TestRegistry_UnknownEngine(t *testing.T) {
	_, err := New("no-such-engine", "start := 'a';", MapVocabulary{}, nil)
	if err == nil {
		t.Fatal("expected error for unknown engine")
	}
	if !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("expected ErrUnknownEngine, got %v", err)
	}

	if !strings.Contains(err.Error(), "no-such-engine") {
		t.Errorf("expected engine name in error, got %v", err)
	}
}

func TestRegistry_Available(t *testing.T) {
	Register("zz-engine", func(string, Vocabulary, *Config) (Engine, error) {
		return nopEngine{}, nil
	})
	Register("aa-engine", func(string, Vocabulary, *Config) (Engine, error) {
		return nopEngine{}, nil
	})

	names := Available()

	var aaIdx, zzIdx = -1, -1
	for i, name := range names {
		switch name {
		case "aa-engine":
			aaIdx = i
		case "zz-engine":
			zzIdx = i
		}
	}

	if aaIdx < 0 || zzIdx < 0 {
		t.Fatalf("registered engines missing from Available(): %v", names)
	}
	if aaIdx > zzIdx {
		t.Errorf("expected sorted names, got %v", names)
	}
}
