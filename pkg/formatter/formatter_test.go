package formatter

import (
	"strings"
	"testing"

	"github.com/stencildev/stencil/pkg/kbnf"
)

// fakeEngine is a scripted engine: it finishes after a fixed number of
// accepted tokens and records interactions.
type fakeEngine struct {
	finishAfter int // number of TryAcceptToken calls until Finished
	calls       int
	finished    bool
	resets      int
	computes    int
	allowed     []uint32
	finishers   []uint32
}

func (e *fakeEngine) TryAcceptToken(id uint32) kbnf.AcceptResult {
	e.calls++
	if e.calls >= e.finishAfter {
		e.finished = true
		return kbnf.Finished
	}
	return kbnf.Accepted
}

func (e *fakeEngine) TryAcceptBytes(b []byte) kbnf.AcceptResult {
	return kbnf.Accepted
}

func (e *fakeEngine) ComputeAllowedTokens() { e.computes++ }

func (e *fakeEngine) AllowedTokensSinceLastComputation() []uint32 { return e.allowed }

func (e *fakeEngine) TokensToFinishSinceLastComputation() []uint32 { return e.finishers }

func (e *fakeEngine) MaskLogits(logits []float32) []float32 { return logits }

func (e *fakeEngine) IsFinished() bool { return e.finished }

func (e *fakeEngine) Reset() {
	e.resets++
	e.calls = 0
	e.finished = false
}

// buildFixture compiles a template into a formatter over the given vocabulary
// and scripted engine.
func buildFixture(t *testing.T, engine *fakeEngine, vocab kbnf.MapVocabulary, setup func(*Builder) error) *Formatter {
	t.Helper()

	b := NewBuilder()
	if err := setup(b); err != nil {
		t.Fatalf("template setup error = %v", err)
	}

	decode := func(ids []uint32) string {
		var sb strings.Builder
		for _, id := range ids {
			tok, _ := vocab.Token(id)
			sb.Write(tok)
		}
		return sb.String()
	}

	f, err := b.Build(vocab, decode, WithEngineFactory(
		func(grammar string, v kbnf.Vocabulary, cfg *kbnf.Config) (kbnf.Engine, error) {
			return engine, nil
		}))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return f
}

// --- AcceptToken Tests ---

func TestFormatter_AcceptToken_CapturesOnCompletion(t *testing.T) {
	vocab := kbnf.MapVocabulary{
		0: []byte("City: "),
		1: []byte("Pa"),
		2: []byte("ris"),
	}
	engine := &fakeEngine{finishAfter: 3}

	f := buildFixture(t, engine, vocab, func(b *Builder) error {
		if _, err := b.Regex("[A-Z][a-z]+", "city"); err != nil {
			return err
		}
		return b.AppendString("City: ${city}")
	})

	for i, id := range []uint32{0, 1} {
		result, err := f.AcceptToken(id)
		if err != nil {
			t.Fatalf("AcceptToken(%d) error = %v", i, err)
		}
		if result != kbnf.Accepted {
			t.Fatalf("AcceptToken(%d) = %v, want accepted", i, result)
		}
	}

	result, err := f.AcceptToken(2)
	if err != nil {
		t.Fatalf("final AcceptToken error = %v", err)
	}
	if result != kbnf.Finished {
		t.Fatalf("final AcceptToken = %v, want finished", result)
	}

	if !f.IsCompleted() {
		t.Error("IsCompleted() = false after finish")
	}

	if got := f.Captures()["city"].Value(); got != "Paris" {
		t.Errorf("city = %v, want %q", got, "Paris")
	}

	ids := f.TokenIDs()
	if len(ids) != 3 || ids[0] != 0 || ids[2] != 2 {
		t.Errorf("TokenIDs() = %v", ids)
	}
}

func TestFormatter_AcceptToken_BoundedText(t *testing.T) {
	vocab := kbnf.MapVocabulary{
		0: []byte("abc"),
		1: []byte(";"),
	}
	engine := &fakeEngine{finishAfter: 2}

	f := buildFixture(t, engine, vocab, func(b *Builder) error {
		if _, err := b.Text("s", WithStop(";")); err != nil {
			return err
		}
		return b.AppendString("${s}")
	})

	if _, err := f.AcceptToken(0); err != nil {
		t.Fatalf("AcceptToken error = %v", err)
	}
	result, err := f.AcceptToken(1)
	if err != nil {
		t.Fatalf("AcceptToken error = %v", err)
	}
	if result != kbnf.Finished {
		t.Fatalf("result = %v, want finished", result)
	}

	// The stop string is part of the captured value.
	if got := f.Captures()["s"].Value(); got != "abc;" {
		t.Errorf("s = %v, want %q", got, "abc;")
	}
}

func TestFormatter_AcceptToken_RepeatedCapture(t *testing.T) {
	vocab := kbnf.MapVocabulary{
		0: []byte("12"),
		1: []byte("-"),
		2: []byte("34"),
	}
	engine := &fakeEngine{finishAfter: 3}

	f := buildFixture(t, engine, vocab, func(b *Builder) error {
		if _, err := b.Regex("[0-9]+", "x"); err != nil {
			return err
		}
		return b.AppendString("${x}-${x}")
	})

	for _, id := range []uint32{0, 1, 2} {
		if _, err := f.AcceptToken(id); err != nil {
			t.Fatalf("AcceptToken error = %v", err)
		}
	}

	v := f.Captures()["x"]
	if !v.Repeated() {
		t.Fatal("expected repeated capture")
	}
	values := v.Values()
	if len(values) != 2 || values[0] != "12" || values[1] != "34" {
		t.Errorf("x = %v", values)
	}
}

func TestFormatter_AcceptToken_ExtractionFailure(t *testing.T) {
	vocab := kbnf.MapVocabulary{
		0: []byte("nonsense"),
	}
	engine := &fakeEngine{finishAfter: 1}

	f := buildFixture(t, engine, vocab, func(b *Builder) error {
		if _, err := b.Regex("[0-9]+", "x"); err != nil {
			return err
		}
		return b.AppendString("n=${x}")
	})

	result, err := f.AcceptToken(0)
	if err == nil {
		t.Fatal("expected extraction error for non-matching output")
	}
	// The engine verdict still reaches the caller.
	if result != kbnf.Finished {
		t.Errorf("result = %v, want finished", result)
	}
	if len(f.Captures()) != 0 {
		t.Errorf("expected no captures after failed extraction, got %v", f.Captures())
	}
}

// --- Engine Passthrough Tests ---

func TestFormatter_EnginePassthrough(t *testing.T) {
	engine := &fakeEngine{
		finishAfter: 99,
		allowed:     []uint32{1, 2, 3},
		finishers:   []uint32{3},
	}
	vocab := kbnf.MapVocabulary{0: []byte("x")}

	f := buildFixture(t, engine, vocab, func(b *Builder) error {
		return b.AppendString("x")
	})

	f.ComputeAllowedTokens()
	if engine.computes != 1 {
		t.Errorf("computes = %d, want 1", engine.computes)
	}

	allowed := f.AllowedTokens()
	if len(allowed) != 3 {
		t.Errorf("AllowedTokens() = %v", allowed)
	}

	finishers := f.TokensToFinish()
	if len(finishers) != 1 || finishers[0] != 3 {
		t.Errorf("TokensToFinish() = %v", finishers)
	}

	logits := []float32{0.1, 0.2}
	if got := f.MaskLogits(logits); len(got) != 2 {
		t.Errorf("MaskLogits() = %v", got)
	}

	if f.AcceptBytes([]byte("x")) != kbnf.Accepted {
		t.Error("AcceptBytes() should pass through to the engine")
	}
}

// --- Reset Tests ---

func TestFormatter_Reset(t *testing.T) {
	vocab := kbnf.MapVocabulary{
		0: []byte("42"),
	}
	engine := &fakeEngine{finishAfter: 1}

	f := buildFixture(t, engine, vocab, func(b *Builder) error {
		if _, err := b.Regex("[0-9]+", "x"); err != nil {
			return err
		}
		return b.AppendString("${x}")
	})

	if _, err := f.AcceptToken(0); err != nil {
		t.Fatalf("AcceptToken error = %v", err)
	}
	if len(f.Captures()) == 0 {
		t.Fatal("expected captures before reset")
	}

	f.Reset()

	if engine.resets != 1 {
		t.Errorf("engine resets = %d, want 1", engine.resets)
	}
	if len(f.Captures()) != 0 {
		t.Errorf("captures not cleared: %v", f.Captures())
	}
	if len(f.TokenIDs()) != 0 {
		t.Errorf("token buffer not cleared: %v", f.TokenIDs())
	}

	// A fresh generation works after reset.
	if _, err := f.AcceptToken(0); err != nil {
		t.Fatalf("AcceptToken after reset error = %v", err)
	}
	if got := f.Captures()["x"].Value(); got != "42" {
		t.Errorf("x = %v after reset cycle", got)
	}
}

// --- Build Tests ---

func TestBuild_EmptyTemplate(t *testing.T) {
	b := NewBuilder()

	called := false
	_, err := b.Build(kbnf.MapVocabulary{}, func([]uint32) string { return "" },
		WithEngineFactory(func(string, kbnf.Vocabulary, *kbnf.Config) (kbnf.Engine, error) {
			called = true
			return &fakeEngine{}, nil
		}))

	if err == nil {
		t.Fatal("expected error for empty template")
	}
	if called {
		t.Error("engine factory must not run for an empty template")
	}
}

func TestBuild_IndependentFormatters(t *testing.T) {
	vocab := kbnf.MapVocabulary{0: []byte("7")}
	b := NewBuilder()
	if _, err := b.Regex("[0-9]+", "x"); err != nil {
		t.Fatalf("Regex() error = %v", err)
	}
	if err := b.AppendString("${x}"); err != nil {
		t.Fatalf("AppendString() error = %v", err)
	}

	decode := func(ids []uint32) string {
		var sb strings.Builder
		for _, id := range ids {
			tok, _ := vocab.Token(id)
			sb.Write(tok)
		}
		return sb.String()
	}
	factory := func(string, kbnf.Vocabulary, *kbnf.Config) (kbnf.Engine, error) {
		return &fakeEngine{finishAfter: 1}, nil
	}

	f1, err := b.Build(vocab, decode, WithEngineFactory(factory))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	f2, err := b.Build(vocab, decode, WithEngineFactory(factory))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if _, err := f1.AcceptToken(0); err != nil {
		t.Fatalf("AcceptToken error = %v", err)
	}

	if f2.IsCompleted() {
		t.Error("completing f1 must not affect f2")
	}
	if len(f2.Captures()) != 0 {
		t.Errorf("f2 captures = %v, want empty", f2.Captures())
	}
}

func TestBuild_UnknownEngineName(t *testing.T) {
	b := NewBuilder()
	if err := b.AppendString("x"); err != nil {
		t.Fatalf("AppendString() error = %v", err)
	}

	_, err := b.Build(kbnf.MapVocabulary{}, func([]uint32) string { return "" },
		WithEngine("definitely-not-registered"))
	if err == nil {
		t.Fatal("expected error for unknown engine name")
	}
}
