package formatter

import (
	"fmt"

	"github.com/stencildev/stencil/internal/logger"
	"github.com/stencildev/stencil/pkg/extractor"
	"github.com/stencildev/stencil/pkg/kbnf"
)

// Formatter enforces a compiled grammar on a single generation and, once the
// grammar is satisfied, re-parses the generated text into named captures.
//
// A formatter is single-owner: AcceptToken, ComputeAllowedTokens and
// MaskLogits must be called in strict sequence by one generation loop. The
// extractor list is shared with the builder and immutable; the engine and
// token buffer are owned exclusively.
type Formatter struct {
	extractors []extractor.Extractor
	engine     kbnf.Engine
	tokenIDs   []uint32
	decode     DecodeFunc
	grammar    string
	captures   Captures
}

// AcceptToken appends the token to the buffer and advances the engine on it.
// When the engine reports the grammar satisfied, the full token buffer is
// decoded and the extraction pass runs; an extraction failure is returned
// alongside the engine result. The engine's verdict is returned unmodified
// so the caller can detect malformed generations.
func (f *Formatter) AcceptToken(id uint32) (kbnf.AcceptResult, error) {
	result := f.engine.TryAcceptToken(id)
	f.tokenIDs = append(f.tokenIDs, id)
	if result == kbnf.Finished {
		output := f.decode(f.tokenIDs)
		captures, err := decompose(f.extractors, output)
		if err != nil {
			return result, fmt.Errorf("extraction after completion: %w", err)
		}
		f.captures = captures
		logger.Debug("generation completed",
			"tokens", len(f.tokenIDs),
			"output_size", len(output),
			"captures", len(captures))
	}
	return result, nil
}

// AcceptBytes advances the engine on raw output bytes. The token buffer is
// untouched.
func (f *Formatter) AcceptBytes(b []byte) kbnf.AcceptResult {
	return f.engine.TryAcceptBytes(b)
}

// ComputeAllowedTokens recomputes the engine's allowed-token set for the
// current state.
func (f *Formatter) ComputeAllowedTokens() {
	f.engine.ComputeAllowedTokens()
}

// AllowedTokens returns the token IDs allowed by the last
// ComputeAllowedTokens call.
func (f *Formatter) AllowedTokens() []uint32 {
	return f.engine.AllowedTokensSinceLastComputation()
}

// TokensToFinish returns the token IDs that would complete the grammar, per
// the last ComputeAllowedTokens call.
func (f *Formatter) TokensToFinish() []uint32 {
	return f.engine.TokensToFinishSinceLastComputation()
}

// MaskLogits masks logits of disallowed tokens and returns the result.
func (f *Formatter) MaskLogits(logits []float32) []float32 {
	return f.engine.MaskLogits(logits)
}

// IsCompleted reports whether the generated output satisfies the grammar.
func (f *Formatter) IsCompleted() bool {
	return f.engine.IsFinished()
}

// Captures returns the capture map populated by the extraction pass. Empty
// until the grammar has been satisfied.
func (f *Formatter) Captures() Captures {
	return f.captures
}

// TokenIDs returns a copy of the accepted token buffer.
func (f *Formatter) TokenIDs() []uint32 {
	out := make([]uint32, len(f.tokenIDs))
	copy(out, f.tokenIDs)
	return out
}

// Grammar returns the compiled grammar text, retained for diagnostics.
func (f *Formatter) Grammar() string {
	return f.grammar
}

// Reset clears captures and the token buffer and returns the engine to its
// initial state, making the formatter reusable for a fresh generation.
func (f *Formatter) Reset() {
	f.captures = Captures{}
	f.engine.Reset()
	f.tokenIDs = f.tokenIDs[:0]
}
