// Package kbnf defines the contract between stencil and a KBNF constraint
// engine: the engine interface driven during token-by-token generation, the
// vocabulary the engine is constructed with, and helpers for producing the
// grammar text the engine consumes.
//
// The engine itself (automaton construction, logit masking) lives outside
// this module; bindings register themselves through the factory registry.
package kbnf

// AcceptResult is the engine's verdict on a single token or byte sequence.
type AcceptResult int

const (
	// Accepted means the token advanced the grammar state.
	Accepted AcceptResult = iota
	// Rejected means the token violates the grammar; the engine state is
	// unchanged.
	Rejected
	// Finished means the token advanced the grammar into a completed state.
	Finished
)

func (r AcceptResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// Engine enforces a compiled grammar during generation. Implementations are
// single-owner: calls must be sequenced by one generation loop.
type Engine interface {
	// TryAcceptToken validates and advances on a single token ID.
	TryAcceptToken(id uint32) AcceptResult

	// TryAcceptBytes validates and advances on raw output bytes.
	TryAcceptBytes(b []byte) AcceptResult

	// ComputeAllowedTokens recomputes the allowed-token set for the current
	// grammar state. Side effect only; read the result through
	// AllowedTokensSinceLastComputation.
	ComputeAllowedTokens()

	// AllowedTokensSinceLastComputation returns the token IDs allowed by the
	// last ComputeAllowedTokens call.
	AllowedTokensSinceLastComputation() []uint32

	// TokensToFinishSinceLastComputation returns the token IDs that would
	// complete the grammar, per the last ComputeAllowedTokens call.
	TokensToFinishSinceLastComputation() []uint32

	// MaskLogits sets disallowed token logits to negative infinity and
	// returns the masked slice.
	MaskLogits(logits []float32) []float32

	// IsFinished reports whether the grammar has been satisfied.
	IsFinished() bool

	// Reset returns the engine to its grammar's initial state.
	Reset()
}

// Vocabulary maps token IDs to their byte content.
type Vocabulary interface {
	// Token returns the bytes for a token ID.
	Token(id uint32) ([]byte, bool)

	// Size returns the number of tokens in the vocabulary.
	Size() int
}

// MapVocabulary is a Vocabulary backed by a plain map.
type MapVocabulary map[uint32][]byte

func (v MapVocabulary) Token(id uint32) ([]byte, bool) {
	b, ok := v[id]
	return b, ok
}

func (v MapVocabulary) Size() int { return len(v) }

// Config holds engine construction options. The zero value asks the engine
// for its defaults.
type Config struct {
	// ExpectedOutputLength hints the engine's cache sizing.
	ExpectedOutputLength int

	// DisableCache turns off automaton state caching.
	DisableCache bool
}
