// Package grammargen turns structured schemas into grammar fragments a
// constraint engine can enforce, plus extractors that parse the matched text
// back into typed values. The formatter's schema combinator delegates both
// jobs to a Generator.
package grammargen

import (
	"github.com/stencildev/stencil/pkg/extractor"
	"github.com/stencildev/stencil/pkg/schema"
)

// Deserializer turns matched structured text into a typed value. The
// formatter binds it to the schema's Unmarshal.
type Deserializer func(data []byte) (any, error)

// Generator produces a grammar fragment for a schema under a given
// nonterminal, and the extractor that recovers the value from matched text.
type Generator interface {
	// Generate returns the grammar fragment text rooted at nonterminal.
	Generate(s schema.Schema, nonterminal string) (string, error)

	// Extractor returns the extractor bound to nonterminal. The capture
	// name may be empty.
	Extractor(nonterminal, captureName string, deserialize Deserializer) extractor.Extractor
}
