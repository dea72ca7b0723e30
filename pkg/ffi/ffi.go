// Package ffi provides C FFI exports for embedding stencil in inference
// runtimes written in other languages.
//
// Build with:
//
//	CGO_ENABLED=1 go build -buildmode=c-shared -o libstencil.so ./pkg/ffi/
//
// All inputs/outputs are C strings. Complex data is JSON-serialized.
// The StencilResult type provides both data and error fields.
// Callers must free results with stencil_result_free.
package ffi

// #include "stencil.h"
import "C"
import (
	"encoding/json"
	"fmt"
	"unsafe"

	"github.com/stencildev/stencil/pkg/formatter"
	"github.com/stencildev/stencil/pkg/schema"
)

// === Template Builder ===

//export stencil_builder_new
func stencil_builder_new() C.int {
	return handleManager.add(newBuilderHandle())
}

//export stencil_builder_free
func stencil_builder_free(handle C.int) {
	handleManager.remove(handle)
}

//export stencil_builder_append
func stencil_builder_append(handle C.int, template *C.char) C.StencilResult {
	h, ok := handleManager.get(handle)
	if !ok {
		return makeError(fmt.Sprintf("invalid builder handle: %d", handle))
	}

	if err := h.builder.AppendString(C.GoString(template)); err != nil {
		return makeError(err.Error())
	}
	return makeResult("")
}

//export stencil_builder_regex
func stencil_builder_regex(handle C.int, pattern *C.char, captureName *C.char) C.StencilResult {
	h, ok := handleManager.get(handle)
	if !ok {
		return makeError(fmt.Sprintf("invalid builder handle: %d", handle))
	}

	ext, err := h.builder.Regex(C.GoString(pattern), C.GoString(captureName))
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(ext.Nonterminal())
}

//export stencil_builder_choice
func stencil_builder_choice(handle C.int, captureName *C.char, optionsJSON *C.char) C.StencilResult {
	h, ok := handleManager.get(handle)
	if !ok {
		return makeError(fmt.Sprintf("invalid builder handle: %d", handle))
	}

	var options []string
	if err := json.Unmarshal([]byte(C.GoString(optionsJSON)), &options); err != nil {
		return makeError("options must be a JSON array of strings: " + err.Error())
	}

	alts := make([]any, len(options))
	for i, o := range options {
		alts[i] = o
	}
	ext, err := h.builder.Choose(C.GoString(captureName), alts...)
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(ext.Nonterminal())
}

//export stencil_builder_text
func stencil_builder_text(handle C.int, captureName *C.char, stopsJSON *C.char, excludesJSON *C.char) C.StencilResult {
	h, ok := handleManager.get(handle)
	if !ok {
		return makeError(fmt.Sprintf("invalid builder handle: %d", handle))
	}

	var opts []formatter.TextOption
	if stopsJSON != nil {
		var stops []string
		if err := json.Unmarshal([]byte(C.GoString(stopsJSON)), &stops); err != nil {
			return makeError("stops must be a JSON array of strings: " + err.Error())
		}
		if len(stops) > 0 {
			opts = append(opts, formatter.WithStop(stops...))
		}
	}
	if excludesJSON != nil {
		var excludes []string
		if err := json.Unmarshal([]byte(C.GoString(excludesJSON)), &excludes); err != nil {
			return makeError("excludes must be a JSON array of strings: " + err.Error())
		}
		if len(excludes) > 0 {
			opts = append(opts, formatter.WithoutContent(excludes...))
		}
	}

	ext, err := h.builder.Text(C.GoString(captureName), opts...)
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(ext.Nonterminal())
}

//export stencil_builder_schema
func stencil_builder_schema(handle C.int, captureName *C.char, schemaJSON *C.char) C.StencilResult {
	h, ok := handleManager.get(handle)
	if !ok {
		return makeError(fmt.Sprintf("invalid builder handle: %d", handle))
	}

	s, err := schema.FromJSON([]byte(C.GoString(schemaJSON)))
	if err != nil {
		return makeError(err.Error())
	}

	ext, err := h.builder.Schema(s, h.generator, C.GoString(captureName))
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(ext.Nonterminal())
}

//export stencil_builder_grammar
func stencil_builder_grammar(handle C.int) C.StencilResult {
	h, ok := handleManager.get(handle)
	if !ok {
		return makeError(fmt.Sprintf("invalid builder handle: %d", handle))
	}

	grammar, err := h.builder.Grammar()
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(grammar)
}

//export stencil_builder_decompose
func stencil_builder_decompose(handle C.int, text *C.char) C.StencilResult {
	h, ok := handleManager.get(handle)
	if !ok {
		return makeError(fmt.Sprintf("invalid builder handle: %d", handle))
	}

	captures, err := h.builder.Decompose(C.GoString(text))
	if err != nil {
		return makeError(err.Error())
	}

	data, err := json.Marshal(captures.Flatten())
	if err != nil {
		return makeError(err.Error())
	}
	return makeResult(string(data))
}

// === Memory Management ===

//export stencil_result_free
func stencil_result_free(result C.StencilResult) {
	if result.data != nil {
		C.free(unsafe.Pointer(result.data))
	}
	if result.error != nil {
		C.free(unsafe.Pointer(result.error))
	}
}

// helpers

func makeResult(data string) C.StencilResult {
	cData := C.CString(data)
	return C.StencilResult{
		data:  cData,
		len:   C.int(len(data)),
		error: nil,
	}
}

func makeError(msg string) C.StencilResult {
	cErr := C.CString(msg)
	return C.StencilResult{
		data:  nil,
		len:   0,
		error: cErr,
	}
}

// main is required for c-shared build mode but should not be called.
func main() {}
