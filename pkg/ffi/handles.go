package ffi

// #include "stencil.h"
import "C"
import (
	"sync"

	"github.com/stencildev/stencil/pkg/formatter"
	"github.com/stencildev/stencil/pkg/grammargen"
)

// builderHandle pairs a builder with the generator its schema fragments
// compile through, so fragments of one template share a namespace.
type builderHandle struct {
	builder   *formatter.Builder
	generator *grammargen.JSONGenerator
}

func newBuilderHandle() *builderHandle {
	return &builderHandle{
		builder:   formatter.NewBuilder(),
		generator: grammargen.NewJSONGenerator(),
	}
}

// handleManager manages builder handles with thread safety.
var handleManager = &builderHandles{
	builders: make(map[C.int]*builderHandle),
}

type builderHandles struct {
	mu       sync.RWMutex
	builders map[C.int]*builderHandle
	nextID   C.int
}

func (h *builderHandles) add(b *builderHandle) C.int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.builders[h.nextID] = b
	return h.nextID
}

func (h *builderHandles) get(id C.int) (*builderHandle, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.builders[id]
	return b, ok
}

func (h *builderHandles) remove(id C.int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.builders, id)
}
