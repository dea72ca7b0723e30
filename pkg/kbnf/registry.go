package kbnf

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownEngine means no factory is registered under the requested name.
var ErrUnknownEngine = errors.New("unknown engine")

// Factory constructs an engine for a compiled grammar.
type Factory func(grammar string, vocab Vocabulary, cfg *Config) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds an engine factory under a name. Bindings typically call this
// from an init function. Registering an existing name replaces it.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New constructs an engine by factory name.
func New(name string, grammar string, vocab Vocabulary, cfg *Config) (Engine, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownEngine, name, Available())
	}
	return factory(grammar, vocab, cfg)
}

// Available returns the sorted list of registered engine names.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
