package plugin

import (
	"fmt"
	"sync"
)

// DefaultSymbol is the constructor symbol used when a manifest omits
// "class".
const DefaultSymbol = "Plugin"

// Constructor builds a plugin instance against the host.
type Constructor func(host Host) Instance

// Registration is one static-registry entry: the Go-side counterpart of a
// plugin directory. Dynamic import by path is deliberately not supported;
// every loadable plugin registers a constructor at process start.
type Registration struct {
	// Symbol is the constructor symbol the manifest's "class" field must
	// match. Defaults to DefaultSymbol.
	Symbol string
	// New constructs the plugin instance.
	New Constructor
	// Models maps a manifest db.models entry to the gorm models that entry
	// resolves to.
	Models map[string][]any
}

// Registry maps (module path, symbol) to plugin registrations. It is
// populated once at process start and read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

func registryKey(modulePath, symbol string) string {
	return modulePath + "#" + symbol
}

// Add registers a constructor for a plugin module path. Registering the
// same (path, symbol) pair twice is an error.
func (r *Registry) Add(modulePath string, reg Registration) error {
	if reg.New == nil {
		return fmt.Errorf("registration for %s has no constructor", modulePath)
	}
	if reg.Symbol == "" {
		reg.Symbol = DefaultSymbol
	}
	key := registryKey(modulePath, reg.Symbol)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("plugin constructor already registered: %s (%s)", modulePath, reg.Symbol)
	}
	r.entries[key] = reg
	return nil
}

// MustAdd is Add for process-start registration blocks where a duplicate is
// a programming error.
func (r *Registry) MustAdd(modulePath string, reg Registration) {
	if err := r.Add(modulePath, reg); err != nil {
		panic(err)
	}
}

// Lookup resolves a constructor by module path and symbol.
func (r *Registry) Lookup(modulePath, symbol string) (Registration, bool) {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[registryKey(modulePath, symbol)]
	return reg, ok
}

// Len returns the number of registered constructors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
