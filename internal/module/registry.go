package module

import (
	"fmt"
	"sync"
)

// Registry resolves modules by name. Statically-linked modules register
// at startup; a dynamic loader would register here too, the resolver does
// not care how a module arrived.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register installs a module, overwriting any previous one of the same
// name.
func (r *Registry) Register(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules[m.Name()] = m
}

// Resolve looks a module up by name.
func (r *Registry) Resolve(name string) (Module, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("module %q not registered", name)
	}
	return m, nil
}

// RegisterBuiltins installs the modules linked into this binary.
func RegisterBuiltins(r *Registry) {
	r.Register(Echo{})
}

// Names lists the registered module names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	return names
}
