package provider

import (
	"errors"
	"fmt"
	"slices"
)

// ErrDuplicateProvider is returned by [NewRegistry] when two adapters share a
// name.
var ErrDuplicateProvider = errors.New("provider: duplicate provider name")

// Registry maps provider names to adapters. It is populated once by
// [NewRegistry] and read-only afterwards, so it needs no locking.
type Registry struct {
	adapters map[string]Adapter
	names    []string
}

// NewRegistry builds a registry from adapters. Names are case-sensitive and
// must be unique and non-empty.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			return nil, fmt.Errorf("provider: nil adapter")
		}
		name := a.Name()
		if name == "" {
			return nil, fmt.Errorf("provider: adapter with empty name")
		}
		if _, exists := r.adapters[name]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProvider, name)
		}
		r.adapters[name] = a
		r.names = append(r.names, name)
	}
	slices.Sort(r.names)
	return r, nil
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	if r == nil {
		return nil, false
	}
	a, ok := r.adapters[name]
	return a, ok
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.names)
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.adapters)
}
