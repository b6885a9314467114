package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/aibridge/pkg/provider"
)

// ErrProviderNotRegistered is returned by [Registry.Create] when no factory
// has been registered for the entry's provider type.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Factory constructs an adapter named name from entry. Factories must fail
// fast when required credentials are missing.
type Factory func(name string, entry ProviderEntry) (provider.Adapter, error)

// Registry maps provider types to adapter factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[ProviderType]Factory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{factories: make(map[ProviderType]Factory)}
}

// Register registers factory under t.
// Subsequent calls with the same type overwrite the previous registration.
func (r *Registry) Register(t ProviderType, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = factory
}

// Types returns the registered provider types in sorted order.
func (r *Registry) Types() []ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// Create instantiates the adapter for entry using the factory registered
// under entry.Type. Returns [ErrProviderNotRegistered] if there is none.
func (r *Registry) Create(name string, entry ProviderEntry) (provider.Adapter, error) {
	r.mu.RLock()
	factory, ok := r.factories[entry.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (type %q)", ErrProviderNotRegistered, name, entry.Type)
	}
	a, err := factory(name, entry)
	if err != nil {
		return nil, fmt.Errorf("config: create provider %q: %w", name, err)
	}
	return a, nil
}

// BuildAll creates an adapter for every entry in cfg.Providers and returns
// the immutable provider registry. Adapters are created in name order and
// the first failure aborts the build.
func (r *Registry) BuildAll(cfg *Config) (*provider.Registry, error) {
	names := slices.Sorted(maps.Keys(cfg.Providers))
	adapters := make([]provider.Adapter, 0, len(names))
	for _, name := range names {
		a, err := r.Create(name, cfg.Providers[name])
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return provider.NewRegistry(adapters...)
}
