// Package factory keeps the set of workspace providers that can be built by
// name and constructs them on demand.
package factory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/happyhackingspace/runbox/internal/provider"
)

// ErrNotRegistered is returned when no constructor exists for a provider name.
var ErrNotRegistered = errors.New("provider not registered")

// ProviderConstructor creates a provider from configuration. A nil config
// selects the provider's defaults.
type ProviderConstructor func(config any) (provider.Provider, error)

// Registry maps provider names to constructors. Every call to New builds a
// fresh provider, so two runners with different settings never share one.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]ProviderConstructor
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]ProviderConstructor),
	}
}

// Register adds a provider constructor, replacing any previous one.
func (r *Registry) Register(name string, constructor ProviderConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = constructor
}

// Unregister removes a provider constructor.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.constructors, name)
}

// New constructs the named provider.
func (r *Registry) New(name string, config any) (provider.Provider, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrNotRegistered, name, r.Available())
	}

	p, err := constructor(config)
	if err != nil {
		return nil, fmt.Errorf("create provider %q: %w", name, err)
	}
	return p, nil
}

// Available returns all registered provider names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a provider is registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[name]
	return ok
}

// DefaultRegistry is the global provider registry. Provider packages add
// themselves to it from init.
var DefaultRegistry = NewRegistry()

// Register adds a provider constructor to the default registry.
func Register(name string, constructor ProviderConstructor) {
	DefaultRegistry.Register(name, constructor)
}

// Unregister removes a provider from the default registry.
func Unregister(name string) {
	DefaultRegistry.Unregister(name)
}

// New constructs a provider from the default registry.
func New(name string, config any) (provider.Provider, error) {
	return DefaultRegistry.New(name, config)
}

// Available returns all available providers from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// IsRegistered checks if a provider is registered in the default registry.
func IsRegistered(name string) bool {
	return DefaultRegistry.IsRegistered(name)
}
