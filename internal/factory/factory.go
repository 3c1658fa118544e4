package factory

import (
	"context"
	"fmt"

	"github.com/happyhackingspace/runbox/internal/provider"
)

// Factory builds ready-to-use providers from a registry.
type Factory struct {
	registry *Registry
}

// NewFactory creates a factory with a custom registry.
func NewFactory(registry *Registry) *Factory {
	return &Factory{registry: registry}
}

// NewDefaultFactory creates a factory with the default registry.
func NewDefaultFactory() *Factory {
	return &Factory{registry: DefaultRegistry}
}

// Open constructs the named provider and validates it. A provider that fails
// validation is closed before the error is returned.
func (f *Factory) Open(ctx context.Context, name string, config any) (provider.Provider, error) {
	p, err := f.registry.New(name, config)
	if err != nil {
		return nil, err
	}

	if err := p.Validate(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("validate provider %q: %w", name, err)
	}
	return p, nil
}

// Providers returns all provider names known to the factory.
func (f *Factory) Providers() []string {
	return f.registry.Available()
}

// Capabilities reports what the named provider supports without validating it.
func (f *Factory) Capabilities(name string, config any) (provider.Capabilities, error) {
	p, err := f.registry.New(name, config)
	if err != nil {
		return provider.Capabilities{}, err
	}
	defer p.Close()
	return p.Capabilities(), nil
}

// Open constructs and validates a provider from the default registry.
func Open(ctx context.Context, name string, config any) (provider.Provider, error) {
	return NewDefaultFactory().Open(ctx, name, config)
}
