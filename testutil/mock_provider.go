// Package testutil provides test utilities and mock implementations for runbox.
package testutil

import (
	"context"
	"sync"

	"github.com/happyhackingspace/runbox/internal/factory"
	"github.com/happyhackingspace/runbox/internal/provider"
	"github.com/happyhackingspace/runbox/pkg/executor"
)

// MockProvider is a configurable mock implementation of provider.Provider.
type MockProvider struct {
	name         string
	capabilities provider.Capabilities
	instances    []*MockInstance
	created      []*provider.CreateOptions
	closed       bool
	mu           sync.RWMutex

	// OnExec is installed on every instance created afterwards.
	OnExec ExecFunc

	// Hooks for testing
	OnCreate   func(ctx context.Context, opts *provider.CreateOptions) (provider.Instance, error)
	OnValidate func(ctx context.Context) error
	OnClose    func() error
}

// NewMockProvider creates a new mock provider with default settings.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name: name,
		capabilities: provider.Capabilities{
			ExactSignals:      true,
			SupportsStreaming: true,
		},
	}
}

// Register makes p available to the provider factory under its name. The
// returned function removes it again.
func Register(p *MockProvider) (unregister func()) {
	factory.Register(p.name, func(any) (provider.Provider, error) {
		return p, nil
	})
	return func() { factory.Unregister(p.name) }
}

// Name returns the provider name.
func (p *MockProvider) Name() string {
	return p.name
}

// Create creates a new mock instance.
func (p *MockProvider) Create(ctx context.Context, opts *provider.CreateOptions) (provider.Instance, error) {
	p.mu.Lock()
	p.created = append(p.created, opts)
	p.mu.Unlock()

	if p.OnCreate != nil {
		return p.OnCreate(ctx, opts)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	instance := NewMockInstance(p)
	instance.OnExec = p.OnExec
	p.instances = append(p.instances, instance)
	return instance, nil
}

// Capabilities returns the mock capabilities.
func (p *MockProvider) Capabilities() provider.Capabilities {
	return p.capabilities
}

// SetCapabilities allows tests to configure capabilities.
func (p *MockProvider) SetCapabilities(caps provider.Capabilities) {
	p.capabilities = caps
}

// Validate validates the mock provider.
func (p *MockProvider) Validate(ctx context.Context) error {
	if p.OnValidate != nil {
		return p.OnValidate(ctx)
	}
	return nil
}

// Close closes the mock provider.
func (p *MockProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	if p.OnClose != nil {
		return p.OnClose()
	}
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Instances returns all created instances in creation order.
func (p *MockProvider) Instances() []*MockInstance {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*MockInstance(nil), p.instances...)
}

// Created returns the options passed to Create, in order.
func (p *MockProvider) Created() []*provider.CreateOptions {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*provider.CreateOptions(nil), p.created...)
}

// ExecFunc produces the result of one command.
type ExecFunc func(ctx context.Context, cmd executor.Command) (*executor.ExecutionResult, error)

var _ provider.Provider = (*MockProvider)(nil)
