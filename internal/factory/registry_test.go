package factory

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/happyhackingspace/runbox/internal/provider"
	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/fs"
)

type testProvider struct {
	name        string
	validateErr error
	closed      bool
	config      any
}

func (p *testProvider) Name() string { return p.name }
func (p *testProvider) Create(ctx context.Context, opts *provider.CreateOptions) (provider.Instance, error) {
	return &testInstance{id: opts.ID}, nil
}
func (p *testProvider) Capabilities() provider.Capabilities {
	return provider.Capabilities{SupportsStreaming: true, MaxMemoryMB: 64}
}
func (p *testProvider) Validate(ctx context.Context) error { return p.validateErr }
func (p *testProvider) Close() error {
	p.closed = true
	return nil
}

type testInstance struct {
	id string
}

func (i *testInstance) ID() string      { return i.id }
func (i *testInstance) WorkDir() string { return "/workspace" }
func (i *testInstance) Status(ctx context.Context) (provider.InstanceStatus, error) {
	return provider.StatusRunning, nil
}
func (i *testInstance) Exec(ctx context.Context, command executor.Command, handler executor.StreamHandler) (*executor.ExecutionResult, error) {
	result := &executor.ExecutionResult{}
	result.SetExitCode(0)
	return result, nil
}
func (i *testInstance) FileSystem() fs.FileSystem      { return nil }
func (i *testInstance) Stop(ctx context.Context) error { return nil }

func constructorFor(name string) ProviderConstructor {
	return func(config any) (provider.Provider, error) {
		return &testProvider{name: name, config: config}, nil
	}
}

func TestRegistryRegisterAndNew(t *testing.T) {
	r := NewRegistry()
	r.Register("test", constructorFor("test"))

	if !r.IsRegistered("test") {
		t.Fatal("IsRegistered(test) = false")
	}

	p, err := r.New("test", "cfg")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p.Name() != "test" {
		t.Errorf("Name() = %q, want test", p.Name())
	}
	if got := p.(*testProvider).config; got != "cfg" {
		t.Errorf("config = %v, want cfg", got)
	}
}

func TestRegistryNewBuildsFreshProviders(t *testing.T) {
	r := NewRegistry()
	r.Register("test", constructorFor("test"))

	a, _ := r.New("test", 1)
	b, _ := r.New("test", 2)
	if a == b {
		t.Fatal("New() returned the same provider twice")
	}
	if b.(*testProvider).config != 2 {
		t.Errorf("second provider got config %v", b.(*testProvider).config)
	}
}

func TestRegistryNotRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register("local", constructorFor("local"))

	_, err := r.New("missing", nil)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("New(missing) error = %v, want ErrNotRegistered", err)
	}
}

func TestRegistryConstructorError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.Register("bad", func(config any) (provider.Provider, error) { return nil, boom })

	if _, err := r.New("bad", nil); !errors.Is(err, boom) {
		t.Fatalf("New(bad) error = %v, want wrapped boom", err)
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("test", constructorFor("test"))
	r.Unregister("test")

	if r.IsRegistered("test") {
		t.Error("provider still registered after Unregister")
	}
	r.Unregister("never-there")
}

func TestRegistryAvailableSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"nsjail", "docker", "local"} {
		r.Register(name, constructorFor(name))
	}

	want := []string{"docker", "local", "nsjail"}
	if got := r.Available(); !reflect.DeepEqual(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register("test", constructorFor("test"))
		}()
		go func() {
			defer wg.Done()
			r.Available()
			r.IsRegistered("test")
		}()
	}
	wg.Wait()

	if !r.IsRegistered("test") {
		t.Error("provider missing after concurrent registration")
	}
}

func TestDefaultRegistryFunctions(t *testing.T) {
	const name = "factory-test-default"
	Register(name, constructorFor(name))
	defer Unregister(name)

	if !IsRegistered(name) {
		t.Fatal("IsRegistered() = false")
	}
	found := false
	for _, n := range Available() {
		if n == name {
			found = true
		}
	}
	if !found {
		t.Errorf("Available() = %v, missing %q", Available(), name)
	}
	if _, err := New(name, nil); err != nil {
		t.Errorf("New() error = %v", err)
	}
}
