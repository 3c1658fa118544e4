// Package local provides a workspace provider that runs commands directly on
// the host. Each workspace is a private temporary directory; isolation is
// limited to process groups.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/happyhackingspace/runbox/internal/factory"
	"github.com/happyhackingspace/runbox/internal/process"
	"github.com/happyhackingspace/runbox/internal/provider"
	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/fs"
)

// Name is the registry name of the local provider.
const Name = "local"

func init() {
	factory.Register(Name, func(config any) (provider.Provider, error) {
		switch cfg := config.(type) {
		case nil:
			return New(nil)
		case *Config:
			return New(cfg)
		case Config:
			return New(&cfg)
		default:
			return nil, fmt.Errorf("invalid config type %T for local provider", config)
		}
	})
}

var errStopped = errors.New("workspace stopped")

// Config holds local provider configuration.
type Config struct {
	// BaseDir is where workspaces are created. Empty means os.TempDir().
	BaseDir string

	// Env is the base environment of every command. Nil inherits the
	// environment of the current process.
	Env []string

	// KeepWorkspaces leaves workspace directories behind after Stop.
	KeepWorkspaces bool
}

// Provider implements the local workspace provider.
type Provider struct {
	config     Config
	controller *process.Controller
	instances  map[string]*Instance
	mu         sync.Mutex
}

// New creates a local provider.
func New(cfg *Config) (*Provider, error) {
	p := &Provider{instances: make(map[string]*Instance)}
	if cfg != nil {
		p.config = *cfg
	}
	p.controller = &process.Controller{Env: p.config.Env}
	return p, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return Name
}

// Create makes a fresh temporary directory for one run.
func (p *Provider) Create(ctx context.Context, opts *provider.CreateOptions) (provider.Instance, error) {
	if opts == nil {
		opts = provider.DefaultCreateOptions()
	}

	pattern := "runbox-*"
	if opts.ID != "" {
		pattern = "runbox-" + opts.ID + "-*"
	}
	dir, err := os.MkdirTemp(p.config.BaseDir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	id := opts.ID
	if id == "" {
		id = filepath.Base(dir)
	}

	instance := &Instance{
		id:       id,
		provider: p,
		dir:      dir,
		fsys:     fs.NewLocal(dir),
		env:      append([]string(nil), opts.Env...),
	}

	p.mu.Lock()
	p.instances[id] = instance
	p.mu.Unlock()

	return instance, nil
}

// Capabilities returns local provider capabilities.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		ExactSignals:      true,
		SupportsStreaming: true,
	}
}

// Validate checks that workspaces can be created.
func (p *Provider) Validate(ctx context.Context) error {
	base := p.config.BaseDir
	if base == "" {
		base = os.TempDir()
	}
	info, err := os.Stat(base)
	if err != nil {
		return fmt.Errorf("workspace base dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace base dir %s is not a directory", base)
	}
	return nil
}

// Close stops all outstanding workspaces.
func (p *Provider) Close() error {
	p.mu.Lock()
	instances := make([]*Instance, 0, len(p.instances))
	for _, inst := range p.instances {
		instances = append(instances, inst)
	}
	p.mu.Unlock()

	var errs []error
	for _, inst := range instances {
		errs = append(errs, inst.Stop(context.Background()))
	}
	return errors.Join(errs...)
}

var _ provider.Provider = (*Provider)(nil)

// Instance is a workspace directory on the host.
type Instance struct {
	id       string
	provider *Provider
	dir      string
	fsys     *fs.Local
	env      []string

	mu      sync.RWMutex
	running int
	stopped bool
}

// ID returns the instance ID.
func (i *Instance) ID() string {
	return i.id
}

// WorkDir returns the absolute path of the workspace directory.
func (i *Instance) WorkDir() string {
	return i.dir
}

// FileSystem returns the workspace file system.
func (i *Instance) FileSystem() fs.FileSystem {
	return i.fsys
}

// Exec runs command with the workspace as its working directory.
func (i *Instance) Exec(ctx context.Context, command executor.Command, handler executor.StreamHandler) (*executor.ExecutionResult, error) {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return nil, errStopped
	}
	i.running++
	i.mu.Unlock()
	defer func() {
		i.mu.Lock()
		i.running--
		i.mu.Unlock()
	}()

	dir, err := i.resolveDir(command.Dir)
	if err != nil {
		return nil, err
	}
	command.Dir = dir
	command.Env = append(append([]string(nil), i.env...), command.Env...)

	return i.provider.controller.Run(ctx, command, handler)
}

func (i *Instance) resolveDir(dir string) (string, error) {
	if dir == "" {
		return i.dir, nil
	}
	clean, err := fs.Clean(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(i.dir, filepath.FromSlash(clean)), nil
}

// Stop removes the workspace directory.
func (i *Instance) Stop(ctx context.Context) error {
	i.mu.Lock()
	if i.stopped {
		i.mu.Unlock()
		return nil
	}
	i.stopped = true
	i.mu.Unlock()

	i.provider.mu.Lock()
	delete(i.provider.instances, i.id)
	i.provider.mu.Unlock()

	if i.provider.config.KeepWorkspaces {
		return nil
	}
	if err := os.RemoveAll(i.dir); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

// Status returns the current status.
func (i *Instance) Status(ctx context.Context) (provider.InstanceStatus, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	switch {
	case i.stopped:
		return provider.StatusStopped, nil
	case i.running > 0:
		return provider.StatusExecuting, nil
	}
	return provider.StatusRunning, nil
}

var _ provider.Instance = (*Instance)(nil)
