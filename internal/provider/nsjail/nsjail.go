//go:build linux

// Package nsjail provides a workspace provider that runs every command inside
// an nsjail sandbox. nsjail uses Linux namespaces, rlimits and cgroups; the
// host workspace directory is bind-mounted read-write at /workspace.
package nsjail

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"strconv"
	"sync"

	"github.com/happyhackingspace/runbox/internal/factory"
	"github.com/happyhackingspace/runbox/internal/process"
	"github.com/happyhackingspace/runbox/internal/provider"
	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/fs"
)

// Name is the registry name of the nsjail provider.
const Name = "nsjail"

// MountPoint is where the workspace appears inside the jail.
const MountPoint = "/workspace"

func init() {
	factory.Register(Name, func(config any) (provider.Provider, error) {
		cfg, ok := config.(*Config)
		if !ok && config != nil {
			return nil, fmt.Errorf("invalid config type %T for nsjail provider", config)
		}
		return New(cfg)
	})
}

var errStopped = errors.New("workspace stopped")

// Config holds nsjail provider configuration.
type Config struct {
	// NsjailPath is the path to nsjail binary.
	NsjailPath string

	// Chroot is the chroot directory (default: "/" for host root).
	Chroot string

	// User and Group IDs for the sandboxed process.
	User  uint32
	Group uint32

	// TimeLimit is the wall-clock limit per command in seconds. 0 disables it.
	TimeLimit uint32

	// MaxMemoryMB is the memory limit in megabytes.
	MaxMemoryMB uint32

	// MaxCPUs limits CPU cores.
	MaxCPUs uint32

	// MaxPids limits the number of processes.
	MaxPids uint32

	// MaxFileSizeMB limits file size in MB.
	MaxFileSizeMB uint32

	// EnableNetwork allows network access.
	EnableNetwork bool

	// MountProc mounts /proc in the sandbox.
	MountProc bool

	// MountTmp mounts a tmpfs at /tmp.
	MountTmp bool

	// ReadOnlyBindMounts are host paths bind-mounted read-only when present.
	ReadOnlyBindMounts []string

	// Env is the base environment inside the jail.
	Env []string

	// BaseDir is where host workspace directories are created.
	BaseDir string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		NsjailPath:    "nsjail",
		Chroot:        "/",
		User:          65534, // nobody
		Group:         65534, // nogroup
		TimeLimit:     60,
		MaxMemoryMB:   1024,
		MaxCPUs:       1,
		MaxPids:       64,
		MaxFileSizeMB: 64,
		MountProc:     true,
		MountTmp:      true,
		ReadOnlyBindMounts: []string{
			"/bin",
			"/lib",
			"/lib64",
			"/usr",
			"/etc/alternatives",
			"/etc/ssl",
		},
		Env: []string{
			"PATH=/usr/local/go/bin:/usr/local/bin:/usr/bin:/bin",
			"HOME=/tmp",
			"LANG=C.UTF-8",
		},
	}
}

// Provider implements the nsjail workspace provider.
type Provider struct {
	config     *Config
	controller *process.Controller
	instances  map[string]*Instance
	mu         sync.Mutex
}

// New creates a new nsjail provider.
func New(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.NsjailPath == "" {
		cfg.NsjailPath = "nsjail"
	}
	if cfg.Chroot == "" {
		cfg.Chroot = "/"
	}

	return &Provider{
		config:     cfg,
		controller: process.New(),
		instances:  make(map[string]*Instance),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return Name
}

// Create initializes a new workspace directory to be mounted into the jail.
func (p *Provider) Create(ctx context.Context, opts *provider.CreateOptions) (provider.Instance, error) {
	if opts == nil {
		opts = provider.DefaultCreateOptions()
	}

	dir, err := os.MkdirTemp(p.config.BaseDir, "runbox-nsjail-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	// The jailed user must be able to write build outputs.
	if err := os.Chmod(dir, 0o777); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("chmod workspace: %w", err)
	}

	id := opts.ID
	if id == "" {
		id = path.Base(dir)
	}

	instance := &Instance{
		id:       id,
		provider: p,
		dir:      dir,
		fsys:     fs.NewLocal(dir),
		env:      append([]string(nil), opts.Env...),
		network:  p.config.EnableNetwork || opts.InternetAccess,
	}

	p.mu.Lock()
	p.instances[id] = instance
	p.mu.Unlock()

	return instance, nil
}

// Capabilities returns nsjail provider capabilities.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Isolated:          true,
		SupportsStreaming: true,
		MaxMemoryMB:       int(p.config.MaxMemoryMB),
		MaxCPUs:           float64(p.config.MaxCPUs),
	}
}

// Validate checks if nsjail is available.
func (p *Provider) Validate(ctx context.Context) error {
	if _, err := exec.LookPath(p.config.NsjailPath); err != nil {
		return fmt.Errorf("nsjail not found: %w (install from https://github.com/google/nsjail)", err)
	}

	cmd := exec.CommandContext(ctx, p.config.NsjailPath, "--help")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("nsjail not working: %w", err)
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

// Instance represents an nsjail workspace.
type Instance struct {
	id       string
	provider *Provider
	dir      string
	fsys     *fs.Local
	env      []string
	network  bool

	mu      sync.RWMutex
	running int
	stopped bool
}

// ID returns the instance ID.
func (i *Instance) ID() string {
	return i.id
}

// WorkDir returns the workspace path inside the jail.
func (i *Instance) WorkDir() string {
	return MountPoint
}

// HostDir returns the workspace path on the host.
func (i *Instance) HostDir() string {
	return i.dir
}

// FileSystem returns the workspace file system.
func (i *Instance) FileSystem() fs.FileSystem {
	return i.fsys
}

// Exec runs command inside a fresh jail. nsjail reports a child killed by
// signal N as exit status 128+N, which is decoded back into a signal.
func (i *Instance) Exec(ctx context.Context, command executor.Command, handler executor.StreamHandler) (*executor.ExecutionResult, error) {
	if len(command.Args) == 0 {
		return nil, process.ErrEmptyCommand
	}

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

	cwd, err := fs.Clean(command.Dir)
	if err != nil {
		return nil, err
	}

	jailed := command
	jailed.Args = i.buildNsjailCmd(command.Args, path.Join(MountPoint, cwd), command.Env)
	jailed.Env = nil
	jailed.Dir = ""

	result, err := i.provider.controller.Run(ctx, jailed, handler)
	if err != nil {
		return nil, fmt.Errorf("nsjail: %w", err)
	}
	if code, ok := result.Code(); ok {
		result.ApplyShellStatus(code)
	}
	return result, nil
}

// buildNsjailCmd builds the nsjail argv around inner.
func (i *Instance) buildNsjailCmd(inner []string, cwd string, env []string) []string {
	cfg := i.provider.config
	args := []string{
		cfg.NsjailPath,
		"--mode", "o",
		"--chroot", cfg.Chroot,
		"--user", strconv.FormatUint(uint64(cfg.User), 10),
		"--group", strconv.FormatUint(uint64(cfg.Group), 10),
		"--time_limit", strconv.FormatUint(uint64(cfg.TimeLimit), 10),
		"--rlimit_fsize", strconv.FormatUint(uint64(cfg.MaxFileSizeMB), 10),
		"--rlimit_nofile", "256",
	}

	if cfg.MaxMemoryMB > 0 {
		args = append(args,
			"--rlimit_as", "inf",
			"--cgroup_mem_max", strconv.FormatUint(uint64(cfg.MaxMemoryMB)*1024*1024, 10),
		)
	}
	if cfg.MaxPids > 0 {
		args = append(args,
			"--rlimit_nproc", strconv.FormatUint(uint64(cfg.MaxPids), 10),
			"--cgroup_pids_max", strconv.FormatUint(uint64(cfg.MaxPids), 10),
		)
	}
	if cfg.MaxCPUs > 0 {
		args = append(args, "--cgroup_cpu_ms_per_sec", strconv.FormatUint(uint64(cfg.MaxCPUs)*1000, 10))
	}

	if i.network {
		args = append(args, "--disable_clone_newnet")
	}
	if cfg.MountProc {
		args = append(args, "--mount", "none:/proc:proc:rw")
	}
	if cfg.MountTmp {
		args = append(args, "--mount", "none:/tmp:tmpfs:size=268435456")
	}

	for _, p := range cfg.ReadOnlyBindMounts {
		if _, err := os.Stat(p); err == nil {
			args = append(args, "--bindmount_ro", p)
		}
	}
	args = append(args, "--bindmount", i.dir+":"+MountPoint, "--cwd", cwd)

	for _, kv := range cfg.Env {
		args = append(args, "--env", kv)
	}
	for _, kv := range i.env {
		args = append(args, "--env", kv)
	}
	for _, kv := range env {
		args = append(args, "--env", kv)
	}

	args = append(args, "--really_quiet", "--")
	return append(args, inner...)
}

// Stop removes the host workspace directory.
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
