// Package docker provides a workspace provider backed by Docker containers.
// Every workspace is one long-lived container; commands run as execs inside
// it. Setting Config.Runtime to "runsc" runs the containers under gVisor.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/happyhackingspace/runbox/internal/factory"
	"github.com/happyhackingspace/runbox/internal/provider"
	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/fs"
	"github.com/happyhackingspace/runbox/pkg/langdetect"
)

const (
	// Name is the registry name of the Docker provider.
	Name = "docker"

	// GVisorName is the registry name of the Docker provider preset to the
	// gVisor runtime.
	GVisorName = "gvisor"

	// WorkDir is the workspace directory inside every container.
	WorkDir = "/workspace"
)

func init() {
	factory.Register(Name, func(config any) (provider.Provider, error) {
		cfg, ok := config.(*Config)
		if !ok && config != nil {
			return nil, fmt.Errorf("invalid config type %T for docker provider", config)
		}
		return New(cfg)
	})
	factory.Register(GVisorName, func(config any) (provider.Provider, error) {
		cfg, ok := config.(*Config)
		if !ok && config != nil {
			return nil, fmt.Errorf("invalid config type %T for gvisor provider", config)
		}
		if cfg == nil {
			cfg = DefaultConfig()
		}
		if cfg.Runtime == "" {
			cfg.Runtime = "runsc"
		}
		return New(cfg)
	})
}

var errStopped = errors.New("container stopped")

// Config holds Docker provider configuration.
type Config struct {
	Host       string
	APIVersion string

	// DefaultImage is used when neither the request nor the language
	// names an image.
	DefaultImage string

	// Runtime selects an OCI runtime configured in the daemon, such as
	// "runsc". Empty means the daemon default.
	Runtime string

	// Env is the base environment of every command.
	Env []string

	// SkipPull fails instead of pulling images that are not present.
	SkipPull bool
}

// DefaultConfig returns default Docker configuration.
func DefaultConfig() *Config {
	return &Config{
		DefaultImage: "debian:bookworm-slim",
	}
}

// Provider implements the Docker container provider.
type Provider struct {
	config *Config
	client *client.Client

	mu        sync.Mutex
	instances map[string]*Instance
}

// New creates a new Docker provider.
func New(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return &Provider{
		config:    cfg,
		client:    cli,
		instances: make(map[string]*Instance),
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	if p.config.Runtime == "runsc" {
		return GVisorName
	}
	return Name
}

// Create starts a container that idles until Stop.
func (p *Provider) Create(ctx context.Context, opts *provider.CreateOptions) (provider.Instance, error) {
	if opts == nil {
		opts = provider.DefaultCreateOptions()
	}

	img := opts.Image
	if img == "" {
		img = langdetect.GetDockerImage(opts.Language)
	}
	if img == "" {
		img = p.config.DefaultImage
	}

	if err := p.ensureImage(ctx, img); err != nil {
		return nil, fmt.Errorf("ensure image: %w", err)
	}

	labels := map[string]string{"runbox.run-id": opts.ID}
	for k, v := range opts.Labels {
		labels[k] = v
	}

	containerConfig := &container.Config{
		Image:      img,
		Env:        append(append([]string(nil), p.config.Env...), opts.Env...),
		WorkingDir: WorkDir,
		Labels:     labels,
		Entrypoint: []string{"tail", "-f", "/dev/null"},
	}

	hostConfig := &container.HostConfig{
		Runtime: p.config.Runtime,
		Resources: container.Resources{
			Memory:   int64(opts.Resources.MemoryMB) * 1024 * 1024,
			NanoCPUs: int64(opts.Resources.CPUs * 1e9),
		},
	}
	if opts.Resources.PidsLimit > 0 {
		limit := int64(opts.Resources.PidsLimit)
		hostConfig.Resources.PidsLimit = &limit
	}
	if !opts.InternetAccess {
		hostConfig.NetworkMode = "none"
	}

	resp, err := p.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("start container: %w", err)
	}

	instance := &Instance{
		id:       resp.ID,
		provider: p,
		client:   p.client,
		workDir:  WorkDir,
	}

	p.mu.Lock()
	p.instances[instance.id] = instance
	p.mu.Unlock()

	return instance, nil
}

// ensureImage pulls the image if it doesn't exist locally.
func (p *Provider) ensureImage(ctx context.Context, imageName string) error {
	_, err := p.client.ImageInspect(ctx, imageName)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return connectionError(err)
	}
	if p.config.SkipPull {
		return fmt.Errorf("image %s not present and pulling is disabled", imageName)
	}

	reader, err := p.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", connectionError(err))
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func connectionError(err error) error {
	if strings.Contains(err.Error(), "Cannot connect") || strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("docker connection failed: %w\n\nTroubleshooting:\n  - Is the Docker daemon running?\n  - Do you have permission to access /var/run/docker.sock?", err)
	}
	return err
}

// Capabilities returns Docker provider capabilities.
func (p *Provider) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		Isolated:          true,
		SupportsStreaming: true,
	}
}

// Validate checks that the daemon answers and knows the configured runtime.
func (p *Provider) Validate(ctx context.Context) error {
	if _, err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("docker not available: %w", connectionError(err))
	}
	if p.config.Runtime == "" {
		return nil
	}

	info, err := p.client.Info(ctx)
	if err != nil {
		return fmt.Errorf("docker info: %w", err)
	}
	for name := range info.Runtimes {
		if name == p.config.Runtime {
			return nil
		}
	}
	return fmt.Errorf("runtime %q not configured in Docker. Add it to /etc/docker/daemon.json, e.g. {\"runtimes\": {\"runsc\": {\"path\": \"/usr/local/bin/runsc\"}}}", p.config.Runtime)
}

// Close removes outstanding containers and releases the client.
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
	errs = append(errs, p.client.Close())
	return errors.Join(errs...)
}

// Instance represents a running Docker container.
type Instance struct {
	id       string
	provider *Provider
	client   *client.Client
	workDir  string

	mu      sync.RWMutex
	running int
	stopped bool
}

// ID returns the container ID.
func (i *Instance) ID() string {
	return i.id
}

// WorkDir returns the workspace path inside the container.
func (i *Instance) WorkDir() string {
	return i.workDir
}

// Exec runs command as a container exec. Docker reports a process killed by
// signal N as exit code 128+N, which is decoded back into a signal.
// Cancelling ctx kills the whole container.
func (i *Instance) Exec(ctx context.Context, command executor.Command, handler executor.StreamHandler) (*executor.ExecutionResult, error) {
	if len(command.Args) == 0 {
		return nil, errors.New("empty command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
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

	dir, err := fs.Clean(command.Dir)
	if err != nil {
		return nil, err
	}

	execConfig := container.ExecOptions{
		Cmd:          command.Args,
		Env:          command.Env,
		WorkingDir:   path.Join(i.workDir, dir),
		AttachStdout: true,
		AttachStderr: true,
		AttachStdin:  command.Stdin != "",
	}

	start := time.Now()
	created, err := i.client.ContainerExecCreate(ctx, i.id, execConfig)
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	resp, err := i.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer resp.Close()

	if command.Stdin != "" {
		go func() {
			io.Copy(resp.Conn, strings.NewReader(command.Stdin))
			resp.CloseWrite()
		}()
	}

	capture := executor.NewCapture(command.MaxOutputBytes, handler)
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(capture.Stdout(), capture.Stderr(), resp.Reader)
		copied <- err
	}()

	canceled := false
	select {
	case err = <-copied:
	case <-ctx.Done():
		canceled = true
		i.client.ContainerKill(context.Background(), i.id, "KILL")
		resp.Close()
		<-copied
	}
	capture.Close()

	result := &executor.ExecutionResult{Duration: time.Since(start)}
	capture.Fill(result)

	if canceled {
		result.SetSignal("SIGKILL")
		result.Canceled = true
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	inspect, err := i.client.ContainerExecInspect(context.Background(), created.ID)
	if err != nil {
		return nil, fmt.Errorf("inspect exec: %w", err)
	}
	result.ApplyShellStatus(inspect.ExitCode)
	return result, nil
}

// FileSystem returns the workspace file system.
func (i *Instance) FileSystem() fs.FileSystem {
	return &dockerFS{instance: i}
}

// Stop removes the container.
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

	err := i.client.ContainerRemove(ctx, i.id, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

// Status returns the current status.
func (i *Instance) Status(ctx context.Context) (provider.InstanceStatus, error) {
	i.mu.RLock()
	stopped, running := i.stopped, i.running
	i.mu.RUnlock()
	if stopped {
		return provider.StatusStopped, nil
	}

	info, err := i.client.ContainerInspect(ctx, i.id)
	if err != nil {
		return provider.StatusError, err
	}
	switch {
	case !info.State.Running:
		return provider.StatusStopped, nil
	case running > 0:
		return provider.StatusExecuting, nil
	}
	return provider.StatusRunning, nil
}

var (
	_ provider.Provider = (*Provider)(nil)
	_ provider.Instance = (*Instance)(nil)
)
