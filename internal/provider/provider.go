// Package provider defines the interfaces implemented by workspace providers.
// A provider hands out isolated working directories and runs commands inside
// them; it knows nothing about languages or the fixture protocol.
package provider

import (
	"context"
	"time"

	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/fs"
)

// Provider creates workspaces. Each provider has its own isolation strategy.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Create allocates a fresh workspace for a single run.
	Create(ctx context.Context, opts *CreateOptions) (Instance, error)

	// Capabilities returns what this provider supports.
	Capabilities() Capabilities

	// Validate checks if the provider is available and configured.
	Validate(ctx context.Context) error

	// Close releases provider resources and stops outstanding instances.
	Close() error
}

// Instance is one workspace: a directory of files plus a place to run
// commands against them.
type Instance interface {
	// ID returns the unique instance identifier.
	ID() string

	// WorkDir is the workspace root as seen by commands run through Exec.
	WorkDir() string

	// FileSystem returns the workspace file system. Paths are relative to
	// the workspace root.
	FileSystem() fs.FileSystem

	// Exec runs a command in the workspace and waits for it to terminate.
	// An empty command.Dir means the workspace root. The returned result
	// carries exactly one of an exit code or a terminating signal.
	// Cancelling ctx kills the command and everything it spawned.
	Exec(ctx context.Context, command executor.Command, handler executor.StreamHandler) (*executor.ExecutionResult, error)

	// Stop releases the workspace. It is safe to call more than once.
	Stop(ctx context.Context) error

	// Status returns the current status.
	Status(ctx context.Context) (InstanceStatus, error)
}

// InstanceStatus represents the current state of an instance.
type InstanceStatus string

const (
	StatusCreating  InstanceStatus = "creating"
	StatusRunning   InstanceStatus = "running"
	StatusExecuting InstanceStatus = "executing"
	StatusStopped   InstanceStatus = "stopped"
	StatusError     InstanceStatus = "error"
)

// Capabilities describes what a provider supports.
type Capabilities struct {
	// Isolated is true when commands run behind a namespace or container
	// boundary rather than directly on the host.
	Isolated bool

	// ExactSignals is true when a terminating signal is read from the wait
	// status. Providers that run commands through a supervising shell or
	// jail only see 128+N and decode it.
	ExactSignals bool

	// SupportsStreaming indicates if real-time output streaming is supported.
	SupportsStreaming bool

	// MaxMemoryMB is the memory limit applied to commands, 0 if unlimited.
	MaxMemoryMB int

	// MaxCPUs is the CPU limit applied to commands, 0 if unlimited.
	MaxCPUs float64
}

// CreateOptions configures workspace creation.
type CreateOptions struct {
	// ID names the workspace. Usually the run identifier.
	ID string

	// Language is the canonical language identifier of the run.
	Language string

	// Image overrides the container image for container providers.
	Image string

	// Resources defines resource limits.
	Resources ResourceConfig

	// Env is appended to the base environment of every command.
	Env []string

	// Timeout bounds the lifetime of the workspace; 0 means no bound.
	Timeout time.Duration

	// Labels for tagging/identification.
	Labels map[string]string

	// InternetAccess controls network access.
	InternetAccess bool
}

// DefaultCreateOptions returns sensible defaults.
func DefaultCreateOptions() *CreateOptions {
	return &CreateOptions{
		Resources: ResourceConfig{
			MemoryMB:  512,
			CPUs:      1,
			PidsLimit: 256,
		},
		Labels: make(map[string]string),
	}
}

// ResourceConfig specifies resource limits.
type ResourceConfig struct {
	// MemoryMB is the memory limit in megabytes.
	MemoryMB int

	// CPUs is the CPU limit (can be fractional).
	CPUs float64

	// PidsLimit caps the number of processes in the workspace.
	PidsLimit int
}
