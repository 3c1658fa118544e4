package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/happyhackingspace/runbox/internal/provider"
	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/fs"
)

var instanceCounter uint64

// MockInstance is a configurable mock implementation of provider.Instance.
type MockInstance struct {
	id         string
	provider   *MockProvider
	status     provider.InstanceStatus
	filesystem *MockFileSystem
	mu         sync.RWMutex

	// Command history for assertions
	Commands []CommandRecord

	// Hooks for testing
	OnExec ExecFunc
	OnStop func(ctx context.Context) error
}

// CommandRecord records a command execution for testing assertions.
type CommandRecord struct {
	Command executor.Command
	Result  *executor.ExecutionResult
	Error   error
}

// NewMockInstance creates a new mock instance.
func NewMockInstance(p *MockProvider) *MockInstance {
	n := atomic.AddUint64(&instanceCounter, 1)
	return &MockInstance{
		id:         fmt.Sprintf("mock-%d", n),
		provider:   p,
		status:     provider.StatusRunning,
		filesystem: NewMockFileSystem(),
	}
}

// ID returns the instance ID.
func (i *MockInstance) ID() string {
	return i.id
}

// WorkDir returns the workspace root commands see.
func (i *MockInstance) WorkDir() string {
	return "/workspace"
}

// FileSystem returns the mock filesystem.
func (i *MockInstance) FileSystem() fs.FileSystem {
	return i.filesystem
}

// Files returns the mock filesystem with its test helpers.
func (i *MockInstance) Files() *MockFileSystem {
	return i.filesystem
}

// Exec runs a command through OnExec. Without a hook every command exits
// with status 0. Captured output is replayed to handler.
func (i *MockInstance) Exec(ctx context.Context, cmd executor.Command, handler executor.StreamHandler) (*executor.ExecutionResult, error) {
	i.mu.RLock()
	stopped := i.status == provider.StatusStopped
	i.mu.RUnlock()
	if stopped {
		return nil, fmt.Errorf("instance %s is stopped", i.id)
	}

	var result *executor.ExecutionResult
	var err error
	if i.OnExec != nil {
		result, err = i.OnExec(ctx, cmd)
	} else {
		result = Exited("", "", 0)
	}

	i.mu.Lock()
	i.Commands = append(i.Commands, CommandRecord{Command: cmd, Result: result, Error: err})
	i.mu.Unlock()

	if err != nil {
		return nil, err
	}

	if handler != nil {
		if result.Stdout != "" {
			_ = handler(&executor.StreamEvent{Type: executor.StreamStdout, Data: result.Stdout, Timestamp: time.Now()})
		}
		if result.Stderr != "" {
			_ = handler(&executor.StreamEvent{Type: executor.StreamStderr, Data: result.Stderr, Timestamp: time.Now()})
		}
	}
	return result, nil
}

// History returns the executed commands in order.
func (i *MockInstance) History() []CommandRecord {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]CommandRecord(nil), i.Commands...)
}

// Stop terminates the mock instance.
func (i *MockInstance) Stop(ctx context.Context) error {
	if i.OnStop != nil {
		return i.OnStop(ctx)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = provider.StatusStopped
	return nil
}

// Status returns the current status.
func (i *MockInstance) Status(ctx context.Context) (provider.InstanceStatus, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status, nil
}

// SetStatus allows tests to set the instance status.
func (i *MockInstance) SetStatus(status provider.InstanceStatus) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = status
}

// Exited returns a result for a normal termination.
func Exited(stdout, stderr string, code int) *executor.ExecutionResult {
	r := &executor.ExecutionResult{Stdout: stdout, Stderr: stderr, Duration: 10 * time.Millisecond}
	r.SetExitCode(code)
	return r
}

// Signaled returns a result for a termination by signal.
func Signaled(stdout, stderr, signal string) *executor.ExecutionResult {
	r := &executor.ExecutionResult{Stdout: stdout, Stderr: stderr, Duration: 10 * time.Millisecond}
	r.SetSignal(signal)
	return r
}

// ByProgram dispatches on the first argument of the command. Commands
// without an entry exit with status 0.
func ByProgram(programs map[string]ExecFunc) ExecFunc {
	return func(ctx context.Context, cmd executor.Command) (*executor.ExecutionResult, error) {
		if len(cmd.Args) > 0 {
			if fn, ok := programs[cmd.Args[0]]; ok {
				return fn(ctx, cmd)
			}
		}
		return Exited("", "", 0), nil
	}
}

// Returns is an ExecFunc that always yields a copy of r.
func Returns(r *executor.ExecutionResult) ExecFunc {
	return func(context.Context, executor.Command) (*executor.ExecutionResult, error) {
		c := *r
		return &c, nil
	}
}

// BlockUntilDone waits for ctx and reports the command as killed.
func BlockUntilDone(ctx context.Context, _ executor.Command) (*executor.ExecutionResult, error) {
	<-ctx.Done()
	r := Signaled("", "", "SIGKILL")
	r.Canceled = true
	return r, nil
}

var _ provider.Instance = (*MockInstance)(nil)
