//go:build unix

package process

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/happyhackingspace/runbox/pkg/executor"
)

func run(t *testing.T, ctx context.Context, cmd executor.Command, handler executor.StreamHandler) *executor.ExecutionResult {
	t.Helper()
	res, err := New().Run(ctx, cmd, handler)
	if err != nil {
		t.Fatalf("Run(%q) error = %v", cmd.Args, err)
	}
	return res
}

func sh(script string) executor.Command {
	return executor.Command{Args: []string{"/bin/sh", "-c", script}}
}

func TestRunExitCode(t *testing.T) {
	res := run(t, context.Background(), sh("echo out; echo err 1>&2; exit 10"), nil)

	if res.Stdout != "out\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "out\n")
	}
	if res.Stderr != "err\n" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "err\n")
	}
	if code, ok := res.Code(); !ok || code != 10 {
		t.Errorf("Code() = %d, %v, want 10, true", code, ok)
	}
	if _, ok := res.Signal(); ok {
		t.Error("Signal() present for a normal exit")
	}
	if res.Outcome() != executor.OutcomeExited {
		t.Errorf("Outcome() = %q, want %q", res.Outcome(), executor.OutcomeExited)
	}
}

func TestRunSignal(t *testing.T) {
	res := run(t, context.Background(), sh("kill -SEGV $$"), nil)

	if _, ok := res.Code(); ok {
		t.Error("Code() present for a signaled process")
	}
	if sig, ok := res.Signal(); !ok || sig != "SIGSEGV" {
		t.Errorf("Signal() = %q, %v, want SIGSEGV, true", sig, ok)
	}
	if res.Canceled {
		t.Error("Canceled = true without cancellation")
	}
}

func TestRunCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := run(t, ctx, sh("sleep 30"), nil)

	if time.Since(start) > 10*time.Second {
		t.Fatalf("cancellation took %v", time.Since(start))
	}
	if sig, ok := res.Signal(); !ok || sig != "SIGKILL" {
		t.Errorf("Signal() = %q, %v, want SIGKILL, true", sig, ok)
	}
	if !res.Canceled {
		t.Error("Canceled = false, want true")
	}
}

func TestRunReapsBackgroundChildren(t *testing.T) {
	start := time.Now()
	res := run(t, context.Background(), sh("sleep 30 & echo done"), nil)

	if time.Since(start) > 10*time.Second {
		t.Fatalf("Run waited %v for a background child", time.Since(start))
	}
	if res.Stdout != "done\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "done\n")
	}
	if code, _ := res.Code(); code != 0 {
		t.Errorf("Code() = %d, want 0", code)
	}
}

func TestRunDetachedChildHoldingStdout(t *testing.T) {
	if _, err := exec.LookPath("setsid"); err != nil {
		t.Skip("setsid not available")
	}

	c := &Controller{WaitDelay: 200 * time.Millisecond}
	start := time.Now()
	res, err := c.Run(context.Background(), sh("setsid sleep 5 & sleep 0.2; echo hi"), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Run took %v, want bounded by the wait delay", elapsed)
	}
	if res.Stdout != "hi\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hi\n")
	}
	if code, ok := res.Code(); !ok || code != 0 {
		t.Errorf("Code() = %d, %v, want 0, true", code, ok)
	}
}

func TestRunDrainsLargeOutput(t *testing.T) {
	res := run(t, context.Background(), sh("i=0; while [ $i -lt 20000 ]; do echo 0123456789012345678901234567890123456789; i=$((i+1)); done"), nil)

	if want := 20000 * 41; len(res.Stdout) != want {
		t.Errorf("len(Stdout) = %d, want %d", len(res.Stdout), want)
	}
}

func TestRunOutputLimit(t *testing.T) {
	cmd := sh("echo 0123456789")
	cmd.MaxOutputBytes = 4
	res := run(t, context.Background(), cmd, nil)

	if res.Stdout != "0123" || !res.Truncated {
		t.Errorf("Stdout = %q, Truncated = %v", res.Stdout, res.Truncated)
	}
}

func TestRunStdinAndEnv(t *testing.T) {
	cmd := sh(`cat; printf "%s" "$RUNBOX_TEST"`)
	cmd.Stdin = "hello "
	cmd.Env = []string{"RUNBOX_TEST=world"}
	res := run(t, context.Background(), cmd, nil)

	if res.Stdout != "hello world" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hello world")
	}
}

func TestRunDir(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cmd := sh("pwd -P")
	cmd.Dir = dir
	res := run(t, context.Background(), cmd, nil)

	if got := strings.TrimSpace(res.Stdout); got != dir {
		t.Errorf("pwd = %q, want %q", got, dir)
	}
}

func TestRunStreamHandler(t *testing.T) {
	var mu sync.Mutex
	var out, errOut strings.Builder
	handler := func(e *executor.StreamEvent) error {
		mu.Lock()
		defer mu.Unlock()
		switch e.Type {
		case executor.StreamStdout:
			out.WriteString(e.Data)
		case executor.StreamStderr:
			errOut.WriteString(e.Data)
		}
		return nil
	}

	res := run(t, context.Background(), sh("echo a; echo b 1>&2; echo c"), handler)

	mu.Lock()
	defer mu.Unlock()
	if out.String() != res.Stdout || out.String() != "a\nc\n" {
		t.Errorf("streamed stdout = %q, captured %q", out.String(), res.Stdout)
	}
	if errOut.String() != "b\n" {
		t.Errorf("streamed stderr = %q, want %q", errOut.String(), "b\n")
	}
}

func TestRunErrors(t *testing.T) {
	c := New()

	if _, err := c.Run(context.Background(), executor.Command{}, nil); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Run(empty) error = %v, want %v", err, ErrEmptyCommand)
	}
	if _, err := c.Run(context.Background(), executor.Command{Args: []string{"/nonexistent/runbox-binary"}}, nil); err == nil {
		t.Error("Run(missing binary) should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Run(ctx, sh("true"), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Run(canceled ctx) error = %v, want %v", err, context.Canceled)
	}
}

func TestControllerEnv(t *testing.T) {
	c := &Controller{Env: []string{"ONLY=1"}}
	res, err := c.Run(context.Background(), executor.Command{Args: []string{"/usr/bin/env"}}, nil)
	if err != nil {
		t.Skipf("env unavailable: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "ONLY=1" {
		t.Errorf("env = %q, want ONLY=1", res.Stdout)
	}
}
