//go:build integration

package docker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/happyhackingspace/runbox/internal/provider"
	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/fs"
)

func newIntegrationInstance(t *testing.T, ctx context.Context, image string) provider.Instance {
	t.Helper()
	p, err := New(nil)
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	if err := p.Validate(ctx); err != nil {
		t.Skipf("Docker not available: %v", err)
	}

	instance, err := p.Create(ctx, &provider.CreateOptions{ID: "it", Image: image, Resources: provider.ResourceConfig{MemoryMB: 256, CPUs: 1, PidsLimit: 64}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { instance.Stop(context.Background()) })
	return instance
}

func TestDockerProviderIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	instance := newIntegrationInstance(t, ctx, "busybox:latest")

	t.Run("files", func(t *testing.T) {
		fsys := instance.FileSystem()
		if err := fs.WriteFiles(ctx, fsys, []fs.File{
			{Path: "main.sh", Data: []byte("echo hello from $PWD\n")},
			{Path: "lib/util.sh", Data: []byte("echo util\n")},
		}); err != nil {
			t.Fatalf("WriteFiles() error = %v", err)
		}

		data, err := fsys.Read(ctx, "lib/util.sh")
		if err != nil || string(data) != "echo util\n" {
			t.Fatalf("Read() = %q, %v", data, err)
		}

		entries, err := fsys.List(ctx, ".")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		names := map[string]bool{}
		for _, e := range entries {
			names[e.Name] = e.IsDir
		}
		if isDir, ok := names["lib"]; !ok || !isDir {
			t.Errorf("List() = %+v, want lib directory", entries)
		}

		if ok, _ := fsys.Exists(ctx, "missing.txt"); ok {
			t.Error("Exists(missing.txt) = true")
		}
		if err := fsys.Delete(ctx, "lib"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if ok, _ := fsys.Exists(ctx, "lib/util.sh"); ok {
			t.Error("file still exists after Delete")
		}
	})

	t.Run("exec", func(t *testing.T) {
		result, err := instance.Exec(ctx, executor.Command{Args: []string{"sh", "main.sh"}}, nil)
		if err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		if !strings.Contains(result.Stdout, "hello from /workspace") {
			t.Errorf("Stdout = %q", result.Stdout)
		}
		if code, ok := result.Code(); !ok || code != 0 {
			t.Errorf("Code() = %d, %v", code, ok)
		}
	})

	t.Run("stdin and env", func(t *testing.T) {
		result, err := instance.Exec(ctx, executor.Command{
			Args:  []string{"sh", "-c", "read line; echo \"$line $NAME\""},
			Env:   []string{"NAME=docker"},
			Stdin: "hi\n",
		}, nil)
		if err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		if strings.TrimSpace(result.Stdout) != "hi docker" {
			t.Errorf("Stdout = %q", result.Stdout)
		}
	})

	t.Run("signal", func(t *testing.T) {
		result, err := instance.Exec(ctx, executor.Command{Args: []string{"sh", "-c", "kill -SEGV $$"}}, nil)
		if err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		if sig, ok := result.Signal(); !ok || sig != "SIGSEGV" {
			t.Errorf("Signal() = %q, %v, want SIGSEGV", sig, ok)
		}
	})

	t.Run("streaming", func(t *testing.T) {
		var chunks []string
		result, err := instance.Exec(ctx, executor.Command{Args: []string{"sh", "-c", "echo one; echo two >&2"}}, func(ev *executor.StreamEvent) error {
			chunks = append(chunks, ev.Data)
			return nil
		})
		if err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		if len(chunks) == 0 {
			t.Error("handler received no output")
		}
		if result.Stderr != "two\n" {
			t.Errorf("Stderr = %q", result.Stderr)
		}
	})
}

func TestDockerProviderCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	instance := newIntegrationInstance(t, ctx, "busybox:latest")

	runCtx, stop := context.WithTimeout(ctx, 2*time.Second)
	defer stop()
	result, err := instance.Exec(runCtx, executor.Command{Args: []string{"sleep", "60"}}, nil)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if !result.Canceled {
		t.Error("Canceled = false")
	}
	if sig, ok := result.Signal(); !ok || sig != "SIGKILL" {
		t.Errorf("Signal() = %q, %v, want SIGKILL", sig, ok)
	}
}
