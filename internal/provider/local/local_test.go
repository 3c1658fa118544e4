//go:build unix

package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/happyhackingspace/runbox/internal/factory"
	"github.com/happyhackingspace/runbox/internal/provider"
	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/fs"
)

func newInstance(t *testing.T, cfg *Config) (*Provider, provider.Instance) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BaseDir == "" {
		cfg.BaseDir = t.TempDir()
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	inst, err := p.Create(context.Background(), &provider.CreateOptions{ID: "run-1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, inst
}

func TestRegistered(t *testing.T) {
	if !factory.IsRegistered(Name) {
		t.Fatal("local provider not registered")
	}
	p, err := factory.New(Name, &Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("factory.New() error = %v", err)
	}
	defer p.Close()
	if p.Name() != Name {
		t.Errorf("Name() = %q", p.Name())
	}

	if _, err := factory.New(Name, 42); err == nil {
		t.Error("factory.New() accepted an invalid config type")
	}
}

func TestCreateWorkspace(t *testing.T) {
	_, inst := newInstance(t, nil)

	if inst.ID() != "run-1" {
		t.Errorf("ID() = %q, want run-1", inst.ID())
	}
	info, err := os.Stat(inst.WorkDir())
	if err != nil || !info.IsDir() {
		t.Fatalf("WorkDir() %q is not a directory: %v", inst.WorkDir(), err)
	}
	if st, _ := inst.Status(context.Background()); st != provider.StatusRunning {
		t.Errorf("Status() = %q, want running", st)
	}
}

func TestExecInWorkspace(t *testing.T) {
	_, inst := newInstance(t, nil)
	ctx := context.Background()

	if err := fs.WriteFiles(ctx, inst.FileSystem(), []fs.File{
		{Path: "main.sh", Data: []byte("cat data/input.txt; echo \"$GREETING\"\n")},
		{Path: "data/input.txt", Data: []byte("from file\n")},
	}); err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}

	res, err := inst.Exec(ctx, executor.Command{
		Args: []string{"/bin/sh", "main.sh"},
		Env:  []string{"GREETING=hello"},
	}, nil)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if res.Stdout != "from file\nhello\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if code, ok := res.Code(); !ok || code != 0 {
		t.Errorf("Code() = %d, %v", code, ok)
	}
}

func TestExecSubdirectory(t *testing.T) {
	_, inst := newInstance(t, nil)
	ctx := context.Background()

	if err := inst.FileSystem().MkDir(ctx, "sub"); err != nil {
		t.Fatalf("MkDir() error = %v", err)
	}
	res, err := inst.Exec(ctx, executor.Command{Args: []string{"/bin/sh", "-c", "pwd"}, Dir: "sub"}, nil)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	want, _ := filepath.EvalSymlinks(filepath.Join(inst.WorkDir(), "sub"))
	got, _ := filepath.EvalSymlinks(strings.TrimSpace(res.Stdout))
	if got != want {
		t.Errorf("pwd = %q, want %q", got, want)
	}

	if _, err := inst.Exec(ctx, executor.Command{Args: []string{"true"}, Dir: "../escape"}, nil); !errors.Is(err, fs.ErrOutsideWorkspace) {
		t.Errorf("Exec() with escaping dir error = %v, want ErrOutsideWorkspace", err)
	}
}

func TestExecReportsSignal(t *testing.T) {
	p, inst := newInstance(t, nil)
	if !p.Capabilities().ExactSignals {
		t.Fatal("local provider should report exact signals")
	}

	res, err := inst.Exec(context.Background(), executor.Command{Args: []string{"/bin/sh", "-c", "kill -ABRT $$"}}, nil)
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if sig, ok := res.Signal(); !ok || sig != "SIGABRT" {
		t.Errorf("Signal() = %q, %v, want SIGABRT", sig, ok)
	}
}

func TestStopRemovesWorkspace(t *testing.T) {
	_, inst := newInstance(t, nil)
	ctx := context.Background()
	dir := inst.WorkDir()

	if err := inst.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after Stop: %v", err)
	}
	if err := inst.Stop(ctx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
	if st, _ := inst.Status(ctx); st != provider.StatusStopped {
		t.Errorf("Status() = %q, want stopped", st)
	}
	if _, err := inst.Exec(ctx, executor.Command{Args: []string{"true"}}, nil); err == nil {
		t.Error("Exec() after Stop succeeded")
	}
}

func TestKeepWorkspaces(t *testing.T) {
	_, inst := newInstance(t, &Config{KeepWorkspaces: true})
	dir := inst.WorkDir()

	if err := inst.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("workspace removed despite KeepWorkspaces: %v", err)
	}
}

func TestCloseStopsInstances(t *testing.T) {
	p, inst := newInstance(t, nil)
	dir := inst.WorkDir()

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after Close: %v", err)
	}
}

func TestValidate(t *testing.T) {
	p, _ := New(&Config{BaseDir: t.TempDir()})
	if err := p.Validate(context.Background()); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, nil, 0o644)
	p, _ = New(&Config{BaseDir: file})
	if err := p.Validate(context.Background()); err == nil {
		t.Error("Validate() accepted a file as base dir")
	}
}
