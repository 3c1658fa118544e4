package testutil

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/happyhackingspace/runbox/pkg/fs"
)

// MockFileSystem is an in-memory implementation of fs.FileSystem.
type MockFileSystem struct {
	files map[string][]byte
	mu    sync.RWMutex

	// Hooks for testing
	OnRead  func(ctx context.Context, path string) ([]byte, error)
	OnWrite func(ctx context.Context, path string, data []byte) error
}

// NewMockFileSystem creates a new mock filesystem.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		files: make(map[string][]byte),
	}
}

// Read reads a file from the mock filesystem.
func (f *MockFileSystem) Read(ctx context.Context, p string) ([]byte, error) {
	if f.OnRead != nil {
		return f.OnRead(ctx, p)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, ok := f.files[p]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", p)
	}
	return data, nil
}

// Write writes a file to the mock filesystem.
func (f *MockFileSystem) Write(ctx context.Context, p string, data []byte) error {
	if f.OnWrite != nil {
		return f.OnWrite(ctx, p, data)
	}
	if _, err := fs.Clean(p); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.files[p] = data
	return nil
}

// Delete removes a file or every file below a directory.
func (f *MockFileSystem) Delete(ctx context.Context, p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name := range f.files {
		if name == p || strings.HasPrefix(name, p+"/") {
			delete(f.files, name)
		}
	}
	return nil
}

// List returns the direct children of a directory.
func (f *MockFileSystem) List(ctx context.Context, p string) ([]fs.FileInfo, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	prefix := ""
	if p != "" && p != "." {
		prefix = p + "/"
	}

	seen := make(map[string]fs.FileInfo)
	for name, data := range f.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		child, _, isDir := strings.Cut(rest, "/")
		info := fs.FileInfo{
			Name:    child,
			Path:    path.Join(p, child),
			IsDir:   isDir,
			ModTime: time.Now(),
		}
		if !isDir {
			info.Size = int64(len(data))
		}
		seen[child] = info
	}

	result := make([]fs.FileInfo, 0, len(seen))
	for _, info := range seen {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Exists checks if a file exists.
func (f *MockFileSystem) Exists(ctx context.Context, p string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	_, ok := f.files[p]
	return ok, nil
}

// MkDir creates a directory (no-op in simple mock).
func (f *MockFileSystem) MkDir(ctx context.Context, p string) error {
	return nil
}

// SetFile adds a file to the mock filesystem (for test setup).
func (f *MockFileSystem) SetFile(p string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = content
}

// GetFile retrieves a file from the mock filesystem (for assertions).
func (f *MockFileSystem) GetFile(p string) ([]byte, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.files[p]
	return data, ok
}

// Paths returns every stored file path, sorted.
func (f *MockFileSystem) Paths() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	paths := make([]string, 0, len(f.files))
	for p := range f.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

var _ fs.FileSystem = (*MockFileSystem)(nil)
