// Package fs provides file access to run workspaces.
package fs

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

// ErrOutsideWorkspace is returned for paths that escape the workspace root.
var ErrOutsideWorkspace = errors.New("path escapes workspace")

// FileSystem provides file operations within a workspace. Paths are slash
// separated and relative to the workspace root.
type FileSystem interface {
	// Read reads file contents.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write writes data to a file, creating parent directories.
	Write(ctx context.Context, path string, data []byte) error

	// Delete removes a file or directory tree.
	Delete(ctx context.Context, path string) error

	// List lists the entries of a directory.
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Exists checks if a path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// MkDir creates a directory (including parents).
	MkDir(ctx context.Context, path string) error
}

// BatchWriter is implemented by file systems that can write many files in
// one operation.
type BatchWriter interface {
	WriteFiles(ctx context.Context, files []File) error
}

// File is a path and its contents.
type File struct {
	Path string
	Data []byte
}

// FileInfo contains file metadata.
type FileInfo struct {
	// Name is the base name of the file.
	Name string

	// Path is the path relative to the workspace root.
	Path string

	// Size is the file size in bytes.
	Size int64

	// IsDir indicates if this is a directory.
	IsDir bool

	// ModTime is the modification time.
	ModTime time.Time
}

// WriteFiles writes files through fsys, in one batch when supported.
func WriteFiles(ctx context.Context, fsys FileSystem, files []File) error {
	if bw, ok := fsys.(BatchWriter); ok {
		return bw.WriteFiles(ctx, files)
	}
	for _, f := range files {
		if err := fsys.Write(ctx, f.Path, f.Data); err != nil {
			return err
		}
	}
	return nil
}

// Clean validates a workspace-relative path and returns it in canonical
// form. Absolute paths and paths leaving the root are rejected.
func Clean(p string) (string, error) {
	if p == "" {
		return ".", nil
	}
	if path.IsAbs(p) || strings.Contains(p, "\\") {
		return "", ErrOutsideWorkspace
	}
	c := path.Clean(p)
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", ErrOutsideWorkspace
	}
	return c, nil
}
