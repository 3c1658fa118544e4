package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/fs"
)

// dockerFS implements fs.FileSystem over the container's workspace.
// Transfers go through the archive endpoints; only Delete needs a process.
type dockerFS struct {
	instance *Instance
}

func (d *dockerFS) abs(p string) (string, error) {
	clean, err := fs.Clean(p)
	if err != nil {
		return "", err
	}
	return path.Join(d.instance.workDir, clean), nil
}

// Read reads file contents.
func (d *dockerFS) Read(ctx context.Context, p string) ([]byte, error) {
	full, err := d.abs(p)
	if err != nil {
		return nil, err
	}
	reader, _, err := d.instance.client.CopyFromContainer(ctx, d.instance.id, full)
	if err != nil {
		return nil, fmt.Errorf("copy from container: %w", err)
	}
	defer reader.Close()

	tr := tar.NewReader(reader)
	header, err := tr.Next()
	if err != nil {
		return nil, fmt.Errorf("read tar header: %w", err)
	}
	if header.Typeflag == tar.TypeDir {
		return nil, fmt.Errorf("%s is a directory", p)
	}
	return io.ReadAll(tr)
}

// Write writes data to a file.
func (d *dockerFS) Write(ctx context.Context, p string, data []byte) error {
	return d.WriteFiles(ctx, []fs.File{{Path: p, Data: data}})
}

// WriteFiles copies all files into the workspace as a single archive.
func (d *dockerFS) WriteFiles(ctx context.Context, files []fs.File) error {
	var buf bytes.Buffer
	tw := newTarWriter(&buf)
	for _, f := range files {
		clean, err := fs.Clean(f.Path)
		if err != nil {
			return err
		}
		if err := tw.WriteFile(clean, f.Data); err != nil {
			return fmt.Errorf("archive %s: %w", f.Path, err)
		}
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return d.copyIn(ctx, &buf)
}

// MkDir creates a directory.
func (d *dockerFS) MkDir(ctx context.Context, p string) error {
	clean, err := fs.Clean(p)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	tw := newTarWriter(&buf)
	if err := tw.WriteDir(clean); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return d.copyIn(ctx, &buf)
}

func (d *dockerFS) copyIn(ctx context.Context, archive io.Reader) error {
	err := d.instance.client.CopyToContainer(ctx, d.instance.id, d.instance.workDir, archive, container.CopyToContainerOptions{})
	if err != nil {
		return fmt.Errorf("copy to container: %w", err)
	}
	return nil
}

// Delete removes a file or directory.
func (d *dockerFS) Delete(ctx context.Context, p string) error {
	clean, err := fs.Clean(p)
	if err != nil {
		return err
	}
	if clean == "." {
		return errors.New("refusing to delete the workspace root")
	}

	result, err := d.instance.Exec(ctx, executor.Command{Args: []string{"rm", "-rf", "--", clean}}, nil)
	if err != nil {
		return err
	}
	if !result.Succeeded() {
		return fmt.Errorf("delete %s: %s", p, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// List lists the direct children of a directory.
func (d *dockerFS) List(ctx context.Context, p string) ([]fs.FileInfo, error) {
	full, err := d.abs(p)
	if err != nil {
		return nil, err
	}
	reader, _, err := d.instance.client.CopyFromContainer(ctx, d.instance.id, full)
	if err != nil {
		return nil, fmt.Errorf("copy from container: %w", err)
	}
	defer reader.Close()

	return listArchive(reader, path.Clean(p))
}

// listArchive returns the depth-one entries of a directory archive as
// produced by CopyFromContainer, whose entries are rooted at the base name
// of the requested directory.
func listArchive(r io.Reader, dir string) ([]fs.FileInfo, error) {
	tr := tar.NewReader(r)
	root, err := tr.Next()
	if err != nil {
		return nil, fmt.Errorf("read tar header: %w", err)
	}
	if root.Typeflag != tar.TypeDir {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	prefix := strings.TrimSuffix(root.Name, "/") + "/"

	var files []fs.FileInfo
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		rel := strings.TrimSuffix(strings.TrimPrefix(header.Name, prefix), "/")
		if rel == "" || strings.Contains(rel, "/") {
			continue
		}
		files = append(files, fs.FileInfo{
			Name:    rel,
			Path:    path.Join(dir, rel),
			Size:    header.Size,
			IsDir:   header.Typeflag == tar.TypeDir,
			ModTime: header.ModTime,
		})
	}
	return files, nil
}

// Exists checks if a path exists.
func (d *dockerFS) Exists(ctx context.Context, p string) (bool, error) {
	full, err := d.abs(p)
	if err != nil {
		return false, err
	}
	if _, err := d.instance.client.ContainerStatPath(ctx, d.instance.id, full); err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	return true, nil
}

var (
	_ fs.FileSystem  = (*dockerFS)(nil)
	_ fs.BatchWriter = (*dockerFS)(nil)
)
