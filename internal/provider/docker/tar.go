package docker

import (
	"archive/tar"
	"io"
	"path"
	"strings"
	"time"
)

// tarWriter builds the archives handed to CopyToContainer. Parent
// directories are emitted once, before the first file that needs them.
type tarWriter struct {
	tw   *tar.Writer
	dirs map[string]bool
	now  time.Time
}

func newTarWriter(w io.Writer) *tarWriter {
	return &tarWriter{
		tw:   tar.NewWriter(w),
		dirs: make(map[string]bool),
		now:  time.Now(),
	}
}

// WriteFile adds a file at a slash-separated relative path.
func (t *tarWriter) WriteFile(name string, content []byte) error {
	if dir := path.Dir(name); dir != "." {
		if err := t.WriteDir(dir); err != nil {
			return err
		}
	}

	header := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(content)),
		ModTime: t.now,
	}
	if err := t.tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := t.tw.Write(content)
	return err
}

// WriteDir adds a directory entry and any missing parents.
func (t *tarWriter) WriteDir(name string) error {
	name = strings.TrimSuffix(name, "/")
	if name == "." || name == "" || t.dirs[name] {
		return nil
	}
	if parent := path.Dir(name); parent != "." {
		if err := t.WriteDir(parent); err != nil {
			return err
		}
	}

	t.dirs[name] = true
	return t.tw.WriteHeader(&tar.Header{
		Name:     name + "/",
		Mode:     0o777,
		Typeflag: tar.TypeDir,
		ModTime:  t.now,
	})
}

// Close closes the tar writer.
func (t *tarWriter) Close() error {
	return t.tw.Close()
}
