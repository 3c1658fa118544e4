package unitkit

import (
	"embed"
	"io/fs"
	"sort"
)

// ImportPath is where the runtime lives inside a generated fixture module.
const ImportPath = "submission/unitkit"

//go:embed unitkit.go reporter.go exception.go assert.go registry.go run.go
var sources embed.FS

// Sources returns the runtime's source files keyed by file name, ready to be
// copied into a fixture workspace.
func Sources() (map[string][]byte, error) {
	entries, err := fs.ReadDir(sources, ".")
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		data, err := sources.ReadFile(e.Name())
		if err != nil {
			return nil, err
		}
		out[e.Name()] = data
	}
	return out, nil
}

// SourceNames returns the embedded file names in sorted order.
func SourceNames() []string {
	entries, _ := fs.ReadDir(sources, ".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}
