package toolchain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/happyhackingspace/runbox/pkg/langdetect"
)

// Registry maps language identifiers to toolchains.
type Registry struct {
	mu         sync.RWMutex
	toolchains map[string]Toolchain
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{toolchains: make(map[string]Toolchain)}
}

// Builtin returns a registry holding the go, c, cpp, objc and python
// toolchains.
func Builtin() *Registry {
	r := NewRegistry()
	for _, tc := range []Toolchain{NewGo(), C(), CPP(), ObjC(), Python()} {
		r.Register(tc)
	}
	return r
}

// Register adds or replaces a toolchain under its name.
func (r *Registry) Register(tc Toolchain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolchains[tc.Name()] = tc
}

// Get returns the toolchain for language, which may be any alias known to
// langdetect.
func (r *Registry) Get(language string) (Toolchain, error) {
	id := langdetect.Normalize(language)
	if id == "" {
		id = language
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	tc, ok := r.toolchains[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownToolchain, language)
	}
	return tc, nil
}

// Configure replaces the templates of a registered toolchain. Empty fields
// of p keep their current values.
func (r *Registry) Configure(language string, p Profile) error {
	tc, err := r.Get(language)
	if err != nil {
		return err
	}
	r.Register(tc.WithProfile(p))
	return nil
}

// Languages returns the registered language identifiers, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.toolchains))
	for name := range r.toolchains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
