package toolchain

import (
	"bytes"
	"fmt"
	"go/format"
	"path"
	"sort"
	"strconv"
	"text/template"

	"github.com/happyhackingspace/runbox/pkg/assemble"
	"github.com/happyhackingspace/runbox/pkg/fs"
	"github.com/happyhackingspace/runbox/pkg/unitkit"
)

const (
	// ModulePath is the module of every generated Go workspace.
	ModulePath = "submission"

	// EntryFile is the generated fixture entry point.
	EntryFile = "zz_entry.go"

	goModule = "module " + ModulePath + "\n\ngo 1.21\n"
)

// Go is the Go toolchain. In fixture mode it copies the test runtime into the
// workspace, discovers the fixture's tests and generates a main that
// registers them.
type Go struct {
	profile Profile
}

// NewGo returns the Go toolchain with default templates.
func NewGo() *Go {
	return &Go{profile: Profile{
		Compile: []string{"go build -o {output} ."},
		Run:     "./{output}",
		Output:  "prog",
		Env: []string{
			"CGO_ENABLED=0",
			"GOTOOLCHAIN=local",
			"GOFLAGS=-mod=mod",
			"GO111MODULE=on",
		},
	}}
}

func (g *Go) Name() string              { return "go" }
func (g *Go) Dialect() assemble.Dialect { return assemble.GoDialect{} }
func (g *Go) SupportsFixtures() bool    { return true }
func (g *Go) Profile() Profile          { return g.profile }

func (g *Go) WithProfile(p Profile) Toolchain {
	return &Go{profile: g.profile.merge(p)}
}

func (g *Go) Prepare(unit *assemble.Unit, workDir string) (*Build, error) {
	files := []fs.File{{Path: "go.mod", Data: []byte(goModule)}}

	fixtureMode := unit.Mode == assemble.ModeFixture
	for _, f := range unit.Fragments {
		src := f.Source
		if fixtureMode {
			src = InjectImport(src)
		}
		files = append(files, fs.File{Path: f.Name, Data: []byte(src)})
	}

	if fixtureMode {
		runtime, err := runtimeFiles()
		if err != nil {
			return nil, err
		}
		files = append(files, runtime...)

		fixture, _ := unit.Fragment(assemble.RoleFixture)
		// A fixture that does not parse gets no entry point; the compiler
		// then reports the syntax error itself.
		if suites, ok := Discover(InjectImport(fixture.Source)); ok {
			entry, err := GenerateEntry(suites)
			if err != nil {
				return nil, err
			}
			files = append(files, fs.File{Path: EntryFile, Data: entry})
		}
	}

	compile, run, err := g.profile.commands(Vars{
		Sources: unit.NamesWithExt(".go"),
		Output:  g.profile.Output,
		Main:    entryName(unit),
		WorkDir: workDir,
	})
	if err != nil {
		return nil, fmt.Errorf("go: %w", err)
	}

	return &Build{
		Files:   files,
		Compile: compile,
		Run:     run,
		Env:     append([]string(nil), g.profile.Env...),
	}, nil
}

var _ Toolchain = (*Go)(nil)

// runtimeFiles returns the test runtime sources placed at their import path.
func runtimeFiles() ([]fs.File, error) {
	sources, err := unitkit.Sources()
	if err != nil {
		return nil, fmt.Errorf("load test runtime: %w", err)
	}
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	dir := path.Base(unitkit.ImportPath)
	files := make([]fs.File, 0, len(names))
	for _, name := range names {
		files = append(files, fs.File{Path: path.Join(dir, name), Data: sources[name]})
	}
	return files, nil
}

var entryTemplate = template.Must(template.New("entry").Funcs(template.FuncMap{
	"quote": strconv.Quote,
}).Parse(`// Code generated by runbox. DO NOT EDIT.

package main

import (
	zzos "os"

	zzunitkit {{quote .Import}}
)

func main() {
	r := zzunitkit.NewRegistry()
{{- range .Suites}}
{{- if .Functions}}
	r.Functions({{quote .Name}})
{{- range .Tests}}.
		Add({{quote .}}, func(_ any, t *zzunitkit.T) { {{.}}(t) })
{{- end}}
{{- else}}
	r.Suite({{quote .Name}}, func() any { return new({{.Name}}) })
{{- $s := .}}{{range .Tests}}.
		Add({{quote .}}, func(s any, t *zzunitkit.T) { s.(*{{$s.Name}}).{{.}}(t) })
{{- end}}
{{- end}}
{{- end}}
	zzos.Exit(zzunitkit.Main(r))
}
`))

// GenerateEntry renders the main function that registers suites with the
// test runtime and runs them.
func GenerateEntry(suites []*DiscoveredSuite) ([]byte, error) {
	var buf bytes.Buffer
	err := entryTemplate.Execute(&buf, struct {
		Import string
		Suites []*DiscoveredSuite
	}{unitkit.ImportPath, suites})
	if err != nil {
		return nil, fmt.Errorf("render entry: %w", err)
	}

	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format entry: %w", err)
	}
	return out, nil
}
