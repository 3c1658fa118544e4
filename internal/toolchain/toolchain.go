// Package toolchain turns an assembled unit into the files and commands that
// build and run it. One Toolchain exists per language; the commands it
// returns are executed by a provider instance, never by this package.
package toolchain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/shlex"

	"github.com/happyhackingspace/runbox/pkg/assemble"
	"github.com/happyhackingspace/runbox/pkg/fs"
)

var (
	// ErrUnknownToolchain is returned for a language without a toolchain.
	ErrUnknownToolchain = errors.New("unknown toolchain")

	// ErrFixtureNotSupported is returned when a fixture is given for a
	// language whose toolchain has no test runtime.
	ErrFixtureNotSupported = errors.New("fixtures not supported for this language")
)

// Toolchain is the compiler/interpreter adapter for one language.
type Toolchain interface {
	// Name returns the language identifier.
	Name() string

	// Dialect returns how units of this language are laid out.
	Dialect() assemble.Dialect

	// SupportsFixtures reports whether the toolchain can drive a fixture.
	SupportsFixtures() bool

	// Profile returns the command templates in use.
	Profile() Profile

	// WithProfile returns a copy using p, with empty fields of p keeping
	// the current values.
	WithProfile(p Profile) Toolchain

	// Prepare returns the files and commands for unit. workDir is the
	// workspace root as seen by the commands.
	Prepare(unit *assemble.Unit, workDir string) (*Build, error)
}

// Build is everything needed to compile and run one unit.
type Build struct {
	// Files are written to the workspace before any command runs.
	Files []fs.File

	// Compile are the compile steps in order, run from the workspace root.
	// Empty for interpreted languages.
	Compile [][]string

	// Run starts the program.
	Run []string

	// Env is added to every command.
	Env []string
}

// Profile holds the command templates of a toolchain. Templates are split
// with shell quoting rules and support these placeholders:
//
//	{sources}  every compiled source file, as separate arguments
//	{output}   the artifact name
//	{main}     the entry fragment (main or fixture)
//	{workdir}  the workspace root
type Profile struct {
	Compile []string `mapstructure:"compile" yaml:"compile,omitempty"`
	Run     string   `mapstructure:"run" yaml:"run,omitempty"`
	Env     []string `mapstructure:"env" yaml:"env,omitempty"`
	Output  string   `mapstructure:"output" yaml:"output,omitempty"`
}

// merge returns p with the non-empty fields of o applied.
func (p Profile) merge(o Profile) Profile {
	if o.Compile != nil {
		p.Compile = append([]string(nil), o.Compile...)
	}
	if o.Run != "" {
		p.Run = o.Run
	}
	if o.Env != nil {
		p.Env = append([]string(nil), o.Env...)
	}
	if o.Output != "" {
		p.Output = o.Output
	}
	return p
}

// Vars are the values substituted into templates.
type Vars struct {
	Sources []string
	Output  string
	Main    string
	WorkDir string
}

// Expand splits tmpl into argv and substitutes placeholders. A {sources}
// argument on its own expands to one argument per source; embedded in a
// longer argument the sources are joined with spaces.
func Expand(tmpl string, v Vars) ([]string, error) {
	words, err := shlex.Split(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse command %q: %w", tmpl, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command template")
	}

	replacer := strings.NewReplacer(
		"{sources}", strings.Join(v.Sources, " "),
		"{output}", v.Output,
		"{main}", v.Main,
		"{workdir}", v.WorkDir,
	)

	args := make([]string, 0, len(words)+len(v.Sources))
	for _, w := range words {
		if w == "{sources}" {
			args = append(args, v.Sources...)
			continue
		}
		args = append(args, replacer.Replace(w))
	}
	return args, nil
}

// commands expands the compile and run templates of p.
func (p Profile) commands(v Vars) ([][]string, []string, error) {
	var compile [][]string
	for _, tmpl := range p.Compile {
		args, err := Expand(tmpl, v)
		if err != nil {
			return nil, nil, err
		}
		compile = append(compile, args)
	}
	run, err := Expand(p.Run, v)
	if err != nil {
		return nil, nil, err
	}
	return compile, run, nil
}

// fragmentFiles converts unit fragments to workspace files.
func fragmentFiles(unit *assemble.Unit) []fs.File {
	files := make([]fs.File, 0, len(unit.Fragments))
	for _, f := range unit.Fragments {
		files = append(files, fs.File{Path: f.Name, Data: []byte(f.Source)})
	}
	return files
}

// entryName returns the file name of the fragment that drives the program.
func entryName(unit *assemble.Unit) string {
	role := assemble.RoleMain
	if unit.Mode == assemble.ModeFixture {
		role = assemble.RoleFixture
	}
	if f, ok := unit.Fragment(role); ok {
		return f.Name
	}
	if n := len(unit.Fragments); n > 0 {
		return unit.Fragments[n-1].Name
	}
	return ""
}
