package toolchain

import (
	"fmt"

	"github.com/happyhackingspace/runbox/pkg/assemble"
)

// Adapter is a template-driven toolchain for languages that need nothing
// beyond writing the fragments and running commands over them.
type Adapter struct {
	name       string
	dialect    assemble.Dialect
	sourceExts []string
	profile    Profile
}

// NewAdapter creates a template-driven toolchain. Fragments whose extension
// is in sourceExts are passed as {sources}.
func NewAdapter(name string, dialect assemble.Dialect, sourceExts []string, profile Profile) *Adapter {
	return &Adapter{
		name:       name,
		dialect:    dialect,
		sourceExts: sourceExts,
		profile:    profile,
	}
}

func (a *Adapter) Name() string              { return a.name }
func (a *Adapter) Dialect() assemble.Dialect { return a.dialect }
func (a *Adapter) SupportsFixtures() bool    { return false }
func (a *Adapter) Profile() Profile          { return a.profile }

func (a *Adapter) WithProfile(p Profile) Toolchain {
	c := *a
	c.profile = a.profile.merge(p)
	return &c
}

func (a *Adapter) Prepare(unit *assemble.Unit, workDir string) (*Build, error) {
	if unit.Mode == assemble.ModeFixture {
		return nil, fmt.Errorf("%s: %w", a.name, ErrFixtureNotSupported)
	}

	var sources []string
	for _, ext := range a.sourceExts {
		sources = append(sources, unit.NamesWithExt(ext)...)
	}

	compile, run, err := a.profile.commands(Vars{
		Sources: sources,
		Output:  a.profile.Output,
		Main:    entryName(unit),
		WorkDir: workDir,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.name, err)
	}

	return &Build{
		Files:   fragmentFiles(unit),
		Compile: compile,
		Run:     run,
		Env:     append([]string(nil), a.profile.Env...),
	}, nil
}

var _ Toolchain = (*Adapter)(nil)

// C returns the C toolchain (gcc).
func C() *Adapter {
	return NewAdapter("c", assemble.CDialect{Ext: ".c"}, []string{".c"}, Profile{
		Compile: []string{"gcc -std=gnu17 -O2 -Wall -o {output} {sources} -lm"},
		Run:     "./{output}",
		Output:  "prog",
	})
}

// CPP returns the C++ toolchain (g++).
func CPP() *Adapter {
	return NewAdapter("cpp", assemble.CDialect{Ext: ".cpp"}, []string{".cpp"}, Profile{
		Compile: []string{"g++ -std=c++17 -O2 -Wall -o {output} {sources}"},
		Run:     "./{output}",
		Output:  "prog",
	})
}

// ObjC returns the Objective-C toolchain: clang against GNUstep Base.
func ObjC() *Adapter {
	return NewAdapter("objc", assemble.CDialect{Ext: ".m"}, []string{".m"}, Profile{
		Compile: []string{
			"clang -x objective-c -fobjc-exceptions -fexceptions -fconstant-string-class=NSConstantString " +
				"-I/usr/GNUstep/System/Library/Headers -I/usr/GNUstep/Local/Library/Headers -I/usr/include/GNUstep " +
				"-L/usr/GNUstep/System/Library/Libraries -L/usr/GNUstep/Local/Library/Libraries " +
				"-o {output} {sources} -lgnustep-base -lobjc",
		},
		Run:    "./{output}",
		Output: "prog",
	})
}

// Python returns the Python 3 interpreter toolchain.
func Python() *Adapter {
	return NewAdapter("python", assemble.ScriptDialect{Ext: ".py"}, []string{".py"}, Profile{
		Run: "python3 -u {main}",
		Env: []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONIOENCODING=utf-8"},
	})
}
