// Package assemble turns a run request into the ordered source files of a
// compiled unit. It performs no I/O.
package assemble

import (
	"errors"
	"path"
	"strings"

	"github.com/happyhackingspace/runbox/pkg/executor"
)

// ErrEmptyProgram is returned when a request has neither code nor a fixture.
var ErrEmptyProgram = errors.New("neither code nor fixture supplied")

// Role is the part a fragment plays in the unit.
type Role string

const (
	RoleHeader  Role = "header"
	RoleSetup   Role = "setup"
	RoleMain    Role = "main"
	RoleFixture Role = "fixture"
)

// Mode says what drives the program's entry point.
type Mode string

const (
	// ModeProgram runs the submitted code's own entry point.
	ModeProgram Mode = "program"

	// ModeFixture runs the test runtime against the fixture.
	ModeFixture Mode = "fixture"
)

// Fragment is one named source file.
type Fragment struct {
	Name   string
	Role   Role
	Source string
}

// Unit is the assembled, not yet compiled, program.
type Unit struct {
	Language  string
	Mode      Mode
	Fragments []Fragment
}

// Fragment returns the first fragment with the given role.
func (u *Unit) Fragment(role Role) (Fragment, bool) {
	for _, f := range u.Fragments {
		if f.Role == role {
			return f, true
		}
	}
	return Fragment{}, false
}

// Names returns the fragment file names in order.
func (u *Unit) Names() []string {
	names := make([]string, len(u.Fragments))
	for i, f := range u.Fragments {
		names[i] = f.Name
	}
	return names
}

// NamesWithExt returns the fragment file names ending in ext, in order.
func (u *Unit) NamesWithExt(ext string) []string {
	var names []string
	for _, f := range u.Fragments {
		if path.Ext(f.Name) == ext {
			names = append(names, f.Name)
		}
	}
	return names
}

// Dialect describes how a language lays out a unit.
type Dialect interface {
	// FileName returns the file name for a role.
	FileName(role Role) string

	// Include returns the directive that makes the header file visible to
	// another fragment, or "" when the language needs none.
	Include(headerFile string) string

	// Inline reports whether header and setup are prepended to the main
	// fragment instead of being separate files.
	Inline() bool

	// Normalize adjusts a fragment's source before it is placed.
	Normalize(role Role, src string) string
}

// Assemble builds the unit for req. Fragments appear in declaration order:
// header, setup, main, fixture. Setup disabled with false drops the header
// too. Blank code is omitted when a fixture is present.
func Assemble(req *executor.RunRequest, d Dialect) (*Unit, error) {
	if req == nil || (!req.HasCode() && !req.HasFixture()) {
		return nil, ErrEmptyProgram
	}

	unit := &Unit{Language: req.Language, Mode: ModeProgram}
	entry := RoleMain
	if req.HasFixture() {
		unit.Mode = ModeFixture
		entry = RoleFixture
	}

	type part struct {
		role Role
		src  string
	}
	var parts []part
	if req.HasHeader() {
		parts = append(parts, part{RoleHeader, req.SetupHeader})
	}
	if req.Setup.Enabled() {
		parts = append(parts, part{RoleSetup, req.Setup.Code})
	}
	if req.HasCode() {
		parts = append(parts, part{RoleMain, req.Code})
	}
	if req.HasFixture() {
		parts = append(parts, part{RoleFixture, req.Fixture})
	}

	if d.Inline() {
		srcs := make([]string, len(parts))
		for i, p := range parts {
			srcs[i] = strings.TrimRight(p.src, "\n")
		}
		src := d.Normalize(entry, strings.Join(srcs, "\n\n")+"\n")
		unit.Fragments = []Fragment{{Name: d.FileName(entry), Role: entry, Source: src}}
		return unit, nil
	}

	include := ""
	if req.HasHeader() {
		include = d.Include(d.FileName(RoleHeader))
	}
	for _, p := range parts {
		src := d.Normalize(p.role, p.src)
		if p.role != RoleHeader && include != "" {
			src = include + "\n" + src
		}
		unit.Fragments = append(unit.Fragments, Fragment{Name: d.FileName(p.role), Role: p.role, Source: src})
	}
	return unit, nil
}
