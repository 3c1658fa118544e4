package assemble

import (
	"fmt"
	"go/parser"
	"go/token"
	"strings"
)

// CDialect lays out C-family units: a header file included by the setup and
// main translation units, each compiled separately and linked together.
type CDialect struct {
	// Ext is the source extension, e.g. ".c", ".cpp" or ".m".
	Ext string

	// HeaderExt defaults to ".h".
	HeaderExt string
}

func (d CDialect) FileName(role Role) string {
	switch role {
	case RoleHeader:
		ext := d.HeaderExt
		if ext == "" {
			ext = ".h"
		}
		return "setup" + ext
	case RoleSetup:
		return "setup" + d.Ext
	case RoleFixture:
		return "fixture" + d.Ext
	default:
		return "main" + d.Ext
	}
}

func (d CDialect) Include(headerFile string) string {
	return fmt.Sprintf("#include \"%s\"", headerFile)
}

func (d CDialect) Inline() bool { return false }

func (d CDialect) Normalize(_ Role, src string) string { return src }

// GoDialect lays out Go units: every fragment is a file of package main in
// one module, so declarations are shared without includes.
type GoDialect struct{}

func (GoDialect) FileName(role Role) string {
	switch role {
	case RoleHeader:
		return "setup_header.go"
	case RoleSetup:
		return "setup.go"
	case RoleFixture:
		return "fixture.go"
	default:
		return "main.go"
	}
}

func (GoDialect) Include(string) string { return "" }

func (GoDialect) Inline() bool { return false }

// Normalize adds "package main" to sources that lack a package clause. The
// clause shares the first line so reported line numbers match the source.
func (GoDialect) Normalize(_ Role, src string) string {
	if HasPackageClause(src) {
		return src
	}
	return "package main; " + src
}

// HasPackageClause reports whether src starts with a Go package clause.
func HasPackageClause(src string) bool {
	_, err := parser.ParseFile(token.NewFileSet(), "", src, parser.PackageClauseOnly)
	return err == nil
}

// ScriptDialect lays out interpreted units as one file with header and setup
// prepended to the main code.
type ScriptDialect struct {
	// Ext is the script extension, e.g. ".py".
	Ext string
}

func (d ScriptDialect) FileName(role Role) string {
	if role == RoleFixture {
		return "fixture" + d.Ext
	}
	return "main" + d.Ext
}

func (ScriptDialect) Include(string) string { return "" }

func (ScriptDialect) Inline() bool { return true }

func (ScriptDialect) Normalize(_ Role, src string) string {
	return strings.TrimLeft(src, "\n")
}
