package toolchain

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/happyhackingspace/runbox/pkg/unitkit"
)

// FunctionSuite is the suite that collects top-level test functions.
const FunctionSuite = "Tests"

// DiscoveredSuite is a test suite found in a fixture.
type DiscoveredSuite struct {
	// Name is the receiver type name, or FunctionSuite.
	Name string

	// Functions is set for the suite of top-level functions. A receiver
	// type may share its name.
	Functions bool

	// Tests are the test names in source order.
	Tests []string
}

type suiteKey struct {
	name      string
	functions bool
}

// Discover finds the tests declared in a Go fixture source. A test is a
// function or method named Test* (or test*) taking exactly one *unitkit.T
// and returning nothing. Methods are grouped by receiver type, value and
// pointer receivers alike; suites appear in order of their first test.
// ok is false when the source does not parse.
func Discover(src string) (suites []*DiscoveredSuite, ok bool) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "fixture.go", src, parser.SkipObjectResolution)
	if err != nil {
		return nil, false
	}

	local, imported := unitkitName(file)
	if !imported {
		local = "unitkit"
	}

	index := make(map[suiteKey]*DiscoveredSuite)
	for _, decl := range file.Decls {
		fn, isFunc := decl.(*ast.FuncDecl)
		if !isFunc || !isTestName(fn.Name.Name) || !isTestSignature(fn.Type, local) {
			continue
		}

		key := suiteKey{name: FunctionSuite, functions: true}
		if fn.Recv != nil {
			name, simple := receiverName(fn.Recv)
			if !simple {
				continue
			}
			key = suiteKey{name: name}
		}

		s, seen := index[key]
		if !seen {
			s = &DiscoveredSuite{Name: key.name, Functions: key.functions}
			index[key] = s
			suites = append(suites, s)
		}
		s.Tests = append(s.Tests, fn.Name.Name)
	}
	return suites, true
}

// isTestName accepts Test and test followed by nothing or by a character
// that is not a lower-case letter.
func isTestName(name string) bool {
	var rest string
	switch {
	case strings.HasPrefix(name, "Test"):
		rest = name[len("Test"):]
	case strings.HasPrefix(name, "test"):
		rest = name[len("test"):]
	default:
		return false
	}
	if rest == "" {
		return true
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return !unicode.IsLower(r)
}

func isTestSignature(ft *ast.FuncType, local string) bool {
	if ft.TypeParams != nil || (ft.Results != nil && len(ft.Results.List) > 0) {
		return false
	}
	if ft.Params == nil || len(ft.Params.List) != 1 {
		return false
	}
	param := ft.Params.List[0]
	if len(param.Names) > 1 {
		return false
	}
	star, ok := param.Type.(*ast.StarExpr)
	if !ok {
		return false
	}

	switch x := star.X.(type) {
	case *ast.SelectorExpr:
		pkg, ok := x.X.(*ast.Ident)
		return ok && pkg.Name == local && x.Sel.Name == "T"
	case *ast.Ident:
		return local == "." && x.Name == "T"
	}
	return false
}

// receiverName returns the receiver's type name. Generic receivers are not
// suites.
func receiverName(recv *ast.FieldList) (string, bool) {
	if len(recv.List) != 1 {
		return "", false
	}
	typ := recv.List[0].Type
	if star, ok := typ.(*ast.StarExpr); ok {
		typ = star.X
	}
	if paren, ok := typ.(*ast.ParenExpr); ok {
		typ = paren.X
	}
	ident, ok := typ.(*ast.Ident)
	if !ok {
		return "", false
	}
	return ident.Name, true
}

// unitkitName returns the name under which file imports the runtime.
func unitkitName(file *ast.File) (string, bool) {
	for _, imp := range file.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil || p != unitkit.ImportPath {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name, true
		}
		return "unitkit", true
	}
	return "", false
}

// InjectImport adds the runtime import to src when src refers to unitkit
// without importing it. The import is added on the package clause line so
// line numbers in diagnostics and failure messages stay unchanged. Sources
// that do not parse are returned as they are.
func InjectImport(src string) string {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src, parser.SkipObjectResolution)
	if err != nil {
		return src
	}
	if _, imported := unitkitName(file); imported || !referencesUnitkit(file) {
		return src
	}

	offset := fset.Position(file.Name.End()).Offset
	return src[:offset] + "; import " + strconv.Quote(unitkit.ImportPath) + src[offset:]
}

func referencesUnitkit(file *ast.File) bool {
	found := false
	ast.Inspect(file, func(n ast.Node) bool {
		if found {
			return false
		}
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if id, ok := sel.X.(*ast.Ident); ok && id.Name == "unitkit" {
				found = true
			}
		}
		return !found
	})
	return found
}
