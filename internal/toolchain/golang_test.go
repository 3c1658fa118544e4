package toolchain

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/happyhackingspace/runbox/internal/process"
	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/protocol"
	"github.com/happyhackingspace/runbox/pkg/unitkit"
)

const calculatorFixture = `type Calculator struct{}

func (Calculator) TestAdd(t *unitkit.T) {
	t.IntsEqual(4, Add(2, 2))
}

func (c *Calculator) TestChained(t *unitkit.T) {
	t.IntsEqual(5, Add(2, 2))
	t.StringsEqual("a", "b")
	t.True(false)
}

func (c *Calculator) TestRaises(t *unitkit.T) {
	t.Raises(func() { unitkit.Raise("FooException", "Custom exception") })
}

func TestUncaught(t *unitkit.T) {
	unitkit.Raise("FooException", "Custom exception")
}
`

func filesByPath(b *Build) map[string]string {
	m := make(map[string]string, len(b.Files))
	for _, f := range b.Files {
		m[f.Path] = string(f.Data)
	}
	return m
}

func TestGoPrepareProgram(t *testing.T) {
	tc := NewGo()
	unit := assembleFor(t, tc, &executor.RunRequest{
		Language: "go",
		Code:     "import \"fmt\"\n\nfunc main() { fmt.Println(Add(1, 2)) }",
		Setup:    executor.SetupCode("func Add(a, b int) int { return a + b }"),
	})

	build, err := tc.Prepare(unit, "/workspace")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	files := filesByPath(build)

	if !strings.HasPrefix(files["go.mod"], "module submission\n") {
		t.Errorf("go.mod = %q", files["go.mod"])
	}
	if !strings.HasPrefix(files["setup.go"], "package main") || !strings.HasPrefix(files["main.go"], "package main") {
		t.Errorf("fragments lack package clause: %v", files)
	}
	if _, ok := files[EntryFile]; ok {
		t.Error("program mode generated a fixture entry")
	}
	for path := range files {
		if strings.HasPrefix(path, "unitkit/") {
			t.Errorf("program mode copied runtime file %s", path)
		}
	}
	if strings.Join(build.Compile[0], " ") != "go build -o prog ." {
		t.Errorf("compile = %q", build.Compile[0])
	}
}

func TestGoPrepareFixture(t *testing.T) {
	tc := NewGo()
	unit := assembleFor(t, tc, &executor.RunRequest{
		Language: "go",
		Code:     " ",
		Setup:    executor.SetupCode("func Add(a, b int) int { return a + b }"),
		Fixture:  calculatorFixture,
	})

	build, err := tc.Prepare(unit, "/workspace")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	files := filesByPath(build)

	for _, name := range unitkit.SourceNames() {
		if _, ok := files["unitkit/"+name]; !ok {
			t.Errorf("runtime file unitkit/%s missing", name)
		}
	}
	if _, ok := files["unitkit/embed.go"]; ok {
		t.Error("embed.go copied into the workspace")
	}
	if _, ok := files["main.go"]; ok {
		t.Error("blank code produced main.go")
	}
	if !strings.Contains(files["fixture.go"], `import "submission/unitkit"`) {
		t.Errorf("fixture import not injected:\n%s", files["fixture.go"])
	}

	entry := files[EntryFile]
	for _, want := range []string{`r.Suite("Calculator"`, `"TestChained"`, `r.Functions("Tests")`, "TestUncaught(t)"} {
		if !strings.Contains(entry, want) {
			t.Errorf("entry missing %q:\n%s", want, entry)
		}
	}
}

func TestGoPrepareFixtureSyntaxError(t *testing.T) {
	tc := NewGo()
	unit := assembleFor(t, tc, &executor.RunRequest{Language: "go", Fixture: "func (\n"})

	build, err := tc.Prepare(unit, "/workspace")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if _, ok := filesByPath(build)[EntryFile]; ok {
		t.Error("entry generated for an unparsable fixture")
	}
}

// buildAndRun executes a Build in dir with the host Go toolchain.
func buildAndRun(t *testing.T, build *Build, dir string) (*executor.ExecutionResult, *executor.ExecutionResult) {
	t.Helper()
	for _, f := range build.Files {
		full := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, f.Data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctl := process.New()

	var compiled *executor.ExecutionResult
	for _, step := range build.Compile {
		res, err := ctl.Run(ctx, executor.Command{Args: step, Dir: dir, Env: build.Env}, nil)
		if err != nil {
			t.Fatalf("compile %q error = %v", step, err)
		}
		compiled = res
		if !res.Succeeded() {
			return compiled, nil
		}
	}

	run := append([]string(nil), build.Run...)
	if strings.HasPrefix(run[0], "./") {
		run[0] = filepath.Join(dir, run[0])
	}
	res, err := ctl.Run(ctx, executor.Command{Args: run, Dir: dir, Env: build.Env}, nil)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}
	return compiled, res
}

func requireGo(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping compiler test in short mode")
	}
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not installed")
	}
}

func TestGoFixtureEndToEnd(t *testing.T) {
	requireGo(t)

	tc := NewGo()
	unit := assembleFor(t, tc, &executor.RunRequest{
		Language: "go",
		Code:     " ",
		Setup:    executor.SetupCode("func Add(a, b int) int { return a + b }"),
		Fixture:  calculatorFixture,
	})
	build, err := tc.Prepare(unit, "")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	compiled, res := buildAndRun(t, build, t.TempDir())
	if res == nil {
		t.Fatalf("compile failed:\n%s%s", compiled.Stdout, compiled.Stderr)
	}
	if code, ok := res.Code(); !ok || code != 0 {
		t.Fatalf("exit = %v %v, stderr:\n%s", res.ExitCode, res.ExitSignal, res.Stderr)
	}

	for _, want := range []string{
		"\n<DESCRIBE::>Calculator\n",
		"\n<IT::>TestAdd\n",
		"\n<PASSED::>Test Passed\n",
		"\n<DESCRIBE::>Tests\n",
		"Exception: FooException Custom exception",
	} {
		if !strings.Contains(res.Stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, res.Stdout)
		}
	}

	report := protocol.Parse(res.Stdout)
	passed, failed := report.Counts()
	if passed != 2 || failed != 2 {
		t.Errorf("Counts() = %d passed, %d failed, want 2, 2\n%s", passed, failed, res.Stdout)
	}
	for _, s := range report.Suites {
		for _, c := range s.Cases {
			if !c.Completed {
				t.Errorf("%s.%s never completed", s.Name, c.Name)
			}
			if c.Name == "TestChained" && len(c.Failures) != 3 {
				t.Errorf("TestChained failures = %q, want 3", c.Failures)
			}
		}
	}
}

func TestGoCompileFailure(t *testing.T) {
	requireGo(t)

	tc := NewGo()
	unit := assembleFor(t, tc, &executor.RunRequest{Language: "go", Code: "func main() { undefinedThing() }"})
	build, err := tc.Prepare(unit, "")
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	compiled, res := buildAndRun(t, build, t.TempDir())
	if res != nil {
		t.Fatal("program ran despite a compile error")
	}
	if !strings.Contains(compiled.Stderr, "undefined: undefinedThing") {
		t.Errorf("stderr = %q", compiled.Stderr)
	}
}
