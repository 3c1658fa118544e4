package unitkit

import (
	"bytes"
	"errors"
	"runtime"
	"strings"
	"testing"
)

// reportLines returns the non-empty lines of a report.
func reportLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func runRegistry(t *testing.T, r *Registry) []string {
	t.Helper()
	var buf bytes.Buffer
	if code := Run(r, &buf); code != 0 {
		t.Errorf("Run() = %d, want 0", code)
	}
	return reportLines(buf.String())
}

type passingSuite struct{}

func (passingSuite) TestAClassMethod(t *T) { t.Pass() }
func (s *passingSuite) TestIfPass(t *T) { t.True(true) }

func TestRunProtocolOrder(t *testing.T) {
	r := NewRegistry()
	r.Suite("TestSuite", func() any { return new(passingSuite) }).
		Add("testAClassMethod", func(s any, t *T) { s.(*passingSuite).TestAClassMethod(t) }).
		Add("testIfPass", func(s any, t *T) { s.(*passingSuite).TestIfPass(t) })

	lines := runRegistry(t, r)
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want 7: %q", len(lines), lines)
	}

	wantPrefixes := []string{
		TagDescribe + "TestSuite",
		TagIt + "testAClassMethod",
		TagPassed,
		TagCompletedIn,
		TagIt + "testIfPass",
		TagPassed,
		TagCompletedIn,
	}
	for i, want := range wantPrefixes {
		if !strings.HasPrefix(lines[i], want) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], want)
		}
	}
}

func TestRunCollectsEveryFailure(t *testing.T) {
	r := NewRegistry()
	r.Suite("TestSuite", nil).Add("testsFailures", func(_ any, t *T) {
		t.Fail("explicit")
		t.True(false)
		t.IntsEqual(1, 2)
		t.StringContains("foo", "bar")
	})

	lines := runRegistry(t, r)
	var failed string
	for _, line := range lines {
		if strings.HasPrefix(line, TagPassed) {
			t.Errorf("unexpected %q", line)
		}
		if strings.HasPrefix(line, TagFailed) {
			failed = line
		}
	}
	if failed == "" {
		t.Fatalf("no %s line in %q", TagFailed, lines)
	}

	details := strings.Split(strings.TrimPrefix(failed, TagFailed), LineFeed)
	if len(details) != 4 {
		t.Fatalf("got %d failure details, want 4: %q", len(details), details)
	}
	for i, want := range []string{"explicit", "expected true", "expected 1, got 2", `expected "foo" to contain "bar"`} {
		if !strings.Contains(details[i], want) {
			t.Errorf("detail %d = %q, want substring %q", i, details[i], want)
		}
	}
	if !strings.HasPrefix(lines[len(lines)-1], TagCompletedIn) {
		t.Errorf("last line = %q, want %s", lines[len(lines)-1], TagCompletedIn)
	}
}

func TestRunInterceptsPanics(t *testing.T) {
	r := NewRegistry()
	r.Suite("TestSuite", nil).
		Add("testsFooUnhandledException", func(_ any, t *T) {
			Raise("FooException", "Custom exception")
		}).
		Add("testsIndex", func(_ any, t *T) {
			var s []int
			_ = s[3]
		}).
		Add("testsError", func(_ any, t *T) {
			panic(errors.New("boom"))
		}).
		Add("testsAfter", func(_ any, t *T) { t.Pass() })

	out := strings.Join(runRegistry(t, r), "\n")

	for _, want := range []string{
		TagFailed + "Exception: FooException Custom exception",
		"index out of range",
		"errors.errorString: boom",
		TagIt + "testsAfter\n" + TagPassed,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRunGoexit(t *testing.T) {
	r := NewRegistry()
	r.Suite("TestSuite", nil).
		Add("testsGoexit", func(_ any, t *T) { runtime.Goexit() }).
		Add("testsAfter", func(_ any, t *T) {})

	out := strings.Join(runRegistry(t, r), "\n")
	if !strings.Contains(out, TagFailed+"test exited via runtime.Goexit") {
		t.Errorf("report missing Goexit failure:\n%s", out)
	}
	if !strings.Contains(out, TagIt+"testsAfter\n"+TagPassed) {
		t.Errorf("later test did not pass:\n%s", out)
	}
}

type hookSuite struct {
	calls *[]string
}

func (s *hookSuite) SetUp(t *T) { *s.calls = append(*s.calls, "setup") }
func (s *hookSuite) TearDown(t *T) { *s.calls = append(*s.calls, "teardown") }

func TestRunHooks(t *testing.T) {
	var calls []string
	r := NewRegistry()
	r.Suite("Hooks", func() any { return &hookSuite{calls: &calls} }).
		Add("testBody", func(s any, t *T) {
			calls = append(calls, "body")
			panic("stop")
		})

	runRegistry(t, r)
	want := "setup,body,teardown"
	if got := strings.Join(calls, ","); got != want {
		t.Errorf("calls = %q, want %q", got, want)
	}
}

func TestRunLog(t *testing.T) {
	r := NewRegistry()
	r.Suite("S", nil).Add("testLog", func(_ any, t *T) { t.Log("two\nlines") })

	lines := runRegistry(t, r)
	want := TagLog + "two" + LineFeed + "lines"
	found := false
	for _, line := range lines {
		if line == want {
			found = true
		}
	}
	if !found {
		t.Errorf("lines = %q, want %q", lines, want)
	}
}

func TestRegistrySuiteReuse(t *testing.T) {
	r := NewRegistry()
	a := r.Suite("A", nil)
	a.Add("one", func(any, *T) {})
	r.Suite("B", nil).Add("two", func(any, *T) {})
	if r.Suite("A", nil) != a {
		t.Error("Suite() should return the existing suite")
	}
	r.Suite("A", nil).Add("three", func(any, *T) {})

	if got := len(r.Suites()); got != 2 {
		t.Errorf("len(Suites()) = %d, want 2", got)
	}
	if got := r.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}

func TestRegistryFunctionsKeptApart(t *testing.T) {
	type tests struct{ n int }

	r := NewRegistry()
	r.Suite("Tests", func() any { return &tests{n: 1} }).
		Add("TestMethod", func(s any, t *T) {
			st, ok := s.(*tests)
			t.True(ok && st.n == 1)
		})
	r.Functions("Tests").Add("TestFree", func(s any, t *T) { t.Nil(s) })

	if got := len(r.Suites()); got != 2 {
		t.Fatalf("len(Suites()) = %d, want 2", got)
	}
	out := strings.Join(runRegistry(t, r), "\n")
	if strings.Contains(out, TagFailed) {
		t.Errorf("report has failures:\n%s", out)
	}
	if n := strings.Count(out, TagPassed); n != 2 {
		t.Errorf("passed %d tests, want 2:\n%s", n, out)
	}
}

func TestRunSkipsEmptySuites(t *testing.T) {
	r := NewRegistry()
	r.Suite("Empty", nil)
	if lines := runRegistry(t, r); len(lines) != 0 {
		t.Errorf("lines = %q, want none", lines)
	}
}
