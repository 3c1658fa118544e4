package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/happyhackingspace/runbox/pkg/unitkit"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		kind    Kind
		payload string
	}{
		{"<DESCRIBE::>TestSuite", KindDescribe, "TestSuite"},
		{"<IT::>testIfPass", KindIt, "testIfPass"},
		{"<PASSED::>Test Passed", KindPassed, "Test Passed"},
		{"<FAILED::>a<:LF:>b", KindFailed, "a\nb"},
		{"<COMPLETEDIN::>1.25\r", KindCompletedIn, "1.25"},
		{"<LOG::>hello", KindLog, "hello"},
		{"plain output", KindOutput, "plain output"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			ev := ParseLine(tt.line)
			if ev.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", ev.Kind, tt.kind)
			}
			if ev.Payload != tt.payload {
				t.Errorf("Payload = %q, want %q", ev.Payload, tt.payload)
			}
		})
	}
}

func fixtureOutput() string {
	r := unitkit.NewRegistry()
	r.Suite("TestSuite", nil).
		Add("testIfPass", func(_ any, t *unitkit.T) { t.Pass() }).
		Add("testsFailures", func(_ any, t *unitkit.T) {
			t.IntsEqual(1, 2)
			t.StringsEqual("a", "b")
		})
	r.Suite("Other", nil).
		Add("testsFooUnhandledException", func(_ any, t *unitkit.T) {
			t.Log("before")
			unitkit.Raise("FooException", "Custom exception")
		})

	var buf bytes.Buffer
	unitkit.Run(r, &buf)
	return buf.String()
}

func TestParse(t *testing.T) {
	report := Parse(fixtureOutput())

	if len(report.Suites) != 2 {
		t.Fatalf("len(Suites) = %d, want 2", len(report.Suites))
	}
	if report.Suites[0].Name != "TestSuite" || report.Suites[1].Name != "Other" {
		t.Errorf("suite names = %q, %q", report.Suites[0].Name, report.Suites[1].Name)
	}

	pass := report.Suites[0].Cases[0]
	if !pass.Passed || !pass.Completed || len(pass.Failures) != 0 {
		t.Errorf("testIfPass = %+v, want passed and completed", pass)
	}

	fail := report.Suites[0].Cases[1]
	if fail.Passed {
		t.Error("testsFailures should not pass")
	}
	if len(fail.Failures) != 2 {
		t.Errorf("len(Failures) = %d, want 2: %q", len(fail.Failures), fail.Failures)
	}

	exc := report.Suites[1].Cases[0]
	if len(exc.Failures) != 1 || !strings.Contains(exc.Failures[0], "FooException Custom exception") {
		t.Errorf("Failures = %q", exc.Failures)
	}
	if len(exc.Logs) != 1 || exc.Logs[0] != "before" {
		t.Errorf("Logs = %q, want [before]", exc.Logs)
	}

	passed, failed := report.Counts()
	if passed != 1 || failed != 2 {
		t.Errorf("Counts() = %d, %d, want 1, 2", passed, failed)
	}
	if report.Passed() {
		t.Error("Passed() = true, want false")
	}
	if report.Total() != 3 {
		t.Errorf("Total() = %d, want 3", report.Total())
	}
}

func TestParseIncomplete(t *testing.T) {
	report := Parse("<DESCRIBE::>S\n<IT::>testCrash\npartial output")
	c := report.Suites[0].Cases[0]
	if c.Completed {
		t.Error("Completed = true, want false")
	}
	if len(c.Output) != 1 || c.Output[0] != "partial output" {
		t.Errorf("Output = %q", c.Output)
	}
	if report.Passed() {
		t.Error("an incomplete case should not count as passed")
	}
}

func TestHasFailures(t *testing.T) {
	if !HasFailures(fixtureOutput()) {
		t.Error("HasFailures() = false, want true")
	}
	if HasFailures("<DESCRIBE::>S\n<IT::>x\n<PASSED::>Test Passed\n") {
		t.Error("HasFailures() = true, want false")
	}
}

func TestLineWriter(t *testing.T) {
	var events []Event
	w := NewLineWriter(func(ev Event) { events = append(events, ev) })

	chunks := []string{"\n<DESCR", "IBE::>S\n<IT::>a\n\n<PAS", "SED::>Test Passed\ntrailing"}
	for _, c := range chunks {
		if _, err := w.Write([]byte(c)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if len(events) != 3 {
		t.Fatalf("got %d events before Flush, want 3: %+v", len(events), events)
	}
	w.Flush()

	want := []Kind{KindDescribe, KindIt, KindPassed, KindOutput}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, k := range want {
		if events[i].Kind != k {
			t.Errorf("events[%d].Kind = %q, want %q", i, events[i].Kind, k)
		}
	}
}
