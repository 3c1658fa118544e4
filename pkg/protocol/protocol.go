// Package protocol parses the tagged-line test report that fixture programs
// write to stdout.
package protocol

import (
	"strconv"
	"strings"

	"github.com/happyhackingspace/runbox/pkg/unitkit"
)

// Kind identifies a protocol line.
type Kind string

const (
	KindDescribe    Kind = "describe"
	KindIt          Kind = "it"
	KindPassed      Kind = "passed"
	KindFailed      Kind = "failed"
	KindCompletedIn Kind = "completedin"
	KindLog         Kind = "log"
	// KindOutput is an untagged line written by the test body.
	KindOutput Kind = "output"
)

var tags = []struct {
	tag  string
	kind Kind
}{
	{unitkit.TagDescribe, KindDescribe},
	{unitkit.TagIt, KindIt},
	{unitkit.TagPassed, KindPassed},
	{unitkit.TagFailed, KindFailed},
	{unitkit.TagCompletedIn, KindCompletedIn},
	{unitkit.TagLog, KindLog},
}

// Event is one decoded line.
type Event struct {
	Kind    Kind   `json:"kind"`
	Payload string `json:"payload,omitempty"`
}

// ParseLine decodes a single line. Lines without a known tag come back as
// KindOutput. Payloads are unescaped.
func ParseLine(line string) Event {
	line = strings.TrimRight(line, "\r")
	for _, t := range tags {
		if strings.HasPrefix(line, t.tag) {
			return Event{Kind: t.kind, Payload: unitkit.Unescape(line[len(t.tag):])}
		}
	}
	return Event{Kind: KindOutput, Payload: line}
}

// Report is the parsed result of a fixture run.
type Report struct {
	Suites []*Suite `json:"suites"`
}

// Suite groups the cases reported under one Describe line.
type Suite struct {
	Name  string  `json:"name"`
	Cases []*Case `json:"cases"`
}

// Case is one reported test.
type Case struct {
	Name       string   `json:"name"`
	Passed     bool     `json:"passed"`
	Failures   []string `json:"failures,omitempty"`
	Logs       []string `json:"logs,omitempty"`
	Output     []string `json:"output,omitempty"`
	DurationMs float64  `json:"durationMs"`
	// Completed is set once the CompletedIn line was seen.
	Completed bool `json:"completed"`
}

// Passed reports whether no case failed and every case completed.
func (r *Report) Passed() bool {
	passed, failed := r.Counts()
	return failed == 0 && passed == r.Total()
}

// Counts returns the number of passed and failed cases.
func (r *Report) Counts() (passed, failed int) {
	for _, s := range r.Suites {
		for _, c := range s.Cases {
			switch {
			case len(c.Failures) > 0:
				failed++
			case c.Passed && c.Completed:
				passed++
			}
		}
	}
	return passed, failed
}

// Total returns the number of reported cases.
func (r *Report) Total() int {
	n := 0
	for _, s := range r.Suites {
		n += len(s.Cases)
	}
	return n
}

// Builder assembles a Report from events in arrival order.
type Builder struct {
	report  Report
	suite   *Suite
	current *Case
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add folds one event into the report and returns the case it touched, if
// any.
func (b *Builder) Add(ev Event) *Case {
	switch ev.Kind {
	case KindDescribe:
		b.suite = &Suite{Name: ev.Payload}
		b.report.Suites = append(b.report.Suites, b.suite)
		b.current = nil
		return nil
	case KindIt:
		if b.suite == nil {
			b.suite = &Suite{}
			b.report.Suites = append(b.report.Suites, b.suite)
		}
		b.current = &Case{Name: ev.Payload}
		b.suite.Cases = append(b.suite.Cases, b.current)
		return b.current
	}

	c := b.current
	if c == nil {
		return nil
	}
	switch ev.Kind {
	case KindPassed:
		c.Passed = true
	case KindFailed:
		c.Passed = false
		c.Failures = append(c.Failures, strings.Split(ev.Payload, "\n")...)
	case KindCompletedIn:
		c.Completed = true
		if ms, err := strconv.ParseFloat(strings.TrimSpace(ev.Payload), 64); err == nil {
			c.DurationMs = ms
		}
	case KindLog:
		c.Logs = append(c.Logs, ev.Payload)
	case KindOutput:
		if ev.Payload != "" {
			c.Output = append(c.Output, ev.Payload)
		}
	}
	return c
}

// Report returns the report built so far.
func (b *Builder) Report() *Report {
	return &b.report
}

// Parse decodes a complete stdout capture.
func Parse(stdout string) *Report {
	b := NewBuilder()
	for _, line := range strings.Split(stdout, "\n") {
		b.Add(ParseLine(line))
	}
	return b.Report()
}

// HasFailures reports whether stdout contains a Failed line, which is how
// consumers judge a run without parsing it.
func HasFailures(stdout string) bool {
	return strings.Contains(stdout, unitkit.TagFailed)
}
