package unitkit

import (
	"io"
	"os"
	"strings"
	"time"
)

// Main runs every test in r, reporting to os.Stdout, and returns the exit
// status for the process. Failing tests do not change the status; consumers
// read the report.
func Main(r *Registry) int {
	return Run(r, os.Stdout)
}

// Run runs every test in r sequentially, in registration order, and writes
// the report to w.
func Run(r *Registry, w io.Writer) int {
	rep := newReporter(w)
	for _, s := range r.suites {
		if len(s.cases) == 0 {
			continue
		}
		rep.emit(TagDescribe, s.Name)
		for _, c := range s.cases {
			runCase(rep, s, c)
		}
	}
	return 0
}

func runCase(rep *reporter, s *Suite, c *Case) {
	rep.emit(TagIt, c.Name)

	t := &T{suite: s.Name, name: c.Name, rep: rep}
	start := time.Now()

	// A separate goroutine lets runtime.Goexit in the body end the test
	// without ending the run.
	done := make(chan struct{})
	go func() {
		defer close(done)
		invoke(s, c, t)
	}()
	<-done
	elapsed := time.Since(start)

	if t.Failed() {
		rep.emit(TagFailed, strings.Join(t.failures, "\n"))
	} else {
		rep.emit(TagPassed, PassedMessage)
	}
	rep.emit(TagCompletedIn, FormatMillis(elapsed))
}

// invoke runs SetUp, the body and TearDown, turning any panic into a
// recorded failure.
func invoke(s *Suite, c *Case, t *T) {
	finished := false
	defer func() {
		if v := recover(); v != nil {
			t.recordPanic(v)
		} else if !finished {
			t.failures = append(t.failures, "test exited via runtime.Goexit")
		}
	}()

	value := s.newValue()
	if td, ok := value.(TearDowner); ok {
		defer guard(t, func() { td.TearDown(t) })
	}
	if su, ok := value.(SetUpper); ok {
		su.SetUp(t)
	}
	c.fn(value, t)
	finished = true
}

// guard runs fn, recording a panic instead of propagating it.
func guard(t *T, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			t.recordPanic(v)
		}
	}()
	fn()
}
