package runbox

import (
	"time"

	"github.com/happyhackingspace/runbox/pkg/assemble"
	"github.com/happyhackingspace/runbox/pkg/event"
	"github.com/happyhackingspace/runbox/pkg/executor"
	"github.com/happyhackingspace/runbox/pkg/protocol"
)

// liveOutput fans the output of a running program out to the stream
// handler and the event bus. In fixture mode it also decodes protocol lines
// as they arrive. The provider serializes calls to handle. A failing
// handler is recorded and not called again; the run goes on.
type liveOutput struct {
	r       *runner
	runID   string
	handler executor.StreamHandler
	lines   *protocol.LineWriter
	report  *protocol.Builder
	suite   string
	err     error
}

func newLiveOutput(r *runner, runID string, mode assemble.Mode, handler executor.StreamHandler) *liveOutput {
	l := &liveOutput{r: r, runID: runID, handler: handler}
	if mode == assemble.ModeFixture {
		l.report = protocol.NewBuilder()
		l.lines = protocol.NewLineWriter(l.onLine)
	}
	return l
}

func (l *liveOutput) forward(ev *executor.StreamEvent) {
	if l.handler == nil || l.err != nil {
		return
	}
	l.err = l.handler(ev)
}

func (l *liveOutput) handle(ev *executor.StreamEvent) error {
	switch ev.Type {
	case executor.StreamStdout:
		l.r.emit(event.EventOutputStdout, l.runID, &event.OutputData{Content: ev.Data})
		l.forward(ev)
		if l.lines != nil {
			_, _ = l.lines.Write([]byte(ev.Data))
		}
	case executor.StreamStderr:
		l.r.emit(event.EventOutputStderr, l.runID, &event.OutputData{Content: ev.Data})
		l.forward(ev)
	default:
		l.forward(ev)
	}
	return nil
}

func (l *liveOutput) flush() {
	if l.lines != nil {
		l.lines.Flush()
	}
}

func (l *liveOutput) onLine(pe protocol.Event) {
	c := l.report.Add(pe)

	switch pe.Kind {
	case protocol.KindDescribe:
		l.suite = pe.Payload
		l.r.emit(event.EventSuiteStarted, l.runID, &event.TestData{Suite: pe.Payload})
	case protocol.KindIt:
		l.r.emit(event.EventTestStarted, l.runID, &event.TestData{Suite: l.suite, Name: pe.Payload})
	case protocol.KindCompletedIn:
		if c == nil {
			break
		}
		data := &event.TestData{
			Suite:      l.suite,
			Name:       c.Name,
			Failures:   c.Failures,
			DurationMs: c.DurationMs,
		}
		if len(c.Failures) > 0 {
			l.r.emit(event.EventTestFailed, l.runID, data)
		} else {
			l.r.emit(event.EventTestPassed, l.runID, data)
		}
	}

	l.forward(&executor.StreamEvent{Type: executor.StreamTest, Test: &pe, Timestamp: time.Now()})
}
