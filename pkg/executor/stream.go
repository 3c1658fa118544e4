package executor

import (
	"io"
	"time"

	"github.com/happyhackingspace/runbox/pkg/protocol"
)

// StreamEventType categorizes stream events.
type StreamEventType string

const (
	StreamStdout StreamEventType = "stdout"
	StreamStderr StreamEventType = "stderr"

	// StreamStart is sent once the sources are in the workspace.
	StreamStart StreamEventType = "start"

	// StreamCompile is sent after the compile steps, failed or not.
	StreamCompile StreamEventType = "compile"

	// StreamTest carries one decoded protocol line in fixture mode.
	StreamTest StreamEventType = "test"

	StreamComplete StreamEventType = "complete"

	// StreamError reports a run that could not be carried out. No
	// StreamComplete follows it.
	StreamError StreamEventType = "error"
)

// StreamEvent is one live event of a run.
type StreamEvent struct {
	Type StreamEventType

	// Data is the output chunk for StreamStdout and StreamStderr, and the
	// compiler output for StreamCompile.
	Data string

	Timestamp time.Time

	// Result is the final result for StreamComplete, and the partial result
	// holding Compile for StreamCompile.
	Result *ExecutionResult

	// Test is set for StreamTest.
	Test *protocol.Event

	// Error is set for StreamError.
	Error error
}

// StreamHandler receives live events. Providers call it from one goroutine
// at a time.
type StreamHandler func(event *StreamEvent) error

// WriterHandler copies output chunks to stdout and stderr as they arrive,
// and a failed compile's diagnostic to stderr. Other events are ignored.
func WriterHandler(stdout, stderr io.Writer) StreamHandler {
	return func(ev *StreamEvent) error {
		var err error
		switch ev.Type {
		case StreamStdout:
			_, err = io.WriteString(stdout, ev.Data)
		case StreamStderr:
			_, err = io.WriteString(stderr, ev.Data)
		case StreamCompile:
			if ev.Result != nil && ev.Result.Compile != nil && !ev.Result.Compile.OK {
				_, err = io.WriteString(stderr, ev.Data)
			}
		}
		return err
	}
}
