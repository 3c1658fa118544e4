// Package event publishes run lifecycle events to subscribers.
package event

import (
	"time"
)

// EventType categorizes run events.
type EventType string

const (
	// Workspace lifecycle
	EventWorkspaceCreated   EventType = "workspace.created"
	EventWorkspaceDestroyed EventType = "workspace.destroyed"

	// Run lifecycle
	EventRunStarted  EventType = "run.started"
	EventRunComplete EventType = "run.complete"
	EventRunCanceled EventType = "run.canceled"
	EventRunError    EventType = "run.error"

	// Compile step
	EventCompileStarted  EventType = "compile.started"
	EventCompileComplete EventType = "compile.complete"
	EventCompileFailed   EventType = "compile.failed"

	// Fixture protocol, one per decoded line
	EventSuiteStarted EventType = "test.suite"
	EventTestStarted  EventType = "test.started"
	EventTestPassed   EventType = "test.passed"
	EventTestFailed   EventType = "test.failed"

	// Output
	EventOutputStdout EventType = "output.stdout"
	EventOutputStderr EventType = "output.stderr"
)

// Event is one occurrence during a run.
type Event struct {
	// Type categorizes the event.
	Type EventType

	// RunID is the run that generated the event.
	RunID string

	// Timestamp when the event occurred.
	Timestamp time.Time

	// Data contains the type-specific payload.
	Data any

	// Error is set for error events.
	Error error

	// Metadata contains additional context.
	Metadata map[string]any
}

// NewEvent creates a new event.
func NewEvent(eventType EventType, runID string, data any) *Event {
	return &Event{
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(eventType EventType, runID string, err error) *Event {
	return &Event{
		Type:      eventType,
		RunID:     runID,
		Timestamp: time.Now(),
		Error:     err,
	}
}

// WithMetadata adds metadata to the event and returns it for chaining.
func (e *Event) WithMetadata(key string, value any) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// EventHandler processes events.
type EventHandler func(event *Event)

// Emitter publishes events to subscribers.
type Emitter interface {
	Emit(event *Event)
	Subscribe(eventType EventType, handler EventHandler) func()
	SubscribeAll(handler EventHandler) func()
}

// RunStartedData is the payload of run.started.
type RunStartedData struct {
	Language string
	Mode     string
	Provider string
	Files    []string
}

// RunCompleteData is the payload of run.complete and run.canceled.
type RunCompleteData struct {
	Outcome    string
	ExitCode   *int
	ExitSignal *string
	Duration   time.Duration
}

// CompileData is the payload of compile events.
type CompileData struct {
	Command  []string
	Output   string
	Duration time.Duration
}

// TestData is the payload of test events.
type TestData struct {
	Suite      string
	Name       string
	Failures   []string
	DurationMs float64
}

// OutputData is the payload of output events.
type OutputData struct {
	Content string
}
