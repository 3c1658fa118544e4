// Package executor defines the data exchanged by a run: the request, the
// result, workspace commands and live output events.
package executor

import (
	"encoding/json"
	"time"

	"github.com/happyhackingspace/runbox/pkg/protocol"
)

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeExited means the program terminated normally, whatever its code.
	OutcomeExited Outcome = "exited"

	// OutcomeSignaled means the program was terminated by a signal.
	OutcomeSignaled Outcome = "signaled"

	// OutcomeCompileFailed means the toolchain rejected the sources and
	// nothing was run.
	OutcomeCompileFailed Outcome = "compile_failed"

	// OutcomeUnknown is reported for a result that was never finalized.
	OutcomeUnknown Outcome = "unknown"
)

// ExecutionResult contains the outcome of one run. After a real execution
// exactly one of ExitCode and ExitSignal is set. A compile failure sets
// neither and carries the diagnostic in Stderr.
type ExecutionResult struct {
	// Stdout contains standard output, including protocol lines in fixture mode.
	Stdout string `json:"stdout" yaml:"stdout"`

	// Stderr contains standard error, or the compiler diagnostic.
	Stderr string `json:"stderr" yaml:"stderr"`

	// ExitCode is the exit status of a normally terminated program.
	ExitCode *int `json:"exitCode" yaml:"exitCode"`

	// ExitSignal is the name of the signal that terminated the program.
	ExitSignal *string `json:"exitSignal" yaml:"exitSignal"`

	// Duration is the wall time of the execution phase.
	Duration time.Duration `json:"-" yaml:"-"`

	// Language is the resolved language.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// RunID identifies the run in logs and events.
	RunID string `json:"runId,omitempty" yaml:"runId,omitempty"`

	// Truncated is set when output exceeded the capture limit.
	Truncated bool `json:"truncated,omitempty" yaml:"truncated,omitempty"`

	// Canceled is set when the run was terminated through cancellation.
	Canceled bool `json:"canceled,omitempty" yaml:"canceled,omitempty"`

	// Compile describes the compile step, when there was one.
	Compile *CompileResult `json:"compile,omitempty" yaml:"compile,omitempty"`

	// Tests is the parsed protocol report in fixture mode.
	Tests *protocol.Report `json:"tests,omitempty" yaml:"tests,omitempty"`

	// Metadata contains provider-specific additional data.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// SetExitCode records a normal termination.
func (r *ExecutionResult) SetExitCode(code int) {
	r.ExitCode = &code
	r.ExitSignal = nil
}

// SetSignal records a termination by signal.
func (r *ExecutionResult) SetSignal(name string) {
	r.ExitSignal = &name
	r.ExitCode = nil
}

// Code returns the exit code and whether one is present.
func (r *ExecutionResult) Code() (int, bool) {
	if r.ExitCode == nil {
		return 0, false
	}
	return *r.ExitCode, true
}

// Signal returns the terminating signal and whether one is present.
func (r *ExecutionResult) Signal() (string, bool) {
	if r.ExitSignal == nil {
		return "", false
	}
	return *r.ExitSignal, true
}

// Outcome classifies the result.
func (r *ExecutionResult) Outcome() Outcome {
	switch {
	case r.Compile != nil && !r.Compile.OK:
		return OutcomeCompileFailed
	case r.ExitSignal != nil:
		return OutcomeSignaled
	case r.ExitCode != nil:
		return OutcomeExited
	default:
		return OutcomeUnknown
	}
}

// Succeeded reports whether the program exited with status 0 and, in
// fixture mode, no test failed.
func (r *ExecutionResult) Succeeded() bool {
	code, ok := r.Code()
	if !ok || code != 0 || r.Outcome() != OutcomeExited {
		return false
	}
	return r.Tests == nil || r.Tests.Passed()
}

type resultView struct {
	*resultAlias
	DurationMs float64 `json:"durationMs"`
}

type resultAlias ExecutionResult

func (r *ExecutionResult) view() resultView {
	return resultView{resultAlias: (*resultAlias)(r), DurationMs: millis(r.Duration)}
}

// MarshalJSON adds durationMs to the encoded result.
func (r *ExecutionResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.view())
}

// MarshalYAML adds durationMs to the encoded result.
func (r *ExecutionResult) MarshalYAML() (any, error) {
	return struct {
		Stdout     string           `yaml:"stdout"`
		Stderr     string           `yaml:"stderr"`
		ExitCode   *int             `yaml:"exitCode"`
		ExitSignal *string          `yaml:"exitSignal"`
		DurationMs float64          `yaml:"durationMs"`
		Language   string           `yaml:"language,omitempty"`
		RunID      string           `yaml:"runId,omitempty"`
		Truncated  bool             `yaml:"truncated,omitempty"`
		Canceled   bool             `yaml:"canceled,omitempty"`
		Compile    *CompileResult   `yaml:"compile,omitempty"`
		Tests      *protocol.Report `yaml:"tests,omitempty"`
		Metadata   map[string]any   `yaml:"metadata,omitempty"`
	}{
		r.Stdout, r.Stderr, r.ExitCode, r.ExitSignal, millis(r.Duration),
		r.Language, r.RunID, r.Truncated, r.Canceled, r.Compile, r.Tests, r.Metadata,
	}, nil
}

// CompileResult describes the compile step of a run.
type CompileResult struct {
	// OK is set when every compile command exited with status 0.
	OK bool `json:"ok" yaml:"ok"`

	// ExitCode is the exit status of the failing (or last) compile command.
	ExitCode *int `json:"exitCode" yaml:"exitCode"`

	// ExitSignal is set when the toolchain itself was killed by a signal.
	ExitSignal *string `json:"exitSignal" yaml:"exitSignal"`

	// Output is the toolchain's combined output, verbatim.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Command is the argv of the failing (or last) compile command.
	Command []string `json:"command,omitempty" yaml:"command,omitempty"`

	// Duration is the total compile wall time.
	Duration time.Duration `json:"-" yaml:"-"`
}

type compileAlias CompileResult

// MarshalJSON adds durationMs to the encoded compile step.
func (c *CompileResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		*compileAlias
		DurationMs float64 `json:"durationMs"`
	}{(*compileAlias)(c), millis(c.Duration)})
}

// MarshalYAML adds durationMs to the encoded compile step.
func (c *CompileResult) MarshalYAML() (any, error) {
	return struct {
		OK         bool     `yaml:"ok"`
		ExitCode   *int     `yaml:"exitCode"`
		ExitSignal *string  `yaml:"exitSignal"`
		DurationMs float64  `yaml:"durationMs"`
		Output     string   `yaml:"output,omitempty"`
		Command    []string `yaml:"command,omitempty"`
	}{c.OK, c.ExitCode, c.ExitSignal, millis(c.Duration), c.Output, c.Command}, nil
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
