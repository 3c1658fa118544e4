package executor

import (
	"errors"
	"strings"
	"testing"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestWriterHandler(t *testing.T) {
	var stdout, stderr strings.Builder
	h := WriterHandler(&stdout, &stderr)

	failed := &ExecutionResult{Compile: &CompileResult{OK: false}}
	ok := &ExecutionResult{Compile: &CompileResult{OK: true}}

	events := []*StreamEvent{
		{Type: StreamStart},
		{Type: StreamCompile, Data: "warning: unused\n", Result: ok},
		{Type: StreamStdout, Data: "a"},
		{Type: StreamStderr, Data: "b"},
		{Type: StreamStdout, Data: "c\n"},
		{Type: StreamTest, Data: "ignored"},
		{Type: StreamCompile, Data: "error: nope\n", Result: failed},
		{Type: StreamComplete, Result: ok},
	}
	for _, ev := range events {
		if err := h(ev); err != nil {
			t.Fatalf("handler(%s) error = %v", ev.Type, err)
		}
	}

	if stdout.String() != "ac\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "ac\n")
	}
	if stderr.String() != "berror: nope\n" {
		t.Errorf("stderr = %q, want %q", stderr.String(), "berror: nope\n")
	}
}

func TestWriterHandlerError(t *testing.T) {
	h := WriterHandler(failingWriter{}, failingWriter{})

	if err := h(&StreamEvent{Type: StreamStdout, Data: "x"}); err == nil {
		t.Error("handler error = nil, want write error")
	}
	if err := h(&StreamEvent{Type: StreamStart}); err != nil {
		t.Errorf("handler(start) error = %v, want nil", err)
	}
}
