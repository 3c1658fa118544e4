package executor

import (
	"errors"
	"strings"
	"testing"
)

func TestCaptureLimit(t *testing.T) {
	c := NewCapture(5, nil)
	c.Stdout().Write([]byte("hello world"))
	c.Stderr().Write([]byte("abc"))
	c.Stderr().Write([]byte("de"))

	var r ExecutionResult
	c.Fill(&r)
	if r.Stdout != "hello" {
		t.Errorf("Stdout = %q, want %q", r.Stdout, "hello")
	}
	if r.Stderr != "abcde" {
		t.Errorf("Stderr = %q, want %q", r.Stderr, "abcde")
	}
	if !r.Truncated {
		t.Error("Truncated = false, want true")
	}
}

func TestCaptureUnlimited(t *testing.T) {
	c := NewCapture(0, nil)
	big := strings.Repeat("x", 1<<16)
	n, err := c.Stdout().Write([]byte(big))
	if err != nil || n != len(big) {
		t.Fatalf("Write() = %d, %v", n, err)
	}

	var r ExecutionResult
	c.Fill(&r)
	if len(r.Stdout) != len(big) || r.Truncated {
		t.Errorf("len(Stdout) = %d, Truncated = %v", len(r.Stdout), r.Truncated)
	}
}

func TestCaptureHandler(t *testing.T) {
	var events []*StreamEvent
	c := NewCapture(0, func(e *StreamEvent) error {
		events = append(events, e)
		return nil
	})
	c.Stdout().Write([]byte("1"))
	c.Stderr().Write([]byte("2"))
	c.Close()

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != StreamStdout || events[1].Type != StreamStderr {
		t.Errorf("types = %q, %q", events[0].Type, events[1].Type)
	}
}

func TestCaptureHandlerErrorKeepsDraining(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	c := NewCapture(0, func(*StreamEvent) error {
		calls++
		return boom
	})
	defer c.Close()

	for i := 0; i < 3; i++ {
		if _, err := c.Stdout().Write([]byte("x")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	var r ExecutionResult
	c.Fill(&r)
	if r.Stdout != "xxx" {
		t.Errorf("Stdout = %q, want %q", r.Stdout, "xxx")
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
	if !errors.Is(c.HandlerErr(), boom) {
		t.Errorf("HandlerErr() = %v, want %v", c.HandlerErr(), boom)
	}
}

func TestCaptureHandlerDeliversOnWrite(t *testing.T) {
	var got []string
	c := NewCapture(3, func(e *StreamEvent) error {
		got = append(got, string(e.Type)+":"+e.Data)
		return nil
	})

	c.Stdout().Write([]byte("abcdef"))
	if len(got) != 1 || got[0] != "stdout:abcdef" {
		t.Fatalf("events after first write = %q", got)
	}
	c.Stderr().Write(nil)
	c.Stderr().Write([]byte("e"))
	if len(got) != 2 || got[1] != "stderr:e" {
		t.Errorf("events = %q", got)
	}

	var r ExecutionResult
	c.Fill(&r)
	if r.Stdout != "abc" || !r.Truncated {
		t.Errorf("Stdout = %q, Truncated = %v", r.Stdout, r.Truncated)
	}
}
