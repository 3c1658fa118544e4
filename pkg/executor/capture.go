package executor

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// cappedBuffer keeps the first limit bytes written to it and discards the
// rest while still reporting full writes, so pipes keep draining.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	room := b.limit - int64(b.buf.Len())
	if room <= 0 {
		b.truncated = len(p) > 0 || b.truncated
		return len(p), nil
	}
	if int64(len(p)) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

// Capture collects a process's stdout and stderr and optionally forwards
// every chunk to a StreamHandler as it arrives.
type Capture struct {
	stdout cappedBuffer
	stderr cappedBuffer

	outW io.Writer
	errW io.Writer

	mu         sync.Mutex
	handlerErr error
}

// NewCapture creates a Capture keeping at most limit bytes per stream
// (zero for unlimited). handler may be nil.
func NewCapture(limit int64, handler StreamHandler) *Capture {
	c := &Capture{
		stdout: cappedBuffer{limit: limit},
		stderr: cappedBuffer{limit: limit},
	}
	c.outW, c.errW = &c.stdout, &c.stderr

	if handler != nil {
		emit := c.guard(handler)
		c.outW = io.MultiWriter(&c.stdout, &chunkWriter{typ: StreamStdout, emit: emit})
		c.errW = io.MultiWriter(&c.stderr, &chunkWriter{typ: StreamStderr, emit: emit})
	}
	return c
}

// guard serializes handler calls from the two stream goroutines and stops
// calling a handler that failed, without stalling the pipes.
func (c *Capture) guard(handler StreamHandler) StreamHandler {
	return func(ev *StreamEvent) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.handlerErr != nil {
			return nil
		}
		if err := handler(ev); err != nil {
			c.handlerErr = err
		}
		return nil
	}
}

// Stdout returns the writer for standard output.
func (c *Capture) Stdout() io.Writer { return c.outW }

// Stderr returns the writer for standard error.
func (c *Capture) Stderr() io.Writer { return c.errW }

// HandlerErr returns the first error returned by the stream handler.
func (c *Capture) HandlerErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlerErr
}

// Close marks the end of both streams. Chunks are delivered as they are
// written, so nothing is pending once the pipes are drained.
func (c *Capture) Close() error {
	return nil
}

// chunkWriter turns every write into one stream event, delivered before
// Write returns.
type chunkWriter struct {
	typ  StreamEventType
	emit StreamHandler
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	_ = w.emit(&StreamEvent{Type: w.typ, Data: string(p), Timestamp: time.Now()})
	return len(p), nil
}

// Fill copies the captured output into r.
func (c *Capture) Fill(r *ExecutionResult) {
	r.Stdout = c.stdout.buf.String()
	r.Stderr = c.stderr.buf.String()
	r.Truncated = r.Truncated || c.stdout.truncated || c.stderr.truncated
}
