package protocol

import (
	"bytes"
	"sync"
)

// LineWriter is an io.Writer that decodes protocol lines as they arrive and
// passes each one to a callback. Partial lines are held until completed or
// until Flush.
type LineWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
	fn  func(Event)
}

// NewLineWriter creates a LineWriter calling fn for every complete line.
func NewLineWriter(fn func(Event)) *LineWriter {
	return &LineWriter{fn: fn}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		w.dispatch(line[:len(line)-1])
	}
	return len(p), nil
}

// Flush dispatches any trailing partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		line := w.buf.String()
		w.buf.Reset()
		w.dispatch(line)
	}
}

func (w *LineWriter) dispatch(line string) {
	if line == "" {
		return
	}
	w.fn(ParseLine(line))
}
