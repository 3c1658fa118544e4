package unitkit

import (
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// reporter serializes protocol lines onto the output stream.
type reporter struct {
	mu sync.Mutex
	w  io.Writer
}

func newReporter(w io.Writer) *reporter {
	return &reporter{w: w}
}

// emit writes one tagged line with a single Write call. The leading newline
// keeps the tag at the start of a line when the test body printed output
// without a trailing newline.
func (r *reporter) emit(tag, payload string) {
	line := "\n" + tag + Escape(payload) + "\n"

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.w, line)
}

// Escape encodes newlines so a payload always fits on one line.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", LineFeed)
}

// Unescape reverses Escape.
func Unescape(s string) string {
	return strings.ReplaceAll(s, LineFeed, "\n")
}

// FormatMillis renders d in milliseconds with at most four decimals.
func FormatMillis(d time.Duration) string {
	ms := float64(d.Nanoseconds()) / float64(time.Millisecond)
	return strconv.FormatFloat(math.Round(ms*1e4)/1e4, 'f', -1, 64)
}
