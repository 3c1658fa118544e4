// Package process runs workspace commands as host child processes and
// classifies how they end.
package process

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"
)

// ErrEmptyCommand is returned for a command without argv.
var ErrEmptyCommand = errors.New("empty command")

// DefaultWaitDelay bounds how long output is still read after the process
// exited and its group was killed.
const DefaultWaitDelay = time.Second

// Controller spawns commands in their own process group, captures both
// output streams to completion and reports either an exit code or the
// terminating signal. Cancelling the context kills the whole group.
type Controller struct {
	// Env is the base environment. Nil means the current process's
	// environment.
	Env []string

	// WaitDelay bounds the drain after exit, for descendants that left the
	// process group and still hold the output pipes. Zero means
	// DefaultWaitDelay.
	WaitDelay time.Duration
}

// New returns a Controller using the current environment.
func New() *Controller {
	return &Controller{}
}

func (c *Controller) baseEnv() []string {
	if c.Env != nil {
		return append([]string(nil), c.Env...)
	}
	return os.Environ()
}

func (c *Controller) waitDelay() time.Duration {
	if c.WaitDelay > 0 {
		return c.WaitDelay
	}
	return DefaultWaitDelay
}

func copyStream(wg *sync.WaitGroup, dst io.Writer, src io.Reader) {
	defer wg.Done()
	_, _ = io.Copy(dst, src)
}
