//go:build !unix

package process

import (
	"context"
	"errors"

	"github.com/happyhackingspace/runbox/pkg/executor"
)

// ErrUnsupported is returned on platforms without process groups.
var ErrUnsupported = errors.New("process controller requires a unix platform")

// Run is not supported on this platform.
func (c *Controller) Run(ctx context.Context, command executor.Command, handler executor.StreamHandler) (*executor.ExecutionResult, error) {
	return nil, ErrUnsupported
}
