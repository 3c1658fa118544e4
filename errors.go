package runbox

import (
	"errors"
	"fmt"

	"github.com/happyhackingspace/runbox/internal/factory"
	"github.com/happyhackingspace/runbox/internal/toolchain"
	"github.com/happyhackingspace/runbox/pkg/assemble"
	"github.com/happyhackingspace/runbox/pkg/executor"
)

// Sentinel errors for common conditions.
var (
	// ErrNoProgram indicates a request with neither code nor a fixture.
	ErrNoProgram = errors.New("neither code nor fixture supplied")

	// ErrInvalidSetup indicates a setup value that is neither a string nor false.
	ErrInvalidSetup = executor.ErrInvalidSetup

	// ErrLanguageNotSupported indicates language isn't supported.
	ErrLanguageNotSupported = errors.New("language not supported")

	// ErrLanguageDetectionFailed indicates detection couldn't determine language.
	ErrLanguageDetectionFailed = errors.New("language detection failed")

	// ErrFixtureNotSupported indicates a fixture for a language without a
	// test runtime.
	ErrFixtureNotSupported = errors.New("fixtures not supported for this language")

	// ErrProviderNotRegistered indicates provider is not registered.
	ErrProviderNotRegistered = errors.New("provider not registered")

	// ErrProviderUnavailable indicates provider is not accessible.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrRunnerClosed indicates a call on a closed Runner.
	ErrRunnerClosed = errors.New("runner is closed")

	// ErrInvalidConfiguration indicates invalid configuration.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// RunError wraps errors with context.
type RunError struct {
	Op       string // Operation that failed
	Provider string // Provider involved
	RunID    string // Run ID if known
	Err      error  // Underlying error
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("%s [%s/%s]: %v", e.Op, e.Provider, e.RunID, e.Err)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// Is supports errors.Is for comparison.
func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a RunError.
func NewError(op, provider, runID string, err error) *RunError {
	return &RunError{
		Op:       op,
		Provider: provider,
		RunID:    runID,
		Err:      err,
	}
}

// translate maps errors of the lower packages onto the root sentinels,
// keeping the original in the chain.
func translate(err error) error {
	var sentinel error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, assemble.ErrEmptyProgram):
		sentinel = ErrNoProgram
	case errors.Is(err, toolchain.ErrUnknownToolchain):
		sentinel = ErrLanguageNotSupported
	case errors.Is(err, toolchain.ErrFixtureNotSupported):
		sentinel = ErrFixtureNotSupported
	case errors.Is(err, factory.ErrNotRegistered):
		sentinel = ErrProviderNotRegistered
	default:
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
