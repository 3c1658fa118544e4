package runbox

import (
	"errors"
	"fmt"
	"testing"

	"github.com/happyhackingspace/runbox/internal/factory"
	"github.com/happyhackingspace/runbox/internal/toolchain"
	"github.com/happyhackingspace/runbox/pkg/assemble"
	"github.com/happyhackingspace/runbox/pkg/executor"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNoProgram", ErrNoProgram},
		{"ErrInvalidSetup", ErrInvalidSetup},
		{"ErrLanguageNotSupported", ErrLanguageNotSupported},
		{"ErrLanguageDetectionFailed", ErrLanguageDetectionFailed},
		{"ErrFixtureNotSupported", ErrFixtureNotSupported},
		{"ErrProviderNotRegistered", ErrProviderNotRegistered},
		{"ErrProviderUnavailable", ErrProviderUnavailable},
		{"ErrRunnerClosed", ErrRunnerClosed},
		{"ErrInvalidConfiguration", ErrInvalidConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatal("sentinel error should not be nil")
			}
			if tt.err.Error() == "" {
				t.Error("sentinel error should have a message")
			}
		})
	}

	if !errors.Is(ErrInvalidSetup, executor.ErrInvalidSetup) {
		t.Error("ErrInvalidSetup should match executor.ErrInvalidSetup")
	}
}

func TestRunError(t *testing.T) {
	t.Run("with all fields", func(t *testing.T) {
		err := NewError("run", "docker", "abc123", ErrNoProgram)

		if err.Op != "run" {
			t.Errorf("Op = %q, want %q", err.Op, "run")
		}
		if err.RunID != "abc123" {
			t.Errorf("RunID = %q, want %q", err.RunID, "abc123")
		}
		if msg := err.Error(); msg != "run [docker/abc123]: neither code nor fixture supplied" {
			t.Errorf("Error() = %q", msg)
		}
	})

	t.Run("without run ID", func(t *testing.T) {
		err := NewError("create", "nsjail", "", ErrProviderUnavailable)
		if msg := err.Error(); msg != "create [nsjail]: provider unavailable" {
			t.Errorf("Error() = %q", msg)
		}
	})

	t.Run("operation only", func(t *testing.T) {
		err := NewError("close", "", "", ErrRunnerClosed)
		if msg := err.Error(); msg != "close: runner is closed" {
			t.Errorf("Error() = %q", msg)
		}
	})

	t.Run("unwrap and is", func(t *testing.T) {
		inner := fmt.Errorf("wrapped: %w", ErrLanguageNotSupported)
		err := NewError("run", "local", "x", inner)

		if !errors.Is(err, ErrLanguageNotSupported) {
			t.Error("errors.Is should see through RunError")
		}
		if errors.Unwrap(err) != inner {
			t.Error("Unwrap() should return the inner error")
		}

		var runErr *RunError
		if !errors.As(fmt.Errorf("outer: %w", err), &runErr) || runErr.RunID != "x" {
			t.Error("errors.As should find the RunError")
		}
	})
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		want  error
		cause error
	}{
		{"empty program", assemble.ErrEmptyProgram, ErrNoProgram, assemble.ErrEmptyProgram},
		{"unknown toolchain", fmt.Errorf("%w: %q", toolchain.ErrUnknownToolchain, "cobol"), ErrLanguageNotSupported, toolchain.ErrUnknownToolchain},
		{"fixture", toolchain.ErrFixtureNotSupported, ErrFixtureNotSupported, toolchain.ErrFixtureNotSupported},
		{"provider", fmt.Errorf("%w: %q", factory.ErrNotRegistered, "x"), ErrProviderNotRegistered, factory.ErrNotRegistered},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("translate() = %v, want %v", got, tt.want)
			}
			if !errors.Is(got, tt.cause) {
				t.Errorf("translate() lost the cause %v", tt.cause)
			}
		})
	}

	other := errors.New("other")
	if translate(other) != other {
		t.Error("translate() should pass unknown errors through")
	}
	if translate(nil) != nil {
		t.Error("translate(nil) should be nil")
	}
}
