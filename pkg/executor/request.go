package executor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidSetup is returned when a setup value is neither a string nor false.
var ErrInvalidSetup = errors.New("setup must be a string or false")

// Setup is the optional auxiliary implementation of a request. On the wire
// it is either a string or the literal false, which disables setup.
type Setup struct {
	// Code is the setup source.
	Code string

	// Disabled is set when the request carried setup: false.
	Disabled bool
}

// SetupCode returns an enabled Setup holding code.
func SetupCode(code string) Setup {
	return Setup{Code: code}
}

// SetupDisabled is the explicit disabled marker.
var SetupDisabled = Setup{Disabled: true}

// Enabled reports whether there is setup code to assemble.
func (s Setup) Enabled() bool {
	return !s.Disabled && strings.TrimSpace(s.Code) != ""
}

func (s Setup) MarshalJSON() ([]byte, error) {
	if s.Disabled {
		return []byte("false"), nil
	}
	return json.Marshal(s.Code)
}

func (s *Setup) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null":
		*s = Setup{}
		return nil
	case "false":
		*s = SetupDisabled
		return nil
	case "true":
		return ErrInvalidSetup
	}
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSetup, err)
	}
	*s = SetupCode(code)
	return nil
}

func (s Setup) MarshalYAML() (any, error) {
	if s.Disabled {
		return false, nil
	}
	return s.Code, nil
}

func (s *Setup) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return ErrInvalidSetup
	}
	switch node.Tag {
	case "!!null":
		*s = Setup{}
		return nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		if b {
			return ErrInvalidSetup
		}
		*s = SetupDisabled
		return nil
	}
	*s = SetupCode(node.Value)
	return nil
}

// RunRequest is one submission.
type RunRequest struct {
	// Language identifies the toolchain. Empty means detect or use the default.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`

	// Code is the program. A blank value means the fixture drives execution.
	Code string `json:"code" yaml:"code"`

	// Setup is auxiliary implementation code, or the disabled marker.
	Setup Setup `json:"setup" yaml:"setup"`

	// SetupHeader holds declarations visible to setup, code and fixture.
	SetupHeader string `json:"setupHeader,omitempty" yaml:"setupHeader,omitempty"`

	// Fixture holds test suites run by the test runtime.
	Fixture string `json:"fixture,omitempty" yaml:"fixture,omitempty"`

	// Stdin is piped to the program.
	Stdin string `json:"stdin,omitempty" yaml:"stdin,omitempty"`

	// Filename is a hint for language detection.
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`
}

// HasCode reports whether the request carries a non-blank program.
func (r *RunRequest) HasCode() bool {
	return strings.TrimSpace(r.Code) != ""
}

// HasFixture reports whether the request carries a non-blank fixture.
func (r *RunRequest) HasFixture() bool {
	return strings.TrimSpace(r.Fixture) != ""
}

// HasHeader reports whether a setup header takes part in assembly. The
// disabled marker drops the header along with the setup code.
func (r *RunRequest) HasHeader() bool {
	return !r.Setup.Disabled && strings.TrimSpace(r.SetupHeader) != ""
}

// DecodeRequest reads a request from JSON or YAML.
func DecodeRequest(data []byte) (*RunRequest, error) {
	var req RunRequest
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return nil, fmt.Errorf("decode request: %w", err)
		}
		return &req, nil
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}
