package model

import (
	"fmt"
	"strings"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the status API.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// MissingConfigError is returned when a required configuration key is absent.
// The pipeline is never started when this occurs.
type MissingConfigError struct {
	Key     string
	Aliases []string // other names accepted for the same value
}

func (e *MissingConfigError) Error() string {
	if len(e.Aliases) == 0 {
		return fmt.Sprintf("missing required configuration key %q", e.Key)
	}
	return fmt.Sprintf("missing required configuration key %q (also accepted: %s)", e.Key, strings.Join(e.Aliases, ", "))
}

// ConfigFormatError is returned when a configuration value is present but
// cannot be used (unparsable number, invalid path, conflicting directories).
type ConfigFormatError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ConfigFormatError) Error() string {
	return fmt.Sprintf("invalid value %q for configuration key %q: %s", e.Value, e.Key, e.Reason)
}

// StageExecutionError reports a stage whose external command did not succeed.
// Every stage downstream of it is skipped.
type StageExecutionError struct {
	Stage    string
	ExitCode int
	Err      error
}

func (e *StageExecutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stage %s failed", e.Stage)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *StageExecutionError) Unwrap() error {
	return e.Err
}

// ArtifactCollectionError reports a failure to build the model-fit bundle or
// promote the segment file. Deliverables are not declared when this occurs.
type ArtifactCollectionError struct {
	Path string
	Err  error
}

func (e *ArtifactCollectionError) Error() string {
	return fmt.Sprintf("collect artifacts: %s: %v", e.Path, e.Err)
}

func (e *ArtifactCollectionError) Unwrap() error {
	return e.Err
}

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
}
