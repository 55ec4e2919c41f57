package execution

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNonZeroExit  = errors.New("command exited with non-zero status")
	ErrEmptyCommand = errors.New("empty command")
	ErrNoImage      = errors.New("container runtime needs an image")
)

// ExecutionError wraps errors with execution phase context.
type ExecutionError struct {
	Phase    string // "prepare", "execute"
	Err      error
	ExitCode int
}

func (e *ExecutionError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s: %v (exit code %d)", e.Phase, e.Err, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
