package execution

import (
	"context"
)

// Runtime abstracts where a stage command is executed.
type Runtime interface {
	// Run executes a command and returns the result. A non-zero exit is
	// reported through RunResult.ExitCode, not as an error.
	Run(ctx context.Context, spec RunSpec) (*RunResult, error)
}

// RunSpec describes what to execute.
type RunSpec struct {
	Command []string          // Shell fragments, joined into one bash line
	WorkDir string            // Working directory
	Env     map[string]string // Extra environment, layered over the process environment
	Mounts  []string          // Host paths a container runtime binds at the same location
	Stdout  string            // Path to capture stdout (optional)
	Stderr  string            // Path to capture stderr (optional)
}

// RunResult holds the result of a command execution.
type RunResult struct {
	ExitCode int
	Stdout   string // Captured stdout content (if not redirected to file)
	Stderr   string // Captured stderr content (if not redirected to file)
}
