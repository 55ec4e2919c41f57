// Package config loads workflow properties and resolves them into the
// immutable configuration every stage is built from.
package config

import (
	"os"
	"path/filepath"
)

// RunnerConfig holds settings of the local runner and status server, as
// opposed to the per-sample workflow properties handled by Resolve.
type RunnerConfig struct {
	DBPath    string // SQLite database path (default ~/.cnvkit-workflow/runs.db, ":memory:" for testing)
	Shell     string // Shell used to run stage commands (default /bin/bash)
	Addr      string // Listen address for the status server (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
}

// DefaultRunnerConfig returns sensible defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		DBPath:    defaultDBPath(),
		Shell:     "/bin/bash",
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "cnvkit-workflow.db"
	}
	return filepath.Join(home, ".cnvkit-workflow", "runs.db")
}
