package execution

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultShell runs stage commands.
const DefaultShell = "/bin/bash"

const waitDelay = 2 * time.Second

// LocalRuntime executes commands as local shell processes. Each command
// gets its own environment; the runner's environment is never modified.
type LocalRuntime struct {
	Shell string // defaults to DefaultShell
}

// Run executes spec.Command as `shell -c "<fragments joined by spaces>"`.
func (r *LocalRuntime) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	line := strings.TrimSpace(strings.Join(spec.Command, " "))
	if line == "" {
		return nil, &ExecutionError{Phase: "prepare", Err: ErrEmptyCommand}
	}

	shell := r.Shell
	if shell == "" {
		shell = DefaultShell
	}

	if spec.WorkDir != "" {
		if err := os.MkdirAll(spec.WorkDir, 0o755); err != nil {
			return nil, &ExecutionError{Phase: "prepare", Err: err}
		}
	}

	return runProcess(ctx, shell, []string{"-c", line}, mergeEnv(os.Environ(), spec.Env), spec)
}

// runProcess runs name with args in spec.WorkDir, capturing output as
// spec asks. Only a process that could not be run, or a cancelled ctx,
// yields an error.
func runProcess(ctx context.Context, name string, args, env []string, spec RunSpec) (*RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = spec.WorkDir
	cmd.Env = env
	// Children of the shell may hold the output pipes open after it is
	// killed on cancellation.
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout, closeOut, err := output(spec.WorkDir, spec.Stdout, &stdoutBuf)
	if err != nil {
		return nil, &ExecutionError{Phase: "prepare", Err: err}
	}
	defer closeOut()
	stderr, closeErr, err := output(spec.WorkDir, spec.Stderr, &stderrBuf)
	if err != nil {
		return nil, &ExecutionError{Phase: "prepare", Err: err}
	}
	defer closeErr()
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err = cmd.Run()
	exitCode := 0
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ExecutionError{Phase: "execute", Err: ctx.Err()}
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, &ExecutionError{Phase: "execute", Err: err}
		}
		exitCode = exitErr.ExitCode()
	}

	return &RunResult{
		ExitCode: exitCode,
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
	}, nil
}

// output returns the writer for a captured stream: a file when path is
// set, buf otherwise.
func output(workDir, path string, buf *bytes.Buffer) (io.Writer, func(), error) {
	if path == "" {
		return buf, func() {}, nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// mergeEnv overlays extra on base. Keys in extra replace any existing
// entry rather than appending a duplicate.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := extra[k]; ok {
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
