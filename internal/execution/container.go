package execution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Container engines understood by ContainerRuntime.
const (
	EngineDocker    = "docker"
	EngineApptainer = "apptainer"
)

// ContainerRuntime runs each stage line inside a container image holding
// the analysis tools. The working directory and every mount are bound at
// their host paths, so the absolute paths in stage commands resolve the
// same way inside and outside the container.
type ContainerRuntime struct {
	Engine string // EngineDocker or EngineApptainer
	Binary string // defaults to Engine
	Image  string
	Shell  string // shell inside the image, defaults to DefaultShell
}

// ParseEngine validates a container engine name.
func ParseEngine(name string) (string, error) {
	switch name {
	case EngineDocker, EngineApptainer:
		return name, nil
	}
	return "", fmt.Errorf("unknown container engine %q (want %s or %s)", name, EngineDocker, EngineApptainer)
}

// Run executes spec.Command as `shell -c "<line>"` in the image.
func (r *ContainerRuntime) Run(ctx context.Context, spec RunSpec) (*RunResult, error) {
	args, err := r.Args(spec)
	if err != nil {
		return nil, &ExecutionError{Phase: "prepare", Err: err}
	}
	if spec.WorkDir != "" {
		if err := os.MkdirAll(spec.WorkDir, 0o755); err != nil {
			return nil, &ExecutionError{Phase: "prepare", Err: err}
		}
	}

	bin := r.Binary
	if bin == "" {
		bin = r.Engine
	}
	return runProcess(ctx, bin, args, os.Environ(), spec)
}

// Args returns the engine arguments for spec.
func (r *ContainerRuntime) Args(spec RunSpec) ([]string, error) {
	line := strings.TrimSpace(strings.Join(spec.Command, " "))
	if line == "" {
		return nil, ErrEmptyCommand
	}
	if r.Image == "" {
		return nil, ErrNoImage
	}
	shell := r.Shell
	if shell == "" {
		shell = DefaultShell
	}

	mounts := bindPaths(spec)
	envKeys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)

	var args []string
	switch r.Engine {
	case EngineDocker:
		args = []string{"run", "--rm", "-i"}
		for _, m := range mounts {
			args = append(args, "--mount", fmt.Sprintf("type=bind,source=%s,target=%s", m, m))
		}
		if spec.WorkDir != "" {
			args = append(args, "-w", resolveSymlinks(spec.WorkDir))
		}
		for _, k := range envKeys {
			args = append(args, "-e", k+"="+spec.Env[k])
		}
	case EngineApptainer:
		args = []string{"exec", "--cleanenv"}
		for _, m := range mounts {
			args = append(args, "--bind", m+":"+m)
		}
		if spec.WorkDir != "" {
			args = append(args, "--pwd", resolveSymlinks(spec.WorkDir))
		}
		for _, k := range envKeys {
			args = append(args, "--env", k+"="+spec.Env[k])
		}
	default:
		_, err := ParseEngine(r.Engine)
		return nil, err
	}

	return append(args, r.Image, shell, "-c", line), nil
}

// bindPaths returns the resolved work directory and mounts, deduplicated
// and with paths nested under another mount dropped.
func bindPaths(spec RunSpec) []string {
	var paths []string
	if spec.WorkDir != "" {
		paths = append(paths, resolveSymlinks(spec.WorkDir))
	}
	for _, m := range spec.Mounts {
		paths = append(paths, resolveSymlinks(m))
	}
	sort.Strings(paths)

	var out []string
next:
	for _, p := range paths {
		for _, o := range out {
			if p == o || strings.HasPrefix(p, o+string(filepath.Separator)) {
				continue next
			}
		}
		out = append(out, p)
	}
	return out
}

// resolveSymlinks returns the absolute, symlink-free form of path, or its
// absolute form when it does not exist yet.
func resolveSymlinks(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
