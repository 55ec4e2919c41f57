// Package runner executes an assembled workflow graph on the local host,
// one job at a time in dependency order, and records the run in the store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/me/cnvkit/internal/engine"
	"github.com/me/cnvkit/internal/execution"
	"github.com/me/cnvkit/internal/logging"
	"github.com/me/cnvkit/internal/provision"
	"github.com/me/cnvkit/internal/store"
	"github.com/me/cnvkit/pkg/model"
)

// maxCapture bounds the stdout/stderr kept per task.
const maxCapture = 64 << 10

// Meta describes the run being started.
type Meta struct {
	SampleName  string
	WorkDir     string
	OutputDir   string
	ProvisionTo string
	Config      map[string]string
}

// Option configures a Runner.
type Option func(*Runner)

// WithProvisioner hands deliverables to p once the job they are attached
// to succeeds.
func WithProvisioner(p provision.Provisioner) Option {
	return func(r *Runner) { r.provisioner = p }
}

// WithHostRuntime runs jobs pinned to the host through rt instead of the
// stage runtime. Without it, every job uses the stage runtime.
func WithHostRuntime(rt execution.Runtime) Option {
	return func(r *Runner) { r.host = rt }
}

// Environment exported to every stage.
const (
	EnvRunID = "CNVKIT_WORKFLOW_RUN_ID"
	EnvStage = "CNVKIT_WORKFLOW_STAGE"
)

// Runner walks a graph and runs each job through a Runtime.
type Runner struct {
	store       store.Store
	runtime     execution.Runtime
	host        execution.Runtime
	provisioner provision.Provisioner
	logger      *slog.Logger
}

// New creates a Runner.
func New(st store.Store, rt execution.Runtime, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		store:   st,
		runtime: rt,
		logger:  logger.With("component", "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every job of g. A job runs only when all of its parents
// succeeded; otherwise it is skipped. Nothing is retried. The returned run
// is populated even when err is non-nil, unless the run could not be
// recorded at all.
func (r *Runner) Run(ctx context.Context, g *engine.Graph, meta Meta) (*model.Run, error) {
	order, err := g.Order()
	if err != nil {
		return nil, err
	}
	// Bookkeeping must survive cancellation of the stages themselves.
	bg := context.WithoutCancel(ctx)

	run := &model.Run{
		ID:          "run_" + uuid.New().String(),
		SampleName:  meta.SampleName,
		State:       model.RunStatePending,
		WorkDir:     meta.WorkDir,
		OutputDir:   meta.OutputDir,
		ProvisionTo: meta.ProvisionTo,
		Config:      meta.Config,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.store.CreateRun(bg, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	logger := r.logger.With("run_id", run.ID)

	tasks := make([]*model.Task, 0, len(order))
	byStage := make(map[string]*model.Task, len(order))
	for _, n := range order {
		parents, err := g.Parents(n.Name())
		if err != nil {
			return run, err
		}
		task := &model.Task{
			ID:        "task_" + uuid.New().String(),
			RunID:     run.ID,
			Stage:     n.Name(),
			State:     model.TaskStatePending,
			Command:   n.Command(),
			MemoryMB:  n.MaxMemory(),
			Queue:     n.Queue(),
			CreatedAt: time.Now().UTC(),
		}
		for _, p := range parents {
			task.DependsOn = append(task.DependsOn, p.Name())
		}
		if err := r.store.CreateTask(bg, task); err != nil {
			return run, fmt.Errorf("create task %s: %w", task.Stage, err)
		}
		tasks = append(tasks, task)
		byStage[task.Stage] = task
	}

	if err := prepare(g); err != nil {
		logger.Error("run preparation failed", "error", err)
		r.skipAll(bg, tasks)
		return r.finish(bg, run, tasks, model.RunStateFailed, err)
	}

	if err := run.Transition(model.RunStateRunning); err != nil {
		return run, err
	}
	if err := r.store.UpdateRun(bg, run); err != nil {
		return run, fmt.Errorf("update run: %w", err)
	}
	logger.Info("run started", "sample", meta.SampleName, "jobs", len(tasks))

	mounts := mountPaths(g)
	var firstErr error
	for i, n := range order {
		task := tasks[i]

		if ctx.Err() != nil {
			r.skip(bg, task, "run cancelled")
			continue
		}
		if satisfied, _ := dependenciesSatisfied(task, byStage); !satisfied {
			r.skip(bg, task, "upstream stage did not succeed")
			continue
		}

		if err := r.runTask(ctx, run, task, n, meta.WorkDir, mounts); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	switch {
	case ctx.Err() != nil:
		if firstErr == nil {
			firstErr = ctx.Err()
		}
		return r.finish(bg, run, tasks, model.RunStateCancelled, firstErr)
	case firstErr != nil:
		return r.finish(bg, run, tasks, model.RunStateFailed, firstErr)
	default:
		return r.finish(bg, run, tasks, model.RunStateCompleted, nil)
	}
}

// prepare creates the declared directories and checks the declared inputs.
func prepare(g *engine.Graph) error {
	for _, dir := range g.Directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	for _, in := range g.Inputs() {
		info, err := os.Stat(in.Path)
		if err != nil {
			return fmt.Errorf("input %s: %w", in.Name, err)
		}
		if info.IsDir() {
			return fmt.Errorf("input %s: %s is a directory", in.Name, in.Path)
		}
	}
	return nil
}

// mountPaths lists the host paths a stage may touch: the declared
// directories and the directories holding the inputs.
func mountPaths(g *engine.Graph) []string {
	paths := append([]string(nil), g.Directories()...)
	for _, in := range g.Inputs() {
		paths = append(paths, filepath.Dir(in.Path))
	}
	return paths
}

func (r *Runner) runTask(ctx context.Context, run *model.Run, task *model.Task, n *engine.Node, workDir string, mounts []string) error {
	bg := context.WithoutCancel(ctx)
	logger := logging.ForStage(r.logger, run.ID, task.Stage)

	start := time.Now().UTC()
	task.StartedAt = &start
	if err := task.Transition(model.TaskStateRunning); err != nil {
		return err
	}
	r.updateTask(bg, task)
	logger.Info("stage started", "memory_mb", task.MemoryMB, "queue", task.Queue)

	res, err := r.runtimeFor(n).Run(ctx, execution.RunSpec{
		Command: task.Command,
		WorkDir: workDir,
		Env:     map[string]string{EnvRunID: run.ID, EnvStage: task.Stage},
		Mounts:  mounts,
	})

	var stageErr error
	switch {
	case err != nil:
		stageErr = &model.StageExecutionError{Stage: task.Stage, Err: err}
	case res.ExitCode != 0:
		code := res.ExitCode
		task.ExitCode = &code
		stageErr = &model.StageExecutionError{Stage: task.Stage, ExitCode: code, Err: execution.ErrNonZeroExit}
	default:
		code := 0
		task.ExitCode = &code
	}
	if res != nil {
		task.Stdout = tail(res.Stdout)
		task.Stderr = tail(res.Stderr)
	}

	if stageErr == nil && len(n.Files()) > 0 {
		if err := r.deliver(ctx, run, task, n.Files()); err != nil {
			stageErr = &model.StageExecutionError{Stage: task.Stage, Err: err}
		}
	}

	end := time.Now().UTC()
	task.CompletedAt = &end
	next := model.TaskStateSuccess
	if stageErr != nil {
		next = model.TaskStateFailed
		task.Error = stageErr.Error()
	}
	if err := task.Transition(next); err != nil {
		return err
	}
	r.updateTask(bg, task)

	if stageErr != nil {
		logger.Error("stage failed", "error", stageErr, "duration", task.Duration())
		return stageErr
	}
	logger.Info("stage finished", "duration", task.Duration())
	return nil
}

func (r *Runner) runtimeFor(n *engine.Node) execution.Runtime {
	if n.Host() && r.host != nil {
		return r.host
	}
	return r.runtime
}

// deliver provisions the files attached to a finished job and records them.
func (r *Runner) deliver(ctx context.Context, run *model.Run, task *model.Task, files []*engine.OutputFile) error {
	now := time.Now().UTC()
	out := make([]model.Deliverable, 0, len(files))
	for _, f := range files {
		info, err := os.Stat(f.Path)
		if err != nil {
			return &model.ArtifactCollectionError{Path: f.Path, Err: err}
		}
		out = append(out, model.Deliverable{
			ID:          "dlv_" + uuid.New().String(),
			RunID:       run.ID,
			Stage:       task.Stage,
			Path:        f.Path,
			Type:        f.Type,
			Manual:      f.Manual,
			Annotations: f.Annotations,
			SizeBytes:   info.Size(),
			CreatedAt:   now,
		})
	}

	if r.provisioner != nil {
		provisioned, err := r.provisioner.Provision(ctx, run.ID, out)
		if err != nil {
			return err
		}
		out = provisioned
	}

	bg := context.WithoutCancel(ctx)
	for i := range out {
		if err := r.store.CreateDeliverable(bg, &out[i]); err != nil {
			return fmt.Errorf("record deliverable %s: %w", out[i].Path, err)
		}
	}
	run.Deliverables = append(run.Deliverables, out...)
	return nil
}

func (r *Runner) skip(ctx context.Context, task *model.Task, reason string) {
	if err := task.Transition(model.TaskStateSkipped); err != nil {
		r.logger.Error("skip task", "task_id", task.ID, "error", err)
		return
	}
	task.Error = reason
	r.updateTask(ctx, task)
	r.logger.Info("stage skipped", "run_id", task.RunID, "stage", task.Stage, "reason", reason)
}

func (r *Runner) skipAll(ctx context.Context, tasks []*model.Task) {
	for _, t := range tasks {
		if t.State == model.TaskStatePending {
			r.skip(ctx, t, "run preparation failed")
		}
	}
}

func (r *Runner) updateTask(ctx context.Context, task *model.Task) {
	if err := r.store.UpdateTask(ctx, task); err != nil {
		r.logger.Error("update task", "task_id", task.ID, "stage", task.Stage, "error", err)
	}
}

// finish moves the run to its terminal state and returns it with its tasks.
func (r *Runner) finish(ctx context.Context, run *model.Run, tasks []*model.Task, state model.RunState, runErr error) (*model.Run, error) {
	if err := run.Transition(state); err != nil {
		return run, errors.Join(runErr, err)
	}
	now := time.Now().UTC()
	run.CompletedAt = &now
	if runErr != nil {
		run.Error = runErr.Error()
	}
	run.Tasks = run.Tasks[:0]
	for _, t := range tasks {
		run.Tasks = append(run.Tasks, *t)
	}
	run.TaskSummary = model.ComputeTaskSummary(run.Tasks)

	if err := r.store.UpdateRun(ctx, run); err != nil {
		return run, errors.Join(runErr, fmt.Errorf("update run: %w", err))
	}
	r.logger.Info("run finished", "run_id", run.ID, "state", run.State,
		"succeeded", run.TaskSummary.Success, "failed", run.TaskSummary.Failed, "skipped", run.TaskSummary.Skipped)
	return run, runErr
}

func tail(s string) string {
	if len(s) <= maxCapture {
		return s
	}
	return s[len(s)-maxCapture:]
}
