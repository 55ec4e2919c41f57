// Package pipeline assembles the copy-number analysis into a workflow:
// six analysis stages chained in order, followed by artifact collection
// and the declaration of the two deliverables.
package pipeline

import (
	"fmt"

	"github.com/me/cnvkit/internal/cmdline"
	"github.com/me/cnvkit/internal/config"
	"github.com/me/cnvkit/internal/engine"
	"github.com/me/cnvkit/internal/paths"
	"github.com/me/cnvkit/pkg/model"
)

// StageCollect is the terminal job that packages the working directory.
const StageCollect = "collect"

// DefaultSelf is used when Options.Self is empty.
const DefaultSelf = "cnvkit-workflow"

// Options tunes assembly.
type Options struct {
	// Self is the program that provides the collect subcommand, normally
	// the running binary.
	Self string
}

// Pipeline is the result of Assemble.
type Pipeline struct {
	Config       *config.Resolved
	Paths        paths.Set
	Stages       []cmdline.StageSpec
	Jobs         []engine.Job
	Deliverables []*engine.OutputFile
}

// Terminal returns the last job of the chain.
func (p *Pipeline) Terminal() engine.Job {
	return p.Jobs[len(p.Jobs)-1]
}

// Assemble declares the directories and inputs, creates one job per stage
// linked batch → scatter → segmetrics → filter → diagram → export-seg →
// collect, and attaches the deliverables to the collect job.
func Assemble(w engine.Workflow, cfg *config.Resolved, opts Options) (*Pipeline, error) {
	set := paths.New(cfg.WorkDir, cfg.SampleName, cfg.Tumor)
	b := cmdline.NewBuilder(cfg, set)

	w.AddDirectory(cfg.WorkDir)
	w.AddDirectory(cfg.OutputDir)
	w.DeclareInput("tumor", cfg.Tumor, model.FileTypeBAM)
	w.DeclareInput("normal", cfg.Normal, model.FileTypeCNN)

	specs := append(b.Stages(), CollectStage(cfg, set, b.DiagramOutput(), opts.Self))

	p := &Pipeline{Config: cfg, Paths: set, Stages: specs}
	var parent engine.Job
	for _, spec := range specs {
		job, err := w.CreateJob(spec.Name, spec.Command)
		if err != nil {
			return nil, fmt.Errorf("assemble %s: %w", spec.Name, err)
		}
		job.SetMaxMemory(spec.Resources.MemoryMB)
		job.SetQueue(spec.Resources.Queue)
		// Collection runs this program, which is not present in stage images.
		job.SetHost(spec.Name == StageCollect)
		if parent != nil {
			if err := job.AddParent(parent); err != nil {
				return nil, fmt.Errorf("assemble %s: %w", spec.Name, err)
			}
		}
		p.Jobs = append(p.Jobs, job)
		parent = job
	}

	p.Deliverables = DeclareDeliverables(w, p.Terminal(), cfg)
	return p, nil
}

// CollectStage builds the artifact collection step. It runs this program's
// collect subcommand on the working directory, promoting the segment table
// and requiring every file the analysis stages are expected to leave.
func CollectStage(cfg *config.Resolved, set paths.Set, diagramOut, self string) cmdline.StageSpec {
	if self == "" {
		self = DefaultSelf
	}
	cmd := []string{
		self + " collect",
		"--work-dir " + set.WorkDir(),
		"--output-dir " + cfg.OutputDir,
		"--summary " + set.Summary(),
	}
	for _, f := range set.Expected(diagramOut) {
		cmd = append(cmd, "--require "+f)
	}
	return cmdline.StageSpec{
		Name:      StageCollect,
		Command:   cmd,
		Resources: cmdline.Resources{MemoryMB: cfg.JobMemoryMB(), Queue: cfg.Queue},
		DependsOn: []string{cmdline.StageExportSeg},
	}
}
