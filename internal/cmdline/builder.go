// Package cmdline builds the command line of every analysis stage.
//
// A command is a list of shell fragments. The first two are always the
// Python and R environment prefixes; the rest invoke the analysis tool.
// Fragments are joined with spaces into a single bash line by Shell.
package cmdline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/me/cnvkit/internal/config"
	"github.com/me/cnvkit/internal/paths"
)

// Stage names, in pipeline order.
const (
	StageBatch      = "batch"
	StageScatter    = "scatter"
	StageSegmetrics = "segmetrics"
	StageFilter     = "filter"
	StageDiagram    = "diagram"
	StageExportSeg  = "export-seg"
)

// Order lists the analysis stages in the order they run.
var Order = []string{
	StageBatch,
	StageScatter,
	StageSegmetrics,
	StageFilter,
	StageDiagram,
	StageExportSeg,
}

// ErrUnknownStage is returned by Build for a name not in Order.
var ErrUnknownStage = errors.New("unknown stage")

// Resources is the scheduling requirement of one stage.
type Resources struct {
	MemoryMB int    `json:"memory_mb" yaml:"memory_mb"`
	Queue    string `json:"queue" yaml:"queue"`
}

// StageSpec is one fully substituted pipeline step.
type StageSpec struct {
	Name      string    `json:"name" yaml:"name"`
	Command   []string  `json:"command" yaml:"command"`
	Resources Resources `json:"resources" yaml:"resources"`
	DependsOn []string  `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Builder constructs stage commands for one resolved configuration.
type Builder struct {
	cfg *config.Resolved
	set paths.Set
}

// NewBuilder creates a builder. set must have been derived from cfg.
func NewBuilder(cfg *config.Resolved, set paths.Set) *Builder {
	return &Builder{cfg: cfg, set: set}
}

// Build returns the command of the named stage.
func (b *Builder) Build(stage string) ([]string, error) {
	switch stage {
	case StageBatch:
		return b.Batch(), nil
	case StageScatter:
		return b.Scatter(), nil
	case StageSegmetrics:
		return b.Segmetrics(), nil
	case StageFilter:
		return b.Filter(), nil
	case StageDiagram:
		return b.Diagram(), nil
	case StageExportSeg:
		return b.ExportSeg(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
}

// prefix starts every command: environment exports, then the tool call.
func (b *Builder) prefix(subcommand string) []string {
	return []string{
		b.cfg.PythonExports(),
		b.cfg.RExports(),
		b.cfg.Program + " " + subcommand,
	}
}

// Batch runs the full batch analysis against the tumor sample and then
// renames the outputs, which the tool names after the tumor file, onto the
// canonical stem.
func (b *Builder) Batch() []string {
	cmd := b.prefix("batch " + b.cfg.Tumor)
	cmd = append(cmd,
		"--reference "+b.cfg.Normal,
		"--scatter",
		"--diagram",
		"--rlibpath "+b.cfg.RPath,
		"--output-dir "+b.set.WorkDir(),
	)
	if !b.set.NeedsRename() {
		return cmd
	}

	cmd = append(cmd, "&&", "cd "+b.set.WorkDir())
	for _, suffix := range paths.BatchSuffixes {
		cmd = append(cmd, "&&", "mv -f "+b.set.NativeStem()+suffix+" "+b.set.Path(suffix))
	}
	return cmd
}

// Scatter re-renders the scatter plot as PNG.
func (b *Builder) Scatter() []string {
	return append(b.prefix("scatter"),
		"-s "+b.set.Stem()+".cn{s,r}",
		"-o "+b.set.Path(paths.ScatterPNG),
	)
}

// Segmetrics computes confidence and prediction intervals per segment.
func (b *Builder) Segmetrics() []string {
	return append(b.prefix("segmetrics"),
		"-s "+b.set.Stem()+".cn{s,r}",
		"--ci",
		"--pi",
		"-o "+b.set.Path(paths.Segmetrics),
	)
}

// Filter calls copy number, dropping segments by cn and ci filters.
func (b *Builder) Filter() []string {
	return append(b.prefix("call"),
		"--filter cn",
		"--filter ci",
		b.set.Path(paths.Segmetrics),
		"-o "+b.set.Path(paths.Call),
	)
}

// Diagram renders the filtered calls.
func (b *Builder) Diagram() []string {
	return append(b.prefix("diagram"),
		"-s "+b.set.Path(paths.Call),
		"-o "+b.DiagramOutput(),
	)
}

// DiagramOutput is the file the diagram stage writes. In observed mode it
// is the call file the stage reads.
func (b *Builder) DiagramOutput() string {
	if b.cfg.DiagramMode == config.DiagramPDF {
		return b.set.Path(paths.CallDiagramPDF)
	}
	return b.set.Path(paths.Call)
}

// ExportSeg converts the unfiltered segmetrics output into a segment table.
func (b *Builder) ExportSeg() []string {
	return append(b.prefix("export seg"),
		b.set.Path(paths.Segmetrics),
		"--enumerate-chroms",
		"-o "+b.set.Path(paths.SegmentTable),
	)
}

// Stages returns every analysis stage in order, each depending on the one
// before it.
func (b *Builder) Stages() []StageSpec {
	res := Resources{MemoryMB: b.cfg.JobMemoryMB(), Queue: b.cfg.Queue}

	specs := make([]StageSpec, 0, len(Order))
	for i, name := range Order {
		cmd, _ := b.Build(name)
		spec := StageSpec{Name: name, Command: cmd, Resources: res}
		if i > 0 {
			spec.DependsOn = []string{Order[i-1]}
		}
		specs = append(specs, spec)
	}
	return specs
}

// Stages is shorthand for NewBuilder(cfg, set).Stages().
func Stages(cfg *config.Resolved, set paths.Set) []StageSpec {
	return NewBuilder(cfg, set).Stages()
}

// Shell joins command fragments into one bash line.
func Shell(command []string) string {
	return strings.Join(command, " ")
}
