package pipeline

import (
	"github.com/me/cnvkit/internal/cmdline"
	"github.com/me/cnvkit/internal/engine"
)

// Plan is a serializable view of an assembled graph, printed by the plan
// command and stored with each run.
type Plan struct {
	Directories []string       `json:"directories" yaml:"directories"`
	Inputs      []engine.Input `json:"inputs" yaml:"inputs"`
	Jobs        []PlannedJob   `json:"jobs" yaml:"jobs"`
}

// PlannedJob is one job of a Plan.
type PlannedJob struct {
	Name     string               `json:"name" yaml:"name"`
	Parents  []string             `json:"parents,omitempty" yaml:"parents,omitempty"`
	MemoryMB int                  `json:"memory_mb" yaml:"memory_mb"`
	Queue    string               `json:"queue,omitempty" yaml:"queue,omitempty"`
	Host     bool                 `json:"host,omitempty" yaml:"host,omitempty"`
	Command  []string             `json:"command" yaml:"command"`
	Shell    string               `json:"shell" yaml:"shell"`
	Files    []*engine.OutputFile `json:"files,omitempty" yaml:"files,omitempty"`
}

// Describe walks g in execution order.
func Describe(g *engine.Graph) (*Plan, error) {
	order, err := g.Order()
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Directories: g.Directories(),
		Inputs:      g.Inputs(),
		Jobs:        make([]PlannedJob, 0, len(order)),
	}
	for _, n := range order {
		parents, err := g.Parents(n.Name())
		if err != nil {
			return nil, err
		}
		pj := PlannedJob{
			Name:     n.Name(),
			MemoryMB: n.MaxMemory(),
			Queue:    n.Queue(),
			Host:     n.Host(),
			Command:  n.Command(),
			Shell:    cmdline.Shell(n.Command()),
			Files:    n.Files(),
		}
		for _, p := range parents {
			pj.Parents = append(pj.Parents, p.Name())
		}
		plan.Jobs = append(plan.Jobs, pj)
	}
	return plan, nil
}
