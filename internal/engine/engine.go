// Package engine is the job abstraction the pipeline is assembled into:
// named jobs carrying a command, parent edges, resource settings and the
// deliverable files attached to them.
package engine

import "errors"

// Errors returned by Graph.
var (
	ErrDuplicateJob = errors.New("job already exists")
	ErrUnknownJob   = errors.New("unknown job")
	ErrForeignJob   = errors.New("job belongs to another workflow")
	ErrCycle        = errors.New("edge would create a cycle")
)

// Workflow is the construction surface a pipeline is declared against.
type Workflow interface {
	// AddDirectory declares a directory that must exist before any job runs.
	AddDirectory(path string)
	// DeclareInput registers an input file the jobs read.
	DeclareInput(name, path, fileType string)
	// CreateJob adds a job node. Names are unique within a workflow.
	CreateJob(name string, command []string) (Job, error)
	// CreateOutputFile registers a deliverable that can be attached to a job.
	CreateOutputFile(path, fileType string, manual bool) *OutputFile
}

// Job is a handle on one node of a Workflow.
type Job interface {
	Name() string
	Command() []string
	// AddParent makes this job wait for parent.
	AddParent(parent Job) error
	SetMaxMemory(mb int)
	SetQueue(queue string)
	// SetHost pins the job to the host, outside any container runtime.
	SetHost(host bool)
	// AddFile attaches a deliverable, handed off once the job succeeds.
	AddFile(f *OutputFile)
}

// Input is a declared input file.
type Input struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
	Type string `json:"type" yaml:"type"`
}

// OutputFile describes a deliverable: where it is, what it is, and whether
// it is provisioned as manual output.
type OutputFile struct {
	Path        string            `json:"path" yaml:"path"`
	Type        string            `json:"type" yaml:"type"`
	Manual      bool              `json:"manual" yaml:"manual"`
	Annotations map[string]string `json:"annotations,omitempty" yaml:"annotations,omitempty"`
}

// Annotate sets a provenance annotation on the file.
func (f *OutputFile) Annotate(key, value string) {
	if f.Annotations == nil {
		f.Annotations = make(map[string]string)
	}
	f.Annotations[key] = value
}
