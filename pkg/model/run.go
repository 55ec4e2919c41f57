package model

import "time"

// Run is one invocation of the copy-number pipeline for a single sample.
type Run struct {
	ID           string            `json:"id"`
	SampleName   string            `json:"sample_name"`
	State        RunState          `json:"state"`
	WorkDir      string            `json:"work_dir"`
	OutputDir    string            `json:"output_dir"`
	ProvisionTo  string            `json:"provision_to,omitempty"`
	Config       map[string]string `json:"config,omitempty"`
	Error        string            `json:"error,omitempty"`
	Tasks        []Task            `json:"tasks,omitempty"`
	Deliverables []Deliverable     `json:"deliverables,omitempty"`
	TaskSummary  TaskSummary       `json:"task_summary,omitempty"` // Computed field, not stored
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at"`
}

// Transition moves the run to next, rejecting moves the state machine forbids.
func (r *Run) Transition(next RunState) error {
	if !r.State.CanTransitionTo(next) {
		return &InvalidTransitionError{Entity: "Run", ID: r.ID, From: r.State.String(), To: next.String()}
	}
	r.State = next
	return nil
}

// TaskSummary provides an aggregate count of task states within a Run.
type TaskSummary struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Running int `json:"running"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ComputeTaskSummary calculates the TaskSummary from a slice of Tasks.
func ComputeTaskSummary(tasks []Task) TaskSummary {
	s := TaskSummary{Total: len(tasks)}
	for _, t := range tasks {
		switch t.State {
		case TaskStatePending:
			s.Pending++
		case TaskStateRunning:
			s.Running++
		case TaskStateSuccess:
			s.Success++
		case TaskStateFailed:
			s.Failed++
		case TaskStateSkipped:
			s.Skipped++
		}
	}
	return s
}
