package model

import "time"

// Task is the execution record of one pipeline stage within a Run.
type Task struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id"`
	Stage       string     `json:"stage"`
	State       TaskState  `json:"state"`
	Command     []string   `json:"command"`
	DependsOn   []string   `json:"depends_on,omitempty"`
	MemoryMB    int        `json:"memory_mb"`
	Queue       string     `json:"queue,omitempty"`
	Stdout      string     `json:"-"`
	Stderr      string     `json:"-"`
	ExitCode    *int       `json:"exit_code,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns how long the task ran, or zero if it never completed.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}

// Transition moves the task to next, rejecting moves the state machine forbids.
func (t *Task) Transition(next TaskState) error {
	if !t.State.CanTransitionTo(next) {
		return &InvalidTransitionError{Entity: "Task", ID: t.ID, From: t.State.String(), To: next.String()}
	}
	t.State = next
	return nil
}
