package model

import (
	"fmt"
	"time"
)

// Response wraps every status API reply. Data is set on success, Error on
// failure; Pagination only accompanies run listings.
type Response struct {
	Status     string      `json:"status"`
	RequestID  string      `json:"request_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       any         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Error      *APIError   `json:"error"`
}

// Pagination describes the page of runs returned.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// Run listing page sizes.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListOptions selects a page of runs, optionally in one state.
type ListOptions struct {
	Limit  int
	Offset int
	State  RunState
}

func DefaultListOptions() ListOptions {
	return ListOptions{Limit: DefaultListLimit}
}

// Clamp brings Limit into [1, MaxListLimit] and Offset to at least 0.
func (o *ListOptions) Clamp() {
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultListLimit
	case o.Limit > MaxListLimit:
		o.Limit = MaxListLimit
	}
	o.Offset = max(o.Offset, 0)
}

// ParseRunState accepts the name of a run state, as used by list filters.
func ParseRunState(s string) (RunState, error) {
	switch st := RunState(s); st {
	case RunStatePending, RunStateRunning, RunStateCompleted, RunStateFailed, RunStateCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown run state %q", s)
}
