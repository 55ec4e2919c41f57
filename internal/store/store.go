package store

import (
	"context"

	"github.com/me/cnvkit/pkg/model"
)

// Store defines the persistence layer for pipeline runs.
type Store interface {
	// Run CRUD
	CreateRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	UpdateRun(ctx context.Context, run *model.Run) error

	// Task operations
	CreateTask(ctx context.Context, task *model.Task) error
	UpdateTask(ctx context.Context, task *model.Task) error
	ListTasksByRun(ctx context.Context, runID string) ([]*model.Task, error)

	// Deliverables
	CreateDeliverable(ctx context.Context, d *model.Deliverable) error
	ListDeliverablesByRun(ctx context.Context, runID string) ([]*model.Deliverable, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
