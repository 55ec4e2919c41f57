package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/me/cnvkit/internal/store"
	"github.com/me/cnvkit/pkg/model"
)

// runSource is where status, list and logs read runs from: the local
// database or a status server.
type runSource interface {
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error)
	TaskLogs(ctx context.Context, runID, stage string) (*taskLog, error)
}

// taskLog is the captured output of one task.
type taskLog struct {
	TaskID   string          `json:"task_id"`
	Stage    string          `json:"stage"`
	State    model.TaskState `json:"state"`
	Stdout   string          `json:"stdout"`
	Stderr   string          `json:"stderr"`
	ExitCode *int            `json:"exit_code"`
}

// openSource picks the server when --server is set. The returned close
// function is always non-nil.
func openSource() (runSource, func(), error) {
	if flagServer != "" {
		return NewClient(flagServer, logger), func() {}, nil
	}
	st, err := openStore(flagDB)
	if err != nil {
		return nil, nil, err
	}
	return storeSource{st}, func() { st.Close() }, nil
}

// openStore opens and migrates the run database, creating its directory.
func openStore(path string) (*store.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	st, err := store.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(context.Background()); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

type storeSource struct {
	store.Store
}

func (s storeSource) TaskLogs(ctx context.Context, runID, stage string) (*taskLog, error) {
	tasks, err := s.ListTasksByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Stage == stage {
			return &taskLog{
				TaskID:   t.ID,
				Stage:    t.Stage,
				State:    t.State,
				Stdout:   t.Stdout,
				Stderr:   t.Stderr,
				ExitCode: t.ExitCode,
			}, nil
		}
	}
	return nil, nil
}
