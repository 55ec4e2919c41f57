package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/cnvkit/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// timeFormat has a fixed-width fraction so stored timestamps sort
// lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeFormat)
	return &v
}

func parseTime(v *string) *time.Time {
	if v == nil {
		return nil
	}
	t, _ := time.Parse(time.RFC3339Nano, *v)
	return &t
}

// --- Run CRUD ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, sample_name, state, work_dir, output_dir, provision_to, config, error, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SampleName, string(run.State), run.WorkDir, run.OutputDir, run.ProvisionTo,
		string(configJSON), run.Error,
		run.CreatedAt.UTC().Format(timeFormat), formatTime(run.CompletedAt),
	)
	return err
}

const runColumns = `id, sample_name, state, work_dir, output_dir, provision_to, config, error, created_at, completed_at`

// GetRun returns the run with its tasks and deliverables, or nil if no run
// has that ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	run, err := s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil || run == nil {
		return nil, err
	}

	tasks, err := s.ListTasksByRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	for _, t := range tasks {
		run.Tasks = append(run.Tasks, *t)
	}
	run.TaskSummary = model.ComputeTaskSummary(run.Tasks)

	deliverables, err := s.ListDeliverablesByRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list deliverables: %w", err)
	}
	for _, d := range deliverables {
		run.Deliverables = append(run.Deliverables, *d)
	}
	return run, nil
}

// ListRuns returns runs newest first together with the total matching count.
func (s *SQLiteStore) ListRuns(ctx context.Context, opts model.ListOptions) ([]*model.Run, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "limit", opts.Limit, "offset", opts.Offset, "state", opts.State)
	opts.Clamp()

	where, args := "", []any{}
	if opts.State != "" {
		where = " WHERE state = ?"
		args = append(args, opts.State)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	rows.Close()

	// Summaries need a second query per run; the page is at most 100 rows.
	for _, run := range runs {
		tasks, err := s.ListTasksByRun(ctx, run.ID)
		if err != nil {
			return nil, 0, err
		}
		vals := make([]model.Task, len(tasks))
		for i, t := range tasks {
			vals[i] = *t
		}
		run.TaskSummary = model.ComputeTaskSummary(vals)
	}
	return runs, total, nil
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.Run) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", run.ID, "state", run.State)

	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state=?, error=?, completed_at=? WHERE id=?`,
		string(run.State), run.Error, formatTime(run.CompletedAt), run.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// --- Task operations ---

func (s *SQLiteStore) CreateTask(ctx context.Context, task *model.Task) error {
	s.logger.Debug("sql", "op", "insert", "table", "tasks", "id", task.ID)

	commandJSON, err := json.Marshal(task.Command)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	dependsOnJSON, err := json.Marshal(task.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, run_id, stage, state, command, depends_on, memory_mb, queue,
		 stdout, stderr, exit_code, error, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.RunID, task.Stage, string(task.State),
		string(commandJSON), string(dependsOnJSON), task.MemoryMB, task.Queue,
		task.Stdout, task.Stderr, task.ExitCode, task.Error,
		task.CreatedAt.UTC().Format(timeFormat), formatTime(task.StartedAt), formatTime(task.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, task *model.Task) error {
	s.logger.Debug("sql", "op", "update", "table", "tasks", "id", task.ID, "state", task.State)

	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET state=?, stdout=?, stderr=?, exit_code=?, error=?,
		 started_at=?, completed_at=? WHERE id=?`,
		string(task.State), task.Stdout, task.Stderr, task.ExitCode, task.Error,
		formatTime(task.StartedAt), formatTime(task.CompletedAt), task.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %s not found", task.ID)
	}
	return nil
}

// ListTasksByRun returns the run's tasks in creation order, which is
// pipeline order.
func (s *SQLiteStore) ListTasksByRun(ctx context.Context, runID string) ([]*model.Task, error) {
	s.logger.Debug("sql", "op", "list", "table", "tasks", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, stage, state, command, depends_on, memory_mb, queue,
		 stdout, stderr, exit_code, error, created_at, started_at, completed_at
		 FROM tasks WHERE run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		var task model.Task
		var commandJSON, dependsOnJSON, state, createdAt string
		var startedAt, completedAt *string

		if err := rows.Scan(
			&task.ID, &task.RunID, &task.Stage, &state,
			&commandJSON, &dependsOnJSON, &task.MemoryMB, &task.Queue,
			&task.Stdout, &task.Stderr, &task.ExitCode, &task.Error,
			&createdAt, &startedAt, &completedAt,
		); err != nil {
			return nil, err
		}

		task.State = model.TaskState(state)
		json.Unmarshal([]byte(commandJSON), &task.Command)
		json.Unmarshal([]byte(dependsOnJSON), &task.DependsOn)
		task.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		task.StartedAt = parseTime(startedAt)
		task.CompletedAt = parseTime(completedAt)

		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// --- Deliverables ---

func (s *SQLiteStore) CreateDeliverable(ctx context.Context, d *model.Deliverable) error {
	s.logger.Debug("sql", "op", "insert", "table", "deliverables", "id", d.ID)

	annotationsJSON, err := json.Marshal(d.Annotations)
	if err != nil {
		return fmt.Errorf("marshal annotations: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deliverables (id, run_id, stage, path, type, manual, annotations, destination, size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.RunID, d.Stage, d.Path, d.Type, d.Manual,
		string(annotationsJSON), d.Destination, d.SizeBytes,
		d.CreatedAt.UTC().Format(timeFormat),
	)
	return err
}

func (s *SQLiteStore) ListDeliverablesByRun(ctx context.Context, runID string) ([]*model.Deliverable, error) {
	s.logger.Debug("sql", "op", "list", "table", "deliverables", "run_id", runID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, stage, path, type, manual, annotations, destination, size_bytes, created_at
		 FROM deliverables WHERE run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Deliverable
	for rows.Next() {
		var d model.Deliverable
		var annotationsJSON, createdAt string
		if err := rows.Scan(&d.ID, &d.RunID, &d.Stage, &d.Path, &d.Type, &d.Manual,
			&annotationsJSON, &d.Destination, &d.SizeBytes, &createdAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(annotationsJSON), &d.Annotations)
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanRun(row scanner) (*model.Run, error) {
	var run model.Run
	var state, configJSON, createdAt string
	var completedAt *string

	err := row.Scan(&run.ID, &run.SampleName, &state, &run.WorkDir, &run.OutputDir, &run.ProvisionTo,
		&configJSON, &run.Error, &createdAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.State = model.RunState(state)
	json.Unmarshal([]byte(configJSON), &run.Config)
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.CompletedAt = parseTime(completedAt)
	return &run, nil
}
