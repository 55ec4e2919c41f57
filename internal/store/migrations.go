package store

import (
	"context"
	"database/sql"
	"strings"
)

// schema contains the DDL for all tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id           TEXT PRIMARY KEY,
		sample_name  TEXT NOT NULL,
		state        TEXT NOT NULL DEFAULT 'PENDING',
		work_dir     TEXT NOT NULL,
		output_dir   TEXT NOT NULL,
		config       TEXT NOT NULL DEFAULT '{}',
		error        TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		completed_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id           TEXT PRIMARY KEY,
		run_id       TEXT NOT NULL REFERENCES runs(id),
		stage        TEXT NOT NULL,
		state        TEXT NOT NULL DEFAULT 'PENDING',
		command      TEXT NOT NULL DEFAULT '[]',
		depends_on   TEXT NOT NULL DEFAULT '[]',
		memory_mb    INTEGER NOT NULL DEFAULT 0,
		queue        TEXT NOT NULL DEFAULT '',
		stdout       TEXT NOT NULL DEFAULT '',
		stderr       TEXT NOT NULL DEFAULT '',
		exit_code    INTEGER,
		error        TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL,
		started_at   TEXT,
		completed_at TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS deliverables (
		id          TEXT PRIMARY KEY,
		run_id      TEXT NOT NULL REFERENCES runs(id),
		stage       TEXT NOT NULL,
		path        TEXT NOT NULL,
		type        TEXT NOT NULL,
		manual      INTEGER NOT NULL DEFAULT 0,
		annotations TEXT NOT NULL DEFAULT '{}',
		size_bytes  INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_sample_name ON runs(sample_name)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_run_id ON tasks(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_deliverables_run_id ON deliverables(run_id)`,
}

// alterStatements are column additions that need special handling since
// SQLite doesn't support IF NOT EXISTS for ALTER TABLE ADD COLUMN.
var alterStatements = []struct {
	table    string
	column   string
	alterSQL string
	indexSQL string // Optional index to create after column is added
}{
	{
		table:    "runs",
		column:   "provision_to",
		alterSQL: "ALTER TABLE runs ADD COLUMN provision_to TEXT NOT NULL DEFAULT ''",
	},
	{
		table:    "deliverables",
		column:   "destination",
		alterSQL: "ALTER TABLE deliverables ADD COLUMN destination TEXT NOT NULL DEFAULT ''",
		indexSQL: "CREATE INDEX IF NOT EXISTS idx_deliverables_destination ON deliverables(destination) WHERE destination != ''",
	},
}

// migrate executes all schema DDL statements, alter migrations, and post-migration indexes.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	for _, alter := range alterStatements {
		if err := addColumnIfNotExists(ctx, db, alter.table, alter.column, alter.alterSQL); err != nil {
			return err
		}
		if alter.indexSQL != "" {
			if _, err := db.ExecContext(ctx, alter.indexSQL); err != nil {
				return err
			}
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(ctx context.Context, db *sql.DB, table, column, alterSQL string) error {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if strings.EqualFold(name, column) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	_, err = db.ExecContext(ctx, alterSQL)
	return err
}
