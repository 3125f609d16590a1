package history

import (
	"context"
)

// initSchema creates all required tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		flow_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_flow_started
		ON sessions(flow_id, started_at);

	CREATE TABLE IF NOT EXISTS answers (
		session_id TEXT NOT NULL,
		step_id TEXT NOT NULL,
		widget_id TEXT NOT NULL,
		value TEXT NOT NULL,
		recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (session_id, widget_id),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		run_id INTEGER NOT NULL,
		status_code INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		finished_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id, finished_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
