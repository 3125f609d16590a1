package history

import (
	"context"
	"fmt"
	"time"
)

// RecordRun stores one task run outcome.
func (s *SQLiteStore) RecordRun(ctx context.Context, rec RunRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cancelled := 0
	if rec.Cancelled {
		cancelled = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (session_id, task_id, run_id, status_code, cancelled, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.SessionID, rec.TaskID, rec.RunID, rec.StatusCode, cancelled, rec.Error, rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns a session's runs in finish order.
func (s *SQLiteStore) ListRuns(ctx context.Context, sessionID string) ([]RunRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, task_id, run_id, status_code, cancelled, error, duration_ms, finished_at
		FROM runs
		WHERE session_id = ?
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var cancelled int
		var durationMS int64
		if err := rows.Scan(&rec.SessionID, &rec.TaskID, &rec.RunID, &rec.StatusCode,
			&cancelled, &rec.Error, &durationMS, &rec.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Cancelled = cancelled != 0
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}
