package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// BeginSession records a new wizard session.
func (s *SQLiteStore) BeginSession(ctx context.Context, sessionID, flowID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, flow_id, status)
		VALUES (?, ?, 'active')
	`, sessionID, flowID)
	if err != nil {
		return fmt.Errorf("failed to begin session: %w", err)
	}
	return nil
}

// FinishSession marks a session completed or abandoned.
func (s *SQLiteStore) FinishSession(ctx context.Context, sessionID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET status = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, status, sessionID)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no session %q to finish", sessionID)
	}
	return nil
}

// SaveAnswers upserts one step's answers. Re-submitting a step (after a
// reload, say) overwrites its previous values.
func (s *SQLiteStore) SaveAnswers(ctx context.Context, sessionID, stepID string, values map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for widgetID, value := range values {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO answers (session_id, step_id, widget_id, value)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(session_id, widget_id) DO UPDATE SET
				step_id = excluded.step_id,
				value = excluded.value,
				recorded_at = CURRENT_TIMESTAMP
		`, sessionID, stepID, widgetID, value)
		if err != nil {
			return fmt.Errorf("failed to save answer %q: %w", widgetID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAnswers returns every answer recorded for a session, keyed by widget.
func (s *SQLiteStore) GetAnswers(ctx context.Context, sessionID string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT widget_id, value FROM answers WHERE session_id = ?
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var widgetID, value string
		if err := rows.Scan(&widgetID, &value); err != nil {
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		values[widgetID] = value
	}
	return values, rows.Err()
}

// LastAnswers returns the answers from the most recently completed session
// of a flow, or an empty map when none exists.
func (s *SQLiteStore) LastAnswers(ctx context.Context, flowID string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var sessionID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM sessions
		WHERE flow_id = ? AND status = 'completed'
		ORDER BY finished_at DESC
		LIMIT 1
	`, flowID).Scan(&sessionID)
	if err == sql.ErrNoRows {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last session: %w", err)
	}

	return s.GetAnswers(ctx, sessionID)
}
