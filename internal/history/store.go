// Package history persists wizard sessions: which flow ran, the answers
// each step produced, and the outcome of every background task run.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RunRecord is one stored task run outcome.
type RunRecord struct {
	SessionID  string
	TaskID     string
	RunID      uint64
	StatusCode int
	Cancelled  bool
	Error      string
	Duration   time.Duration
	FinishedAt time.Time
}

// Store is the persistence surface for sessions, answers, and runs.
type Store interface {
	BeginSession(ctx context.Context, sessionID, flowID string) error
	FinishSession(ctx context.Context, sessionID, status string) error

	SaveAnswers(ctx context.Context, sessionID, stepID string, values map[string]string) error
	GetAnswers(ctx context.Context, sessionID string) (map[string]string, error)

	// LastAnswers returns the answers of the most recently completed
	// session of a flow, for prefilling.
	LastAnswers(ctx context.Context, flowID string) (map[string]string, error)

	RecordRun(ctx context.Context, rec RunRecord) error
	ListRuns(ctx context.Context, sessionID string) ([]RunRecord, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed store at the given path, creating
// parent directories as needed. Enables WAL mode, foreign keys, and a busy
// timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return initStore(ctx, db)
}

// NewMemoryStore creates an in-memory store. A shared cache lets multiple
// connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	return initStore(ctx, db)
}

func initStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	// Foreign keys need the PRAGMA with modernc.org/sqlite; the connection
	// string flag is ignored.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
