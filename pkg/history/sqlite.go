package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"datakite-hq/kestrel/pkg/suite"
)

// schemaVersion is the current history database schema version.
const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    suite TEXT NOT NULL,
    backend TEXT NOT NULL,
    dataset TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    duration_ms INTEGER NOT NULL,
    success BOOLEAN NOT NULL,
    success_count INTEGER NOT NULL,
    failure_count INTEGER NOT NULL,
    error_count INTEGER NOT NULL,
    report TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_suite ON runs(suite);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// SQLiteConfig contains configuration for the SQLite history store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the connection pool limit (default: 10).
	MaxOpenConns int

	// WALMode enables write-ahead logging (default: true).
	WALMode bool

	// BusyTimeout is the lock wait duration (default: 5s).
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/history.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the history database and initializes
// the schema.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, newStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "history.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("history store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return newStorageError("sqlite", "enable_wal", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return newStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return newStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return newStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return newStorageError("sqlite", "get_schema_version", err)
	}
	if version != schemaVersion {
		return newStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", schemaVersion, version))
	}
	return nil
}

// SaveRun stores one report.
func (s *SQLiteStore) SaveRun(ctx context.Context, report *suite.Report) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return newStorageError("sqlite", "marshal_report", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, suite, backend, dataset, started_at, duration_ms,
			success, success_count, failure_count, error_count, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Suite, report.Backend, report.Dataset,
		report.StartedAt, report.Duration.Milliseconds(),
		report.Success, report.SuccessCount, report.FailureCount, report.ErrorCount,
		string(payload),
	)
	if err != nil {
		return newStorageError("sqlite", "save_run", err)
	}
	return nil
}

// ListRuns returns run summaries, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, suiteName string, limit int) ([]RunSummary, error) {
	query := `
		SELECT run_id, suite, backend, dataset, started_at, duration_ms,
		       success, success_count, failure_count, error_count
		FROM runs`
	var args []any
	if suiteName != "" {
		query += " WHERE suite = ?"
		args = append(args, suiteName)
	}
	query += " ORDER BY started_at DESC, run_id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newStorageError("sqlite", "list_runs", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			sum        RunSummary
			durationMS int64
		)
		if err := rows.Scan(
			&sum.RunID, &sum.Suite, &sum.Backend, &sum.Dataset,
			&sum.StartedAt, &durationMS,
			&sum.Success, &sum.SuccessCount, &sum.FailureCount, &sum.ErrorCount,
		); err != nil {
			return nil, newStorageError("sqlite", "scan_run", err)
		}
		sum.Duration = time.Duration(durationMS) * time.Millisecond
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, newStorageError("sqlite", "list_runs", err)
	}
	return summaries, nil
}

// GetRun returns the full report for a run id.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*suite.Report, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		"SELECT report FROM runs WHERE run_id = ?", runID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, newStorageError("sqlite", "get_run", err)
	}

	var report suite.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, newStorageError("sqlite", "unmarshal_report", err)
	}
	return &report, nil
}

// PruneBefore deletes runs started before the cutoff.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff)
	if err != nil {
		return 0, newStorageError("sqlite", "prune", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, newStorageError("sqlite", "prune_rows_affected", err)
	}
	return deleted, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
