package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one submitted job's permanent trace, written when a job is
// submitted and finalized when it reaches a terminal status.
type Record struct {
	ID          int64
	InternalID  string
	EngineJobID string
	Nicename    string
	ScriptID    string
	BatchID     string
	Status      string
	Error       string
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// Store persists job history in SQLite so completed work survives daemon
// restarts.
type Store struct {
	db   *sql.DB
	path string
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS job_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    internal_id TEXT NOT NULL UNIQUE,
    engine_job_id TEXT NOT NULL DEFAULT '',
    nicename TEXT NOT NULL DEFAULT '',
    script_id TEXT NOT NULL DEFAULT '',
    batch_id TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    submitted_at TEXT NOT NULL,
    finished_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_job_history_status ON job_history(status);
CREATE INDEX IF NOT EXISTS idx_job_history_batch ON job_history(batch_id);
`

// Open initializes or connects to the history database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// RecordSubmission inserts a history row for a freshly submitted job.
// Re-recording the same internal id updates the existing row instead.
func (s *Store) RecordSubmission(ctx context.Context, rec Record) error {
	submitted := rec.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_history (internal_id, engine_job_id, nicename, script_id, batch_id, status, submitted_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(internal_id) DO UPDATE SET
            engine_job_id = excluded.engine_job_id,
            status = excluded.status`,
		rec.InternalID,
		rec.EngineJobID,
		rec.Nicename,
		rec.ScriptID,
		rec.BatchID,
		rec.Status,
		submitted.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// RecordOutcome finalizes a history row with the job's terminal status.
func (s *Store) RecordOutcome(ctx context.Context, internalID, status, errMessage string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE job_history SET status = ?, error = ?, finished_at = ? WHERE internal_id = ?`,
		status,
		errMessage,
		time.Now().UTC().Format(time.RFC3339Nano),
		internalID,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// List returns history rows, newest first, capped at limit when positive.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, internal_id, engine_job_id, nicename, script_id, batch_id, status, error, submitted_at, finished_at
              FROM job_history ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return records, nil
}

// Get returns the history row for one internal id.
func (s *Store) Get(ctx context.Context, internalID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, internal_id, engine_job_id, nicename, script_id, batch_id, status, error, submitted_at, finished_at
         FROM job_history WHERE internal_id = ?`,
		internalID,
	)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var submitted string
	var finished sql.NullString
	err := row.Scan(
		&rec.ID,
		&rec.InternalID,
		&rec.EngineJobID,
		&rec.Nicename,
		&rec.ScriptID,
		&rec.BatchID,
		&rec.Status,
		&rec.Error,
		&submitted,
		&finished,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("scan history row: %w", err)
	}
	if ts, parseErr := time.Parse(time.RFC3339Nano, submitted); parseErr == nil {
		rec.SubmittedAt = ts
	}
	if finished.Valid {
		if ts, parseErr := time.Parse(time.RFC3339Nano, finished.String); parseErr == nil {
			rec.FinishedAt = ts
		}
	}
	return rec, nil
}
