package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		input TEXT NOT NULL,
		success INTEGER NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		result TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_mode ON runs(mode);
`

// SQLiteStore keeps runs in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode so readers don't block the writer
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save inserts the record, replacing any earlier record with the same ID
func (s *SQLiteStore) Save(ctx context.Context, record *RunRecord) error {
	if record == nil {
		return errors.New("record is required")
	}
	if err := validateID(record.ID); err != nil {
		return err
	}

	result := string(record.Result)
	if result == "" {
		result = "null"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, mode, input, success, error_kind, error, started_at, duration_ns, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			input = excluded.input,
			success = excluded.success,
			error_kind = excluded.error_kind,
			error = excluded.error,
			started_at = excluded.started_at,
			duration_ns = excluded.duration_ns,
			result = excluded.result
	`, record.ID, record.Mode, record.Input, record.Success, record.ErrorKind, record.Error,
		record.StartedAt.UnixNano(), int64(record.Duration), result)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Get retrieves a single run
func (s *SQLiteStore) Get(ctx context.Context, id string) (*RunRecord, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, input, success, error_kind, error, started_at, duration_ns, result
		FROM runs WHERE id = ?
	`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return record, nil
}

// List returns persisted runs, newest first
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, input, success, error_kind, error, started_at, duration_ns, result
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Delete removes the run row
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*RunRecord, error) {
	var (
		record     RunRecord
		startedAt  int64
		durationNS int64
		result     string
	)
	err := sc.Scan(&record.ID, &record.Mode, &record.Input, &record.Success,
		&record.ErrorKind, &record.Error, &startedAt, &durationNS, &result)
	if err != nil {
		return nil, err
	}
	record.StartedAt = time.Unix(0, startedAt)
	record.Duration = time.Duration(durationNS)
	record.Result = []byte(result)
	return &record, nil
}
