// Package runstore persists run history to SQLite so past experiments can be
// inspected after the fact. The orchestrator treats it as best effort.
package runstore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tkoenig/watchlab/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	ordinal          INTEGER NOT NULL,
	origin_ms        INTEGER NOT NULL,
	status           TEXT NOT NULL,
	error            TEXT NOT NULL DEFAULT '',
	capture_path     TEXT NOT NULL DEFAULT '',
	event_log_path   TEXT NOT NULL DEFAULT '',
	traffic_log_path TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMP NOT NULL,
	finished_at      TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts or updates a run record
func (s *Store) SaveRun(run *domain.Run) error {
	var finished any
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, ordinal, origin_ms, status, error, capture_path, event_log_path, traffic_log_path, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			finished_at = excluded.finished_at
	`,
		run.ID,
		run.Ordinal,
		run.Origin,
		string(run.Status),
		run.Error,
		run.Artifacts.CapturePath,
		run.Artifacts.EventLogPath,
		run.Artifacts.TrafficLogPath,
		run.StartedAt,
		finished,
	)
	return err
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(id string) (*domain.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, ordinal, origin_ms, status, error, capture_path, event_log_path, traffic_log_path, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// ListRecent returns the most recently started runs, newest first
func (s *Store) ListRecent(limit int) ([]*domain.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, ordinal, origin_ms, status, error, capture_path, event_log_path, traffic_log_path, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var (
		run      domain.Run
		status   string
		finished sql.NullTime
	)
	err := row.Scan(
		&run.ID,
		&run.Ordinal,
		&run.Origin,
		&status,
		&run.Error,
		&run.Artifacts.CapturePath,
		&run.Artifacts.EventLogPath,
		&run.Artifacts.TrafficLogPath,
		&run.StartedAt,
		&finished,
	)
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	if finished.Valid {
		t := finished.Time.In(time.UTC)
		run.FinishedAt = &t
	}
	return &run, nil
}
