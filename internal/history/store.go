// Package history keeps a sqlite ledger of export jobs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned by Get and Delete for unknown job ids.
var ErrNotFound = errors.New("history: job not found")

// Job outcomes.
const (
	StatusReady  = "ready"
	StatusFailed = "failed"
)

// Record is one finished export job, successful or not.
type Record struct {
	JobID      string
	Title      string
	AudioPath  string
	OutputPath string // empty on failure
	Status     string // StatusReady or StatusFailed
	Stage      string // stage the job failed in, empty on success
	Error      string
	Frames     int
	Duration   float64 // seconds of audio
	StartedAt  time.Time
	FinishedAt time.Time
}

// Elapsed is the wall time the job took.
func (r Record) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS exports (
		job_id      TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		audio_path  TEXT NOT NULL,
		output_path TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		stage       TEXT NOT NULL DEFAULT '',
		error       TEXT NOT NULL DEFAULT '',
		frames      INTEGER NOT NULL DEFAULT 0,
		duration    REAL NOT NULL DEFAULT 0,
		started_at  INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS exports_finished ON exports (finished_at);
	`

// Store is the sqlite-backed ledger.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Open opens (or creates) the ledger at path. A nil logger uses the
// standard logger.
func Open(path string, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create exports table: %w", err)
	}
	logger.Printf("History: database ready at %s", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add records a job. Recording the same job id twice replaces the entry.
func (s *Store) Add(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO exports
			(job_id, title, audio_path, output_path, status, stage, error, frames, duration, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.JobID, r.Title, r.AudioPath, r.OutputPath, r.Status, r.Stage, r.Error,
		r.Frames, r.Duration, r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record job %s: %w", r.JobID, err)
	}
	return nil
}

// Get returns one job by id.
func (s *Store) Get(ctx context.Context, jobID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM exports WHERE job_id = ?`, jobID)
	r, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load job %s: %w", jobID, err)
	}
	return r, nil
}

// List returns up to limit jobs, most recently finished first. limit <= 0
// returns every job.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+columns+` FROM exports ORDER BY finished_at DESC, job_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// Delete removes one job from the ledger. The exported file is left alone.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exports WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

const columns = `job_id, title, audio_path, output_path, status, stage, error, frames, duration, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Record, error) {
	var r Record
	var started, finished int64
	err := row.Scan(&r.JobID, &r.Title, &r.AudioPath, &r.OutputPath, &r.Status, &r.Stage, &r.Error,
		&r.Frames, &r.Duration, &started, &finished)
	if err != nil {
		return Record{}, err
	}
	r.StartedAt = time.UnixMilli(started)
	r.FinishedAt = time.UnixMilli(finished)
	return r, nil
}
