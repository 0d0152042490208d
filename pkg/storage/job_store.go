package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dougsko/qamd/pkg/logging"
	"github.com/dougsko/qamd/pkg/protocol"
	_ "github.com/mattn/go-sqlite3"
)

// JobStore keeps the history of codec runs in SQLite
type JobStore struct {
	db      *sql.DB
	dbPath  string
	maxJobs int
}

// NewJobStore creates a new job store with SQLite backend. maxJobs <= 0
// keeps every job.
func NewJobStore(dbPath string, maxJobs int) (*JobStore, error) {
	store := &JobStore{
		dbPath:  dbPath,
		maxJobs: maxJobs,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize job store: %w", err)
	}

	return store, nil
}

// initialize sets up the database connection and creates tables
func (js *JobStore) initialize() error {
	if js.dbPath == "" {
		js.dbPath = "./qamd.db"
	}

	if err := os.MkdirAll(filepath.Dir(js.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := js.dbPath + "?_busy_timeout=10000&_journal_mode=WAL"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	js.db = db

	if err := js.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}

	logging.Info(logging.ComponentStorage, "job store initialized", logging.Fields{
		"path":     js.dbPath,
		"max_jobs": js.maxJobs,
	})
	return nil
}

// createTables creates the database schema
func (js *JobStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		mode TEXT NOT NULL CHECK (mode IN ('modulate', 'demodulate')),
		source TEXT NOT NULL DEFAULT '',
		bits_per_symbol INTEGER NOT NULL,
		snr_db REAL,
		input_bytes INTEGER NOT NULL DEFAULT 0,
		symbols INTEGER NOT NULL DEFAULT 0,
		output_bytes INTEGER NOT NULL DEFAULT 0,
		compared BOOLEAN NOT NULL DEFAULT FALSE,
		mismatches INTEGER NOT NULL DEFAULT 0,
		match_percentage REAL NOT NULL DEFAULT 0.0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'ok',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_timestamp ON jobs(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_jobs_mode ON jobs(mode);
	`

	_, err := js.db.Exec(schema)
	return err
}

// RecordJob stores a job and returns its ID
func (js *JobStore) RecordJob(job protocol.Job) (int64, error) {
	if job.Timestamp.IsZero() {
		job.Timestamp = time.Now()
	}
	if job.Status == "" {
		job.Status = protocol.StatusOK
	}

	tx, err := js.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO jobs (
			timestamp, mode, source, bits_per_symbol, snr_db,
			input_bytes, symbols, output_bytes, compared, mismatches,
			match_percentage, duration_ms, status, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var snr sql.NullFloat64
	if job.SNRDB != nil {
		snr = sql.NullFloat64{Float64: *job.SNRDB, Valid: true}
	}

	result, err := tx.Exec(query,
		job.Timestamp.UTC(), job.Mode, job.Source, job.BitsPerSymbol, snr,
		job.InputBytes, job.Symbols, job.OutputBytes, job.Compared, job.Mismatches,
		job.MatchPercentage, job.DurationMS, job.Status, job.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get job ID: %w", err)
	}

	if err := js.cleanupOldJobs(tx); err != nil {
		logging.Warn(logging.ComponentStorage, fmt.Sprintf("failed to cleanup old jobs: %v", err))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit job: %w", err)
	}
	return id, nil
}

// cleanupOldJobs removes the oldest jobs beyond the maximum
func (js *JobStore) cleanupOldJobs(tx *sql.Tx) error {
	if js.maxJobs <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM jobs").Scan(&count); err != nil {
		return err
	}
	if count <= js.maxJobs {
		return nil
	}

	query := `
		DELETE FROM jobs
		WHERE id IN (
			SELECT id FROM jobs
			ORDER BY timestamp ASC, id ASC
			LIMIT ?
		)
	`
	_, err := tx.Exec(query, count-js.maxJobs)
	return err
}

// Close closes the database connection
func (js *JobStore) Close() error {
	if js.db != nil {
		return js.db.Close()
	}
	return nil
}
