package repository

import (
	"database/sql"

	_ "github.com/lib/pq"
)

// NewPostgresDB creates and initializes a PostgreSQL database connection
func NewPostgresDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		full_name TEXT NOT NULL,
		api_key TEXT NOT NULL DEFAULT '',
		api_key_hash TEXT UNIQUE NOT NULL,
		pin_hash TEXT,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_workers_api_key_hash ON workers(api_key_hash);
	CREATE INDEX IF NOT EXISTS idx_workers_email ON workers(email);

	CREATE TABLE IF NOT EXISTS job_sites (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		center_lat DOUBLE PRECISION NOT NULL,
		center_lng DOUBLE PRECISION NOT NULL,
		radius_meters DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS job_assignments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id) ON DELETE CASCADE,
		job_site_id TEXT NOT NULL REFERENCES job_sites(id) ON DELETE CASCADE,
		assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE(worker_id, job_site_id)
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_worker ON job_assignments(worker_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_site ON job_assignments(job_site_id);

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		job_site_id TEXT NOT NULL REFERENCES job_sites(id),
		status TEXT NOT NULL DEFAULT 'open',
		clock_in_at TIMESTAMP NOT NULL,
		clock_in_event_id TEXT NOT NULL,
		clock_in_lat DOUBLE PRECISION NOT NULL,
		clock_in_lng DOUBLE PRECISION NOT NULL,
		clock_in_accuracy DOUBLE PRECISION,
		clock_out_at TIMESTAMP,
		clock_out_event_id TEXT,
		clock_out_lat DOUBLE PRECISION,
		clock_out_lng DOUBLE PRECISION,
		clock_out_accuracy DOUBLE PRECISION,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_entries_worker ON time_entries(worker_id);
	CREATE INDEX IF NOT EXISTS idx_entries_worker_status ON time_entries(worker_id, status);
	CREATE INDEX IF NOT EXISTS idx_entries_site ON time_entries(job_site_id);

	CREATE TABLE IF NOT EXISTS commit_records (
		event_id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		operation_kind TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		result_json TEXT NOT NULL,
		committed_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_commits_worker ON commit_records(worker_id);
	CREATE INDEX IF NOT EXISTS idx_commits_committed_at ON commit_records(committed_at);
	`

	_, err := db.Exec(schema)
	return err
}
