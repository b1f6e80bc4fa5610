package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB creates and initializes a SQLite database
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// WAL mode: readers don't block the single writer, better crash recovery
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	-- Workers table
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		email TEXT UNIQUE NOT NULL,
		full_name TEXT NOT NULL,
		api_key TEXT NOT NULL DEFAULT '',
		api_key_hash TEXT UNIQUE NOT NULL,
		pin_hash TEXT,
		is_admin INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_workers_api_key_hash ON workers(api_key_hash);
	CREATE INDEX IF NOT EXISTS idx_workers_email ON workers(email);

	-- Job sites (geofence policies)
	CREATE TABLE IF NOT EXISTS job_sites (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		center_lat REAL NOT NULL,
		center_lng REAL NOT NULL,
		radius_meters REAL NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	-- Worker-to-site assignments (authorization source)
	CREATE TABLE IF NOT EXISTS job_assignments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id) ON DELETE CASCADE,
		job_site_id TEXT NOT NULL REFERENCES job_sites(id) ON DELETE CASCADE,
		assigned_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_active INTEGER NOT NULL DEFAULT 1,
		UNIQUE(worker_id, job_site_id)
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_worker ON job_assignments(worker_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_site ON job_assignments(job_site_id);

	-- Time entries (the authoritative store)
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		job_site_id TEXT NOT NULL REFERENCES job_sites(id),
		status TEXT NOT NULL DEFAULT 'open',
		clock_in_at DATETIME NOT NULL,
		clock_in_event_id TEXT NOT NULL,
		clock_in_lat REAL NOT NULL,
		clock_in_lng REAL NOT NULL,
		clock_in_accuracy REAL,
		clock_out_at DATETIME,
		clock_out_event_id TEXT,
		clock_out_lat REAL,
		clock_out_lng REAL,
		clock_out_accuracy REAL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_worker ON time_entries(worker_id);
	CREATE INDEX IF NOT EXISTS idx_entries_worker_status ON time_entries(worker_id, status);
	CREATE INDEX IF NOT EXISTS idx_entries_site ON time_entries(job_site_id);

	-- Idempotency ledger: one row per admitted event, written atomically
	-- with the time entry mutation
	CREATE TABLE IF NOT EXISTS commit_records (
		event_id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL REFERENCES workers(id),
		operation_kind TEXT NOT NULL,
		entry_id TEXT NOT NULL,
		result_json TEXT NOT NULL,
		committed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_commits_worker ON commit_records(worker_id);
	CREATE INDEX IF NOT EXISTS idx_commits_committed_at ON commit_records(committed_at);
	`

	_, err := db.Exec(schema)
	return err
}
