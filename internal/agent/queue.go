package agent

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fieldclock/server/internal/models"
)

// Queue is the durable on-device operation queue. Operations survive process
// restarts; the event ID is the primary key, so enqueueing the same event
// twice is a no-op.
type Queue struct {
	db *sql.DB
}

// OpenQueue opens (or creates) the queue database at the given path
func OpenQueue(path string) (*Queue, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	q := &Queue{db: db}
	if err := q.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pending_operations (
		event_id TEXT PRIMARY KEY,
		operation_kind TEXT NOT NULL,
		job_site_id TEXT,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		accuracy_meters REAL,
		owner_worker_id TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_attempt_at TIMESTAMP,
		last_error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_pending_operations_status ON pending_operations(status, created_at);
	`
	_, err := q.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create queue schema: %w", err)
	}
	return nil
}

// Close closes the queue database
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue adds an operation to the queue. Returns false when an operation
// with the same event ID is already queued.
func (q *Queue) Enqueue(ctx context.Context, op *models.PendingOperation) (bool, error) {
	if err := op.Validate(); err != nil {
		return false, err
	}

	result, err := q.db.ExecContext(ctx, `
		INSERT INTO pending_operations
			(event_id, operation_kind, job_site_id, lat, lng, accuracy_meters, owner_worker_id, created_at, status, retry_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0)
		ON CONFLICT (event_id) DO NOTHING
	`, op.EventID, op.OperationKind, nullString(op.JobSiteID), op.Lat, op.Lng,
		nullFloat(op.AccuracyMeters), op.OwnerWorkerID, op.CreatedAt, models.OpStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue operation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Get returns the queued operation with the given event ID, or nil
func (q *Queue) Get(ctx context.Context, eventID string) (*models.PendingOperation, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT event_id, operation_kind, job_site_id, lat, lng, accuracy_meters,
		       owner_worker_id, created_at, status, retry_count, last_attempt_at, last_error
		FROM pending_operations WHERE event_id = $1
	`, eventID)

	op, err := scanOperation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return op, err
}

// List returns all queued operations, oldest first
func (q *Queue) List(ctx context.Context) ([]*models.PendingOperation, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT event_id, operation_kind, job_site_id, lat, lng, accuracy_meters,
		       owner_worker_id, created_at, status, retry_count, last_attempt_at, last_error
		FROM pending_operations ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectOperations(rows)
}

// ListReady returns pending operations whose backoff delay has elapsed,
// oldest first. Operations marked needs_attention are excluded.
func (q *Queue) ListReady(ctx context.Context, now time.Time) ([]*models.PendingOperation, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT event_id, operation_kind, job_site_id, lat, lng, accuracy_meters,
		       owner_worker_id, created_at, status, retry_count, last_attempt_at, last_error
		FROM pending_operations
		WHERE status = $1
		ORDER BY created_at ASC
	`, models.OpStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ops, err := collectOperations(rows)
	if err != nil {
		return nil, err
	}

	ready := make([]*models.PendingOperation, 0, len(ops))
	for _, op := range ops {
		if op.LastAttemptAt == nil || !now.Before(NextAttemptAt(*op.LastAttemptAt, op.RetryCount)) {
			ready = append(ready, op)
		}
	}
	return ready, nil
}

// RecordSuccess removes an acknowledged operation from the queue
func (q *Queue) RecordSuccess(ctx context.Context, eventID string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM pending_operations WHERE event_id = $1`, eventID)
	return err
}

// RecordFailure increments the retry count and stores the error so the next
// attempt waits out the backoff delay
func (q *Queue) RecordFailure(ctx context.Context, eventID, errMsg string, now time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE pending_operations
		SET retry_count = retry_count + 1, last_attempt_at = $1, last_error = $2
		WHERE event_id = $3
	`, now, errMsg, eventID)
	return err
}

// MarkNeedsAttention parks an operation that will never succeed without
// user action. It stays visible in the queue but is skipped by the drain.
func (q *Queue) MarkNeedsAttention(ctx context.Context, eventID, reason string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE pending_operations
		SET status = $1, last_error = $2
		WHERE event_id = $3
	`, models.OpStatusNeedsAttention, reason, eventID)
	return err
}

// Cancel removes a queued operation that has not been sent. Returns false
// when no operation with the event ID exists.
func (q *Queue) Cancel(ctx context.Context, eventID string) (bool, error) {
	result, err := q.db.ExecContext(ctx,
		`DELETE FROM pending_operations WHERE event_id = $1`, eventID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// Count returns the number of queued operations by status
func (q *Queue) Count(ctx context.Context) (pending, needsAttention int, err error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM pending_operations GROUP BY status`)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return 0, 0, err
		}
		switch status {
		case models.OpStatusPending:
			pending = count
		case models.OpStatusNeedsAttention:
			needsAttention = count
		}
	}
	return pending, needsAttention, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row rowScanner) (*models.PendingOperation, error) {
	var op models.PendingOperation
	var jobSiteID, lastError sql.NullString
	var accuracy sql.NullFloat64
	var lastAttempt sql.NullTime

	err := row.Scan(&op.EventID, &op.OperationKind, &jobSiteID, &op.Lat, &op.Lng,
		&accuracy, &op.OwnerWorkerID, &op.CreatedAt, &op.Status,
		&op.RetryCount, &lastAttempt, &lastError)
	if err != nil {
		return nil, err
	}

	if jobSiteID.Valid {
		op.JobSiteID = jobSiteID.String
	}
	if accuracy.Valid {
		op.AccuracyMeters = &accuracy.Float64
	}
	if lastAttempt.Valid {
		t := lastAttempt.Time
		op.LastAttemptAt = &t
	}
	if lastError.Valid {
		s := lastError.String
		op.LastError = &s
	}
	return &op, nil
}

func collectOperations(rows *sql.Rows) ([]*models.PendingOperation, error) {
	var ops []*models.PendingOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
