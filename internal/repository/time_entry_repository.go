package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldclock/server/internal/models"
)

// TimeEntryRepository implements TimeEntryRepo for PostgreSQL/SQLite
type TimeEntryRepository struct {
	db DB
}

// NewTimeEntryRepository creates a new TimeEntryRepository
func NewTimeEntryRepository(db DB) *TimeEntryRepository {
	return &TimeEntryRepository{db: db}
}

const entryColumns = `id, worker_id, job_site_id, status,
	clock_in_at, clock_in_event_id, clock_in_lat, clock_in_lng, clock_in_accuracy,
	clock_out_at, clock_out_event_id, clock_out_lat, clock_out_lng, clock_out_accuracy,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.TimeEntry, error) {
	var e models.TimeEntry
	var inAcc sql.NullFloat64
	var outAt sql.NullTime
	var outEventID sql.NullString
	var outLat, outLng, outAcc sql.NullFloat64

	err := row.Scan(
		&e.ID, &e.WorkerID, &e.JobSiteID, &e.Status,
		&e.ClockInAt, &e.ClockInEventID, &e.ClockInLat, &e.ClockInLng, &inAcc,
		&outAt, &outEventID, &outLat, &outLng, &outAcc,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if inAcc.Valid {
		e.ClockInAccuracy = &inAcc.Float64
	}
	if outAt.Valid {
		e.ClockOutAt = &outAt.Time
	}
	if outEventID.Valid {
		e.ClockOutEventID = &outEventID.String
	}
	if outLat.Valid {
		e.ClockOutLat = &outLat.Float64
	}
	if outLng.Valid {
		e.ClockOutLng = &outLng.Float64
	}
	if outAcc.Valid {
		e.ClockOutAccuracy = &outAcc.Float64
	}
	return &e, nil
}

func (r *TimeEntryRepository) GetByID(ctx context.Context, id string) (*models.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries WHERE id = $1`
	return scanEntry(r.db.QueryRowContext(ctx, query, id))
}

// GetOpenForWorker returns the worker's currently open entry, or nil
func (r *TimeEntryRepository) GetOpenForWorker(ctx context.Context, workerID string) (*models.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries
			  WHERE worker_id = $1 AND status = $2
			  ORDER BY clock_in_at DESC LIMIT 1`
	return scanEntry(r.db.QueryRowContext(ctx, query, workerID, models.EntryStatusOpen))
}

// GetAllForWorker returns the worker's entries newest first, with total count
func (r *TimeEntryRepository) GetAllForWorker(ctx context.Context, workerID string, skip, take int) ([]*models.TimeEntry, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM time_entries WHERE worker_id = $1`, workerID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + entryColumns + ` FROM time_entries
			  WHERE worker_id = $1 ORDER BY clock_in_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, workerID, take, skip)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*models.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

// GetOpenForWorkerTx reads the worker's open entry inside a transaction
func GetOpenForWorkerTx(tx *sql.Tx, workerID string) (*models.TimeEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM time_entries
			  WHERE worker_id = $1 AND status = $2
			  ORDER BY clock_in_at DESC LIMIT 1`
	return scanEntry(tx.QueryRow(query, workerID, models.EntryStatusOpen))
}

// AddEntryTx inserts a new time entry inside a transaction
func AddEntryTx(tx *sql.Tx, e *models.TimeEntry) error {
	query := `INSERT INTO time_entries (` + entryColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := tx.Exec(query,
		e.ID, e.WorkerID, e.JobSiteID, e.Status,
		e.ClockInAt, e.ClockInEventID, e.ClockInLat, e.ClockInLng, nullFloat(e.ClockInAccuracy),
		nullTime(e.ClockOutAt), nullString(e.ClockOutEventID),
		nullFloat(e.ClockOutLat), nullFloat(e.ClockOutLng), nullFloat(e.ClockOutAccuracy),
		e.CreatedAt, e.UpdatedAt,
	)
	return err
}

// CloseEntryTx records the clock-out side of an entry inside a transaction
func CloseEntryTx(tx *sql.Tx, e *models.TimeEntry) error {
	query := `UPDATE time_entries SET status = $2, clock_out_at = $3, clock_out_event_id = $4,
			  clock_out_lat = $5, clock_out_lng = $6, clock_out_accuracy = $7, updated_at = $8
			  WHERE id = $1 AND status = $9`

	result, err := tx.Exec(query,
		e.ID, e.Status, nullTime(e.ClockOutAt), nullString(e.ClockOutEventID),
		nullFloat(e.ClockOutLat), nullFloat(e.ClockOutLng), nullFloat(e.ClockOutAccuracy),
		e.UpdatedAt, models.EntryStatusOpen,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
