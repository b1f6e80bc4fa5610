package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldclock/server/internal/models"
)

// CommitFunc performs the domain mutation for an event inside the commit
// transaction. It returns the affected entry id and the result payload that
// will be stored in the ledger and replayed to duplicate submissions.
type CommitFunc func(tx *sql.Tx) (entryID string, resultJSON string, err error)

// CommitRecordRepository implements CommitRecordRepo for PostgreSQL/SQLite
type CommitRecordRepository struct {
	db DB
}

// NewCommitRecordRepository creates a new CommitRecordRepository
func NewCommitRecordRepository(db DB) *CommitRecordRepository {
	return &CommitRecordRepository{db: db}
}

const commitColumns = `event_id, worker_id, operation_kind, entry_id, result_json, committed_at`

func scanCommit(row *sql.Row) (*models.CommitRecord, error) {
	var rec models.CommitRecord
	err := row.Scan(
		&rec.EventID, &rec.WorkerID, &rec.OperationKind,
		&rec.EntryID, &rec.ResultJSON, &rec.CommittedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Get returns the commit record for an event, or nil
func (r *CommitRecordRepository) Get(ctx context.Context, eventID string) (*models.CommitRecord, error) {
	query := `SELECT ` + commitColumns + ` FROM commit_records WHERE event_id = $1`
	return scanCommit(r.db.QueryRowContext(ctx, query, eventID))
}

// CommitEvent performs the idempotent commit for an event. Within a single
// transaction it checks the ledger for the event id; if a record exists the
// stored result is returned unchanged and mutate is never called. Otherwise
// mutate runs and the commit record is written atomically with it.
//
// Concurrent duplicate submissions of the same event id are serialized by
// the ledger's primary key: only one transaction's insert lands, the loser
// is rolled back and observes the winner's record.
func (r *CommitRecordRepository) CommitEvent(ctx context.Context, eventID, workerID, operationKind string, mutate CommitFunc) (*models.CommitRecord, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin commit transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanCommit(tx.QueryRow(
		`SELECT `+commitColumns+` FROM commit_records WHERE event_id = $1`, eventID))
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	entryID, resultJSON, err := mutate(tx)
	if err != nil {
		return nil, false, err
	}

	record := &models.CommitRecord{
		EventID:       eventID,
		WorkerID:      workerID,
		OperationKind: operationKind,
		EntryID:       entryID,
		ResultJSON:    resultJSON,
		CommittedAt:   time.Now().UTC(),
	}

	// DO NOTHING instead of failing on the primary key lets us detect a
	// concurrent winner without driver-specific error matching.
	result, err := tx.Exec(
		`INSERT INTO commit_records (`+commitColumns+`) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (event_id) DO NOTHING`,
		record.EventID, record.WorkerID, record.OperationKind,
		record.EntryID, record.ResultJSON, record.CommittedAt,
	)
	if err != nil {
		return nil, false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}
	if rows == 0 {
		// A concurrent submission committed first. Drop our mutation and
		// return the winner's result.
		tx.Rollback()
		winner, err := r.Get(ctx, eventID)
		if err != nil {
			return nil, false, err
		}
		if winner == nil {
			return nil, false, fmt.Errorf("commit record for event %s vanished", eventID)
		}
		return winner, true, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit event %s: %w", eventID, err)
	}
	return record, false, nil
}

// DeleteOlderThan purges ledger entries committed before the cutoff. Safe
// once the cutoff is at least the replay TTL in the past: expired events can
// never be admitted again, so their records are unreachable.
func (r *CommitRecordRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM commit_records WHERE committed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}
