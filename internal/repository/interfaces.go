package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/fieldclock/server/internal/models"
)

// DB is the database surface repositories run over. It is satisfied by
// *sql.DB and by the traced wrapper in the observability package.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WorkerRepo defines the interface for worker account persistence
type WorkerRepo interface {
	GetByID(ctx context.Context, id string) (*models.Worker, error)
	GetByEmail(ctx context.Context, email string) (*models.Worker, error)
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*models.Worker, error)
	GetAll(ctx context.Context) ([]*models.Worker, error)
	Add(ctx context.Context, worker *models.Worker) error
	Update(ctx context.Context, worker *models.Worker) error
	UpdateAPIKeyHash(ctx context.Context, id, apiKeyHash string) error
	Delete(ctx context.Context, id string) (bool, error)
}

// JobSiteRepo defines the interface for job site and assignment persistence
type JobSiteRepo interface {
	GetByID(ctx context.Context, id string) (*models.JobSite, error)
	GetAll(ctx context.Context, activeOnly bool) ([]*models.JobSite, error)
	Add(ctx context.Context, site *models.JobSite) error
	Update(ctx context.Context, site *models.JobSite) error
	Assign(ctx context.Context, workerID, jobSiteID string) error
	Unassign(ctx context.Context, workerID, jobSiteID string) error
	IsAssigned(ctx context.Context, workerID, jobSiteID string) (bool, error)
}

// TimeEntryRepo defines the interface for time entry reads. Mutations happen
// only through CommitRecordRepo.CommitEvent so the commit ledger and the
// entry change atomically.
type TimeEntryRepo interface {
	GetByID(ctx context.Context, id string) (*models.TimeEntry, error)
	GetOpenForWorker(ctx context.Context, workerID string) (*models.TimeEntry, error)
	GetAllForWorker(ctx context.Context, workerID string, skip, take int) ([]*models.TimeEntry, int, error)
}

// CommitRecordRepo defines the idempotent commit interface. CommitEvent runs
// the lookup and the mutation in a single transaction keyed on event ID.
type CommitRecordRepo interface {
	Get(ctx context.Context, eventID string) (*models.CommitRecord, error)
	CommitEvent(ctx context.Context, eventID, workerID, operationKind string, mutate CommitFunc) (*models.CommitRecord, bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
