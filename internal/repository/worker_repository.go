package repository

import (
	"context"
	"database/sql"

	"github.com/fieldclock/server/internal/models"
)

// WorkerRepository implements WorkerRepo for PostgreSQL/SQLite
type WorkerRepository struct {
	db DB
}

// NewWorkerRepository creates a new WorkerRepository
func NewWorkerRepository(db DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

const workerColumns = `id, email, full_name, api_key_hash, pin_hash, is_admin, created_at, is_active`

func scanWorker(row *sql.Row) (*models.Worker, error) {
	var worker models.Worker
	var pinHash sql.NullString
	err := row.Scan(
		&worker.ID, &worker.Email, &worker.FullName, &worker.APIKeyHash,
		&pinHash, &worker.IsAdmin, &worker.CreatedAt, &worker.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if pinHash.Valid {
		worker.PINHash = pinHash.String
	}
	return &worker, nil
}

func (r *WorkerRepository) GetByID(ctx context.Context, id string) (*models.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE id = $1`
	return scanWorker(r.db.QueryRowContext(ctx, query, id))
}

func (r *WorkerRepository) GetByEmail(ctx context.Context, email string) (*models.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE email = $1`
	return scanWorker(r.db.QueryRowContext(ctx, query, email))
}

func (r *WorkerRepository) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*models.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE api_key_hash = $1 AND is_active = true`
	return scanWorker(r.db.QueryRowContext(ctx, query, apiKeyHash))
}

func (r *WorkerRepository) GetAll(ctx context.Context) ([]*models.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*models.Worker
	for rows.Next() {
		var worker models.Worker
		var pinHash sql.NullString
		if err := rows.Scan(&worker.ID, &worker.Email, &worker.FullName, &worker.APIKeyHash,
			&pinHash, &worker.IsAdmin, &worker.CreatedAt, &worker.IsActive); err != nil {
			return nil, err
		}
		if pinHash.Valid {
			worker.PINHash = pinHash.String
		}
		workers = append(workers, &worker)
	}
	return workers, rows.Err()
}

func (r *WorkerRepository) Add(ctx context.Context, worker *models.Worker) error {
	query := `INSERT INTO workers (id, email, full_name, api_key, api_key_hash, pin_hash, is_admin, created_at, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var pinHash interface{}
	if worker.PINHash != "" {
		pinHash = worker.PINHash
	}
	_, err := r.db.ExecContext(ctx, query,
		worker.ID, worker.Email, worker.FullName, worker.APIKey, worker.APIKeyHash,
		pinHash, worker.IsAdmin, worker.CreatedAt, worker.IsActive,
	)
	return err
}

func (r *WorkerRepository) Update(ctx context.Context, worker *models.Worker) error {
	query := `UPDATE workers SET email = $2, full_name = $3, pin_hash = $4, is_admin = $5, is_active = $6
			  WHERE id = $1`

	var pinHash interface{}
	if worker.PINHash != "" {
		pinHash = worker.PINHash
	}
	_, err := r.db.ExecContext(ctx, query,
		worker.ID, worker.Email, worker.FullName, pinHash, worker.IsAdmin, worker.IsActive)
	return err
}

func (r *WorkerRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workers WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows > 0, err
}

// UpdateAPIKeyHash updates a worker's API key hash (used for key rotation)
func (r *WorkerRepository) UpdateAPIKeyHash(ctx context.Context, id, apiKeyHash string) error {
	query := `UPDATE workers SET api_key_hash = $2, api_key = '' WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, apiKeyHash)
	return err
}
