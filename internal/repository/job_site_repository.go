package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/fieldclock/server/internal/models"
)

// JobSiteRepository implements JobSiteRepo for PostgreSQL/SQLite
type JobSiteRepository struct {
	db DB
}

// NewJobSiteRepository creates a new JobSiteRepository
func NewJobSiteRepository(db DB) *JobSiteRepository {
	return &JobSiteRepository{db: db}
}

const siteColumns = `id, name, address, center_lat, center_lng, radius_meters, created_at, is_active`

func scanSite(row *sql.Row) (*models.JobSite, error) {
	var site models.JobSite
	var address sql.NullString
	err := row.Scan(
		&site.ID, &site.Name, &address, &site.CenterLat, &site.CenterLng,
		&site.RadiusMeters, &site.CreatedAt, &site.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if address.Valid {
		site.Address = address.String
	}
	return &site, nil
}

func (r *JobSiteRepository) GetByID(ctx context.Context, id string) (*models.JobSite, error) {
	query := `SELECT ` + siteColumns + ` FROM job_sites WHERE id = $1`
	return scanSite(r.db.QueryRowContext(ctx, query, id))
}

func (r *JobSiteRepository) GetAll(ctx context.Context, activeOnly bool) ([]*models.JobSite, error) {
	query := `SELECT ` + siteColumns + ` FROM job_sites`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*models.JobSite
	for rows.Next() {
		var site models.JobSite
		var address sql.NullString
		if err := rows.Scan(&site.ID, &site.Name, &address, &site.CenterLat, &site.CenterLng,
			&site.RadiusMeters, &site.CreatedAt, &site.IsActive); err != nil {
			return nil, err
		}
		if address.Valid {
			site.Address = address.String
		}
		sites = append(sites, &site)
	}
	return sites, rows.Err()
}

func (r *JobSiteRepository) Add(ctx context.Context, site *models.JobSite) error {
	query := `INSERT INTO job_sites (id, name, address, center_lat, center_lng, radius_meters, created_at, is_active)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		site.ID, site.Name, site.Address, site.CenterLat, site.CenterLng,
		site.RadiusMeters, site.CreatedAt, site.IsActive,
	)
	return err
}

func (r *JobSiteRepository) Update(ctx context.Context, site *models.JobSite) error {
	query := `UPDATE job_sites SET name = $2, address = $3, center_lat = $4, center_lng = $5,
			  radius_meters = $6, is_active = $7 WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query,
		site.ID, site.Name, site.Address, site.CenterLat, site.CenterLng,
		site.RadiusMeters, site.IsActive)
	return err
}

// Assign creates or reactivates a worker-to-site assignment
func (r *JobSiteRepository) Assign(ctx context.Context, workerID, jobSiteID string) error {
	query := `INSERT INTO job_assignments (id, worker_id, job_site_id, assigned_at, is_active)
			  VALUES ($1, $2, $3, $4, true)
			  ON CONFLICT (worker_id, job_site_id) DO UPDATE SET is_active = true`

	_, err := r.db.ExecContext(ctx, query, uuid.New().String(), workerID, jobSiteID, time.Now().UTC())
	return err
}

// Unassign deactivates a worker-to-site assignment
func (r *JobSiteRepository) Unassign(ctx context.Context, workerID, jobSiteID string) error {
	query := `UPDATE job_assignments SET is_active = false WHERE worker_id = $1 AND job_site_id = $2`
	_, err := r.db.ExecContext(ctx, query, workerID, jobSiteID)
	return err
}

// IsAssigned reports whether the worker has an active assignment to the site
func (r *JobSiteRepository) IsAssigned(ctx context.Context, workerID, jobSiteID string) (bool, error) {
	query := `SELECT COUNT(*) FROM job_assignments
			  WHERE worker_id = $1 AND job_site_id = $2 AND is_active = true`

	var count int
	err := r.db.QueryRowContext(ctx, query, workerID, jobSiteID).Scan(&count)
	return count > 0, err
}
