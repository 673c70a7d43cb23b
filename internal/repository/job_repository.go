package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
)

const jobColumns = `id, organization_id, created_by, offline_id, land_id, customer_id,
	driver_id, machine_id, title, service_type, status, scheduled_at, completed_at,
	notes, sync_status, version, created_at, updated_at`

// JobRepository implements JobStore
type JobRepository struct {
	q Querier
	d Dialect
}

// GetByID retrieves a job inside an organization
func (r *JobRepository) GetByID(ctx context.Context, orgID, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE organization_id = ? AND id = ?`
	return r.scanJob(r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID, id))
}

// FindByOfflineID retrieves the job a client created under offlineID
func (r *JobRepository) FindByOfflineID(ctx context.Context, orgID, offlineID string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE organization_id = ? AND offline_id = ?`
	return r.scanJob(r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID, offlineID))
}

// Create inserts a new job
func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, r.d.Rebind(query),
		j.ID,
		j.OrganizationID,
		j.CreatedBy,
		nullIfEmpty(j.OfflineID),
		j.LandID,
		j.CustomerID,
		j.DriverID,
		j.MachineID,
		j.Title,
		j.ServiceType,
		j.Status,
		utcPtr(j.ScheduledAt),
		utcPtr(j.CompletedAt),
		j.Notes,
		j.SyncStatus,
		j.Version,
		j.CreatedAt.UTC(),
		j.UpdatedAt.UTC(),
	)
	return err
}

// Update overwrites a job if it has not changed since expectedUpdatedAt
func (r *JobRepository) Update(ctx context.Context, j *models.Job, expectedUpdatedAt time.Time) error {
	query := `
		UPDATE jobs SET
			land_id = ?, customer_id = ?, driver_id = ?, machine_id = ?,
			title = ?, service_type = ?, status = ?, scheduled_at = ?, completed_at = ?,
			notes = ?, sync_status = ?, version = ?, updated_at = ?
		WHERE organization_id = ? AND id = ? AND updated_at = ?
	`
	result, err := r.q.ExecContext(ctx, r.d.Rebind(query),
		j.LandID,
		j.CustomerID,
		j.DriverID,
		j.MachineID,
		j.Title,
		j.ServiceType,
		j.Status,
		utcPtr(j.ScheduledAt),
		utcPtr(j.CompletedAt),
		j.Notes,
		j.SyncStatus,
		j.Version,
		j.UpdatedAt.UTC(),
		j.OrganizationID,
		j.ID,
		expectedUpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// ListUpdatedSince returns jobs changed after the cursor
func (r *JobRepository) ListUpdatedSince(ctx context.Context, orgID string, since time.Time, sinceVersion *int64) ([]*models.Job, error) {
	query, args := changedSince(`SELECT `+jobColumns+` FROM jobs`, orgID, since, sinceVersion)
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJobFields(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *JobRepository) scanJob(row *sql.Row) (*models.Job, error) {
	j, err := scanJobFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

func scanJobFields(s rowScanner) (*models.Job, error) {
	var j models.Job
	var offlineID sql.NullString

	err := s.Scan(
		&j.ID,
		&j.OrganizationID,
		&j.CreatedBy,
		&offlineID,
		&j.LandID,
		&j.CustomerID,
		&j.DriverID,
		&j.MachineID,
		&j.Title,
		&j.ServiceType,
		&j.Status,
		&j.ScheduledAt,
		&j.CompletedAt,
		&j.Notes,
		&j.SyncStatus,
		&j.Version,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.OfflineID = offlineID.String
	j.ScheduledAt = utcPtr(j.ScheduledAt)
	j.CompletedAt = utcPtr(j.CompletedAt)
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	return &j, nil
}
