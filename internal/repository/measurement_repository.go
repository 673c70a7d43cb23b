package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
)

const measurementColumns = `id, organization_id, created_by, name, polygon,
	area_square_meters, area_acres, area_hectares, perimeter_meters,
	center_latitude, center_longitude, status, sync_status, offline_id,
	version, created_at, updated_at, deleted_at`

// MeasurementRepository implements MeasurementStore
type MeasurementRepository struct {
	q Querier
	d Dialect
}

// GetByID retrieves a measurement inside an organization
func (r *MeasurementRepository) GetByID(ctx context.Context, orgID, id string) (*models.Measurement, error) {
	query := `SELECT ` + measurementColumns + ` FROM measurements WHERE organization_id = ? AND id = ?`
	return r.scanMeasurement(r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID, id))
}

// FindByOfflineID retrieves the measurement a client created under offlineID
func (r *MeasurementRepository) FindByOfflineID(ctx context.Context, orgID, offlineID string) (*models.Measurement, error) {
	query := `SELECT ` + measurementColumns + ` FROM measurements WHERE organization_id = ? AND offline_id = ?`
	return r.scanMeasurement(r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID, offlineID))
}

// Create inserts a new measurement
func (r *MeasurementRepository) Create(ctx context.Context, m *models.Measurement) error {
	query := `
		INSERT INTO measurements (` + measurementColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, r.d.Rebind(query),
		m.ID,
		m.OrganizationID,
		m.CreatedBy,
		m.Name,
		m.Polygon,
		m.AreaSquareMeters,
		m.AreaAcres,
		m.AreaHectares,
		m.PerimeterMeters,
		m.Center.Latitude,
		m.Center.Longitude,
		m.Status,
		m.SyncStatus,
		nullIfEmpty(m.OfflineID),
		m.Version,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
		utcPtr(m.DeletedAt),
	)
	return err
}

// Update overwrites a measurement if it has not changed since expectedUpdatedAt
func (r *MeasurementRepository) Update(ctx context.Context, m *models.Measurement, expectedUpdatedAt time.Time) error {
	query := `
		UPDATE measurements SET
			name = ?, polygon = ?,
			area_square_meters = ?, area_acres = ?, area_hectares = ?, perimeter_meters = ?,
			center_latitude = ?, center_longitude = ?,
			status = ?, sync_status = ?, version = ?, updated_at = ?, deleted_at = ?
		WHERE organization_id = ? AND id = ? AND updated_at = ?
	`
	result, err := r.q.ExecContext(ctx, r.d.Rebind(query),
		m.Name,
		m.Polygon,
		m.AreaSquareMeters,
		m.AreaAcres,
		m.AreaHectares,
		m.PerimeterMeters,
		m.Center.Latitude,
		m.Center.Longitude,
		m.Status,
		m.SyncStatus,
		m.Version,
		m.UpdatedAt.UTC(),
		utcPtr(m.DeletedAt),
		m.OrganizationID,
		m.ID,
		expectedUpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	return expectOneRow(result)
}

// ListUpdatedSince returns measurements changed after the cursor, soft-deleted ones included
func (r *MeasurementRepository) ListUpdatedSince(ctx context.Context, orgID string, since time.Time, sinceVersion *int64) ([]*models.Measurement, error) {
	query, args := changedSince(`SELECT `+measurementColumns+` FROM measurements`, orgID, since, sinceVersion)
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanMeasurements(rows)
}

// FindByOrganization lists live measurements, newest first
func (r *MeasurementRepository) FindByOrganization(ctx context.Context, orgID, status string, skip, take int) ([]*models.Measurement, int, error) {
	where := ` WHERE organization_id = ? AND deleted_at IS NULL`
	args := []interface{}{orgID}
	if status != "" {
		where += ` AND status = ?`
		args = append(args, status)
	}

	var total int
	if err := r.q.QueryRowContext(ctx, r.d.Rebind(`SELECT COUNT(*) FROM measurements`+where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + measurementColumns + ` FROM measurements` + where + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(query), append(args, take, skip)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	measurements, err := r.scanMeasurements(rows)
	if err != nil {
		return nil, 0, err
	}
	return measurements, total, nil
}

// SoftDelete archives a live measurement and reports whether it existed
func (r *MeasurementRepository) SoftDelete(ctx context.Context, orgID, id string, at time.Time, version int64) (bool, error) {
	query := `
		UPDATE measurements
		SET deleted_at = ?, updated_at = ?, status = ?, version = ?
		WHERE organization_id = ? AND id = ? AND deleted_at IS NULL
	`
	at = at.UTC()
	result, err := r.q.ExecContext(ctx, r.d.Rebind(query), at, at, models.MeasurementStatusArchived, version, orgID, id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MeasurementRepository) scanMeasurement(row *sql.Row) (*models.Measurement, error) {
	m, err := scanMeasurementFields(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

func (r *MeasurementRepository) scanMeasurements(rows *sql.Rows) ([]*models.Measurement, error) {
	var measurements []*models.Measurement
	for rows.Next() {
		m, err := scanMeasurementFields(rows)
		if err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMeasurementFields(s rowScanner) (*models.Measurement, error) {
	var m models.Measurement
	var offlineID sql.NullString
	var deletedAt sql.NullTime

	err := s.Scan(
		&m.ID,
		&m.OrganizationID,
		&m.CreatedBy,
		&m.Name,
		&m.Polygon,
		&m.AreaSquareMeters,
		&m.AreaAcres,
		&m.AreaHectares,
		&m.PerimeterMeters,
		&m.Center.Latitude,
		&m.Center.Longitude,
		&m.Status,
		&m.SyncStatus,
		&offlineID,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	m.OfflineID = offlineID.String
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		m.DeletedAt = &t
	}
	return &m, nil
}

// changedSince appends the pull cursor to a select over a syncable table.
func changedSince(selectFrom, orgID string, since time.Time, sinceVersion *int64) (string, []interface{}) {
	if sinceVersion != nil {
		return selectFrom + ` WHERE organization_id = ? AND version > ? ORDER BY version, id`,
			[]interface{}{orgID, *sinceVersion}
	}
	return selectFrom + ` WHERE organization_id = ? AND updated_at > ? ORDER BY updated_at, id`,
		[]interface{}{orgID, since.UTC()}
}

// expectOneRow turns a compare-and-swap miss into ErrStaleWrite.
func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrStaleWrite
	}
	return nil
}
