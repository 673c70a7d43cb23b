package repository

import (
	"context"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
)

const trackingColumns = `id, organization_id, user_id, driver_id, job_id, device_id,
	latitude, longitude, altitude, accuracy, speed, heading, recorded_at, received_at`

// TrackingRepository implements TrackingStore
type TrackingRepository struct {
	q Querier
	d Dialect
}

// AddBatch inserts every point. Run it inside Store.WithTx for all-or-nothing batches.
func (r *TrackingRepository) AddBatch(ctx context.Context, points []*models.TrackingPoint) error {
	query := r.d.Rebind(`
		INSERT INTO tracking_points (` + trackingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	for _, p := range points {
		_, err := r.q.ExecContext(ctx, query,
			p.ID,
			p.OrganizationID,
			p.UserID,
			p.DriverID,
			p.JobID,
			p.DeviceID,
			p.Latitude,
			p.Longitude,
			p.Altitude,
			p.Accuracy,
			p.Speed,
			p.Heading,
			p.RecordedAt.UTC(),
			p.ReceivedAt.UTC(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListTrail returns breadcrumbs in recording order
func (r *TrackingRepository) ListTrail(ctx context.Context, orgID string, q models.TrailQuery) ([]*models.TrackingPoint, error) {
	query := `SELECT ` + trackingColumns + ` FROM tracking_points WHERE organization_id = ?`
	args := []interface{}{orgID}

	if q.DriverID != "" {
		query += ` AND driver_id = ?`
		args = append(args, q.DriverID)
	}
	if q.JobID != "" {
		query += ` AND job_id = ?`
		args = append(args, q.JobID)
	}
	if q.From != nil {
		query += ` AND recorded_at >= ?`
		args = append(args, q.From.UTC())
	}
	if q.To != nil {
		query += ` AND recorded_at <= ?`
		args = append(args, q.To.UTC())
	}
	query += ` ORDER BY recorded_at, id LIMIT ?`
	args = append(args, q.Limit)

	rows, err := r.q.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*models.TrackingPoint
	for rows.Next() {
		var p models.TrackingPoint
		err := rows.Scan(
			&p.ID,
			&p.OrganizationID,
			&p.UserID,
			&p.DriverID,
			&p.JobID,
			&p.DeviceID,
			&p.Latitude,
			&p.Longitude,
			&p.Altitude,
			&p.Accuracy,
			&p.Speed,
			&p.Heading,
			&p.RecordedAt,
			&p.ReceivedAt,
		)
		if err != nil {
			return nil, err
		}
		p.RecordedAt = p.RecordedAt.UTC()
		p.ReceivedAt = p.ReceivedAt.UTC()
		points = append(points, &p)
	}
	return points, rows.Err()
}
