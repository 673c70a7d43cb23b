package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
)

const syncLogColumns = `id, organization_id, user_id, device_id, entity_type, entity_id,
	offline_id, action, status, conflict_data, message, resolution, resolved_by,
	resolved_at, created_at`

// SyncLogRepository implements SyncLogStore
type SyncLogRepository struct {
	q Querier
	d Dialect
}

// Add appends an entry to the sync log
func (r *SyncLogRepository) Add(ctx context.Context, e *models.SyncLogEntry) error {
	query := `
		INSERT INTO sync_logs (` + syncLogColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.q.ExecContext(ctx, r.d.Rebind(query),
		e.ID,
		e.OrganizationID,
		e.UserID,
		e.DeviceID,
		e.EntityType,
		e.EntityID,
		e.OfflineID,
		e.Action,
		e.Status,
		e.ConflictData,
		e.Message,
		e.Resolution,
		e.ResolvedBy,
		utcPtr(e.ResolvedAt),
		e.CreatedAt.UTC(),
	)
	return err
}

// GetByID retrieves a log entry inside an organization
func (r *SyncLogRepository) GetByID(ctx context.Context, orgID, id string) (*models.SyncLogEntry, error) {
	query := `SELECT ` + syncLogColumns + ` FROM sync_logs WHERE organization_id = ? AND id = ?`
	e, err := scanSyncLogFields(r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// List returns entries newest first, optionally filtered by status
func (r *SyncLogRepository) List(ctx context.Context, orgID, status string, skip, take int) ([]*models.SyncLogEntry, int, error) {
	where := ` WHERE organization_id = ?`
	args := []interface{}{orgID}
	if status != "" {
		where += ` AND status = ?`
		args = append(args, status)
	}

	var total int
	if err := r.q.QueryRowContext(ctx, r.d.Rebind(`SELECT COUNT(*) FROM sync_logs`+where), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + syncLogColumns + ` FROM sync_logs` + where + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := r.q.QueryContext(ctx, r.d.Rebind(query), append(args, take, skip)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*models.SyncLogEntry
	for rows.Next() {
		e, err := scanSyncLogFields(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// MarkResolved resolves an open conflict
func (r *SyncLogRepository) MarkResolved(ctx context.Context, orgID, id, resolution, resolvedBy string, at time.Time) (bool, error) {
	query := `
		UPDATE sync_logs
		SET status = ?, resolution = ?, resolved_by = ?, resolved_at = ?
		WHERE organization_id = ? AND id = ? AND status = ?
	`
	result, err := r.q.ExecContext(ctx, r.d.Rebind(query),
		models.SyncLogStatusResolved, resolution, resolvedBy, at.UTC(),
		orgID, id, models.SyncLogStatusConflict,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Stats counts entries by outcome
func (r *SyncLogRepository) Stats(ctx context.Context, orgID string) (*models.SyncLogStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM sync_logs
		WHERE organization_id = ?
	`
	var stats models.SyncLogStats
	err := r.q.QueryRowContext(ctx, r.d.Rebind(query),
		models.SyncLogStatusConflict, models.SyncLogStatusResolved, models.SyncLogStatusError, orgID,
	).Scan(&stats.TotalCount, &stats.PendingCount, &stats.ResolvedCount, &stats.ErrorCount)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func scanSyncLogFields(s rowScanner) (*models.SyncLogEntry, error) {
	var e models.SyncLogEntry
	var conflictData sql.NullString

	err := s.Scan(
		&e.ID,
		&e.OrganizationID,
		&e.UserID,
		&e.DeviceID,
		&e.EntityType,
		&e.EntityID,
		&e.OfflineID,
		&e.Action,
		&e.Status,
		&conflictData,
		&e.Message,
		&e.Resolution,
		&e.ResolvedBy,
		&e.ResolvedAt,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if conflictData.Valid && conflictData.String != "" {
		var cd models.ConflictData
		if err := json.Unmarshal([]byte(conflictData.String), &cd); err != nil {
			return nil, fmt.Errorf("decode conflict data for %s: %w", e.ID, err)
		}
		e.ConflictData = &cd
	}
	e.ResolvedAt = utcPtr(e.ResolvedAt)
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}
