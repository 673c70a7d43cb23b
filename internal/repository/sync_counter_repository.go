package repository

import (
	"context"
	"database/sql"
	"errors"
)

// SyncCounterRepository implements SyncCounterStore
type SyncCounterRepository struct {
	q Querier
	d Dialect
}

// Next increments and returns the organization's change sequence.
// Within a transaction the row stays locked until commit.
func (r *SyncCounterRepository) Next(ctx context.Context, orgID string) (int64, error) {
	query := `
		INSERT INTO sync_counters (organization_id, version) VALUES (?, 1)
		ON CONFLICT (organization_id) DO UPDATE SET version = sync_counters.version + 1
		RETURNING version
	`
	var version int64
	if err := r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID).Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

// Current returns the last issued sequence value, 0 when none was issued.
func (r *SyncCounterRepository) Current(ctx context.Context, orgID string) (int64, error) {
	query := `SELECT version FROM sync_counters WHERE organization_id = ?`
	var version int64
	err := r.q.QueryRowContext(ctx, r.d.Rebind(query), orgID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}
