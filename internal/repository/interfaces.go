package repository

import (
	"context"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
)

// SyncStore is the persistence boundary the sync engine needs for one syncable kind.
// Lookups return (nil, nil) when nothing matches.
type SyncStore[T any] interface {
	GetByID(ctx context.Context, orgID, id string) (*T, error)
	FindByOfflineID(ctx context.Context, orgID, offlineID string) (*T, error)
	Create(ctx context.Context, entity *T) error
	// Update overwrites the row only while its updated_at still equals
	// expectedUpdatedAt, and returns models.ErrStaleWrite otherwise.
	Update(ctx context.Context, entity *T, expectedUpdatedAt time.Time) error
	ListUpdatedSince(ctx context.Context, orgID string, since time.Time, sinceVersion *int64) ([]*T, error)
}

// MeasurementStore defines persistence for land measurements
type MeasurementStore interface {
	SyncStore[models.Measurement]
	FindByOrganization(ctx context.Context, orgID, status string, skip, take int) ([]*models.Measurement, int, error)
	SoftDelete(ctx context.Context, orgID, id string, at time.Time, version int64) (bool, error)
}

// JobStore defines persistence for jobs
type JobStore interface {
	SyncStore[models.Job]
}

// ExpenseStore defines persistence for expenses
type ExpenseStore interface {
	SyncStore[models.Expense]
}

// PaymentStore defines persistence for payments
type PaymentStore interface {
	SyncStore[models.Payment]
}

// SyncLogStore defines persistence for the append-only sync audit log
type SyncLogStore interface {
	Add(ctx context.Context, entry *models.SyncLogEntry) error
	GetByID(ctx context.Context, orgID, id string) (*models.SyncLogEntry, error)
	List(ctx context.Context, orgID, status string, skip, take int) ([]*models.SyncLogEntry, int, error)
	// MarkResolved moves an open conflict to resolved and reports whether a row changed.
	MarkResolved(ctx context.Context, orgID, id, resolution, resolvedBy string, at time.Time) (bool, error)
	Stats(ctx context.Context, orgID string) (*models.SyncLogStats, error)
}

// TrackingStore defines persistence for GPS breadcrumbs
type TrackingStore interface {
	AddBatch(ctx context.Context, points []*models.TrackingPoint) error
	ListTrail(ctx context.Context, orgID string, q models.TrailQuery) ([]*models.TrackingPoint, error)
}

// SyncCounterStore hands out the per-organization change sequence
type SyncCounterStore interface {
	Next(ctx context.Context, orgID string) (int64, error)
	Current(ctx context.Context, orgID string) (int64, error)
}
