package models

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind is the closed set of record types a mobile client can push.
type EntityKind int

const (
	KindMeasurement EntityKind = iota
	KindJob
	KindExpense
	KindPayment
	KindTrackingPoint

	kindCount
)

// KindCount is the number of entity kinds, for dispatch tables indexed by EntityKind.
const KindCount = int(kindCount)

var kindNames = [kindCount]string{
	KindMeasurement:   "measurement",
	KindJob:           "job",
	KindExpense:       "expense",
	KindPayment:       "payment",
	KindTrackingPoint: "tracking_point",
}

var kindPlurals = [kindCount]string{
	KindMeasurement:   "measurements",
	KindJob:           "jobs",
	KindExpense:       "expenses",
	KindPayment:       "payments",
	KindTrackingPoint: "tracking_points",
}

func (k EntityKind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("EntityKind(%d)", int(k))
	}
	return kindNames[k]
}

// Plural is the key used for the kind in pull requests and responses.
func (k EntityKind) Plural() string {
	if k < 0 || k >= kindCount {
		return k.String()
	}
	return kindPlurals[k]
}

// HasConflictAxis reports whether the kind participates in last-write-wins
// reconciliation. Tracking points are an insert-only stream.
func (k EntityKind) HasConflictAxis() bool {
	return k != KindTrackingPoint && k >= 0 && k < kindCount
}

// ParseEntityKind accepts the singular or plural name of a kind.
func ParseEntityKind(s string) (EntityKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i := EntityKind(0); i < kindCount; i++ {
		if kindNames[i] == name || kindPlurals[i] == name {
			return i, nil
		}
	}
	return 0, NewValidationError("entity_type", fmt.Sprintf("unknown entity type %q", s))
}

// PullableKinds lists the kinds returned by a pull, in response order.
func PullableKinds() []EntityKind {
	return []EntityKind{KindMeasurement, KindJob, KindExpense, KindPayment}
}

// Sync status values stored on syncable rows.
const (
	SyncStatusSynced   = "synced"
	SyncStatusPending  = "pending"
	SyncStatusConflict = "conflict"
)

// SyncRef is the part of a record the sync protocol reasons about.
type SyncRef struct {
	ID             string
	OrganizationID string
	OfflineID      string
	UpdatedAt      time.Time
	Version        int64
}

// Syncable is implemented by every record that takes part in conflict resolution.
type Syncable interface {
	SyncRef() SyncRef
}

// NormalizeTime brings a timestamp to the precision both storage drivers keep.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
