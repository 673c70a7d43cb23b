package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sync log actions
const (
	SyncActionCreate   = "create"
	SyncActionUpdate   = "update"
	SyncActionConflict = "conflict"
	SyncActionReject   = "reject"
)

// Sync log statuses
const (
	SyncLogStatusSynced   = "synced"
	SyncLogStatusConflict = "conflict"
	SyncLogStatusResolved = "resolved"
	SyncLogStatusError    = "error"
)

// Conflict resolutions
const (
	ResolutionUseServer = "use_server"
	ResolutionUseClient = "use_client"
)

// ConflictData keeps both sides of a rejected write for manual resolution.
type ConflictData struct {
	Server          json.RawMessage `json:"server"`
	Client          json.RawMessage `json:"client"`
	ServerUpdatedAt time.Time       `json:"server_updated_at"`
	ClientUpdatedAt time.Time       `json:"client_updated_at"`
	Diff            string          `json:"diff,omitempty"`
}

// Value stores conflict data as JSON text.
func (c *ConflictData) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// SyncLogEntry is one audited sync decision. Entries are never deleted; the only
// mutation is moving a conflict to resolved.
type SyncLogEntry struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	UserID         string        `json:"user_id"`
	DeviceID       *string       `json:"device_id,omitempty"`
	EntityType     string        `json:"entity_type"`
	EntityID       *string       `json:"entity_id,omitempty"`
	OfflineID      string        `json:"offline_id"`
	Action         string        `json:"action"`
	Status         string        `json:"status"`
	ConflictData   *ConflictData `json:"conflict_data,omitempty"`
	Message        *string       `json:"message,omitempty"`
	Resolution     *string       `json:"resolution,omitempty"`
	ResolvedBy     *string       `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewSyncLogEntry creates an entry for an identity and item.
func NewSyncLogEntry(ident Identity, entityType, offlineID, action, status string) *SyncLogEntry {
	entry := &SyncLogEntry{
		ID:             uuid.New().String(),
		OrganizationID: ident.OrganizationID,
		UserID:         ident.UserID,
		EntityType:     entityType,
		OfflineID:      offlineID,
		Action:         action,
		Status:         status,
		CreatedAt:      NormalizeTime(time.Now()),
	}
	if ident.DeviceID != "" {
		deviceID := ident.DeviceID
		entry.DeviceID = &deviceID
	}
	return entry
}

// WithEntity records the server id of the affected row.
func (e *SyncLogEntry) WithEntity(id string) *SyncLogEntry {
	if id != "" {
		e.EntityID = &id
	}
	return e
}

// WithMessage records a human readable reason.
func (e *SyncLogEntry) WithMessage(msg string) *SyncLogEntry {
	if msg != "" {
		e.Message = &msg
	}
	return e
}

// IsOpenConflict reports whether the entry still awaits resolution.
func (e *SyncLogEntry) IsOpenConflict() bool {
	return e.Status == SyncLogStatusConflict
}

// SyncLogListResponse is returned when listing sync log entries
type SyncLogListResponse struct {
	Entries    []*SyncLogEntry `json:"entries"`
	TotalCount int             `json:"total_count"`
	Skip       int             `json:"skip"`
	Take       int             `json:"take"`
}

// SyncLogStats summarizes an organization's sync log.
type SyncLogStats struct {
	TotalCount    int `json:"total_count"`
	PendingCount  int `json:"pending_count"`
	ResolvedCount int `json:"resolved_count"`
	ErrorCount    int `json:"error_count"`
}

// ValidResolution reports whether r is a known conflict resolution.
func ValidResolution(r string) error {
	switch r {
	case ResolutionUseServer, ResolutionUseClient:
		return nil
	}
	return NewValidationError("resolution", fmt.Sprintf("must be %q or %q", ResolutionUseServer, ResolutionUseClient))
}
