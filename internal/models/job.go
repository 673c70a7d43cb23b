package models

import (
	"strings"
	"time"
)

// Job status values
const (
	JobStatusPending    = "pending"
	JobStatusScheduled  = "scheduled"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
)

// Job is a field service job captured on the server or on a device.
type Job struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	CreatedBy      string     `json:"created_by"`
	OfflineID      string     `json:"offline_id,omitempty"`
	LandID         *string    `json:"land_id,omitempty"`
	CustomerID     *string    `json:"customer_id,omitempty"`
	DriverID       *string    `json:"driver_id,omitempty"`
	MachineID      *string    `json:"machine_id,omitempty"`
	Title          string     `json:"title"`
	ServiceType    string     `json:"service_type"`
	Status         string     `json:"status"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	SyncStatus     string     `json:"sync_status"`
	Version        int64      `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (j *Job) SyncRef() SyncRef {
	return SyncRef{ID: j.ID, OrganizationID: j.OrganizationID, OfflineID: j.OfflineID, UpdatedAt: j.UpdatedAt, Version: j.Version}
}

// JobPayload is the client-owned part of a job carried in a sync item.
type JobPayload struct {
	LandID      *string    `json:"land_id"`
	CustomerID  *string    `json:"customer_id"`
	DriverID    *string    `json:"driver_id"`
	MachineID   *string    `json:"machine_id"`
	Title       string     `json:"title"`
	ServiceType string     `json:"service_type"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Notes       string     `json:"notes"`
}

// Validate normalizes the payload and reports every invalid field.
func (p *JobPayload) Validate() error {
	verr := &ValidationError{}
	p.Title = strings.TrimSpace(p.Title)
	p.ServiceType = strings.TrimSpace(p.ServiceType)
	if p.Title == "" {
		verr.Add("title", "is required")
	}
	if p.ServiceType == "" {
		verr.Add("service_type", "is required")
	}
	switch p.Status {
	case "", JobStatusPending, JobStatusScheduled, JobStatusInProgress, JobStatusCompleted, JobStatusCancelled:
	default:
		verr.Add("status", "must be one of pending, scheduled, in_progress, completed, cancelled")
	}
	if p.Status == JobStatusCompleted && p.CompletedAt == nil {
		verr.Add("completed_at", "is required when status is completed")
	}
	if verr.HasIssues() {
		return verr
	}
	return nil
}

// ApplyTo overwrites the client-owned fields of j. An empty Status keeps the
// stored status, or starts a new job as pending; a completed job keeps its
// completed_at when the payload omits it.
func (p *JobPayload) ApplyTo(j *Job) {
	completedAt := p.CompletedAt
	if p.Status != "" {
		j.Status = p.Status
	} else if j.Status == "" {
		j.Status = JobStatusPending
	} else if j.Status == JobStatusCompleted && completedAt == nil {
		completedAt = j.CompletedAt
	}

	j.LandID = p.LandID
	j.CustomerID = p.CustomerID
	j.DriverID = p.DriverID
	j.MachineID = p.MachineID
	j.Title = p.Title
	j.ServiceType = p.ServiceType
	j.ScheduledAt = normalizeOptionalTime(p.ScheduledAt)
	j.CompletedAt = normalizeOptionalTime(completedAt)
	j.Notes = p.Notes
}

func normalizeOptionalTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := NormalizeTime(*t)
	return &n
}
