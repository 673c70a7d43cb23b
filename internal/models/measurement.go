package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Measurement status values
const (
	MeasurementStatusDraft     = "draft"
	MeasurementStatusConfirmed = "confirmed"
	MeasurementStatusArchived  = "archived"
)

// Measurement is a measured land parcel. Area, perimeter and center are
// always derived from Polygon and are only written through SetPolygon.
type Measurement struct {
	ID               string     `json:"id"`
	OrganizationID   string     `json:"organization_id"`
	CreatedBy        string     `json:"created_by"`
	Name             string     `json:"name"`
	Polygon          Polygon    `json:"polygon"`
	AreaSquareMeters float64    `json:"area_square_meters"`
	AreaAcres        float64    `json:"area_acres"`
	AreaHectares     float64    `json:"area_hectares"`
	PerimeterMeters  float64    `json:"perimeter_meters"`
	Center           GeoPoint   `json:"center"`
	Status           string     `json:"status"`
	SyncStatus       string     `json:"sync_status"`
	OfflineID        string     `json:"offline_id,omitempty"`
	Version          int64      `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// NewMeasurement creates a measurement for an already validated polygon.
func NewMeasurement(orgID, userID, name string, polygon Polygon, geometry Geometry) *Measurement {
	now := NormalizeTime(time.Now())
	m := &Measurement{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		CreatedBy:      userID,
		Name:           strings.TrimSpace(name),
		Status:         MeasurementStatusConfirmed,
		SyncStatus:     SyncStatusSynced,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.SetPolygon(polygon, geometry)
	return m
}

// ApplyPayload overwrites the client-owned fields of m that the payload carries.
func (m *Measurement) ApplyPayload(p *MeasurementPayload, geometry *Geometry) {
	m.Name = p.Name
	if p.Status != "" {
		m.Status = p.Status
	}
	if geometry != nil {
		m.SetPolygon(p.Polygon, *geometry)
	}
}

// SetPolygon replaces the polygon and every derived field together.
func (m *Measurement) SetPolygon(polygon Polygon, geometry Geometry) {
	m.Polygon = polygon.Clone()
	m.AreaSquareMeters = geometry.AreaSquareMeters
	m.AreaAcres = geometry.AreaAcres
	m.AreaHectares = geometry.AreaHectares
	m.PerimeterMeters = geometry.PerimeterMeters
	m.Center = geometry.Center
}

// Geometry returns the stored derived values.
func (m *Measurement) Geometry() Geometry {
	return Geometry{
		AreaSquareMeters: m.AreaSquareMeters,
		AreaAcres:        m.AreaAcres,
		AreaHectares:     m.AreaHectares,
		PerimeterMeters:  m.PerimeterMeters,
		Center:           m.Center,
	}
}

// IsDeleted reports whether the measurement was soft deleted.
func (m *Measurement) IsDeleted() bool {
	return m.DeletedAt != nil
}

func (m *Measurement) SyncRef() SyncRef {
	return SyncRef{ID: m.ID, OrganizationID: m.OrganizationID, OfflineID: m.OfflineID, UpdatedAt: m.UpdatedAt, Version: m.Version}
}

// ValidMeasurementStatus reports whether s is a known measurement status.
func ValidMeasurementStatus(s string) bool {
	switch s {
	case MeasurementStatusDraft, MeasurementStatusConfirmed, MeasurementStatusArchived:
		return true
	}
	return false
}

// CreateMeasurementRequest is the body of POST /measurements
type CreateMeasurementRequest struct {
	Name      string  `json:"name"`
	Polygon   Polygon `json:"polygon"`
	OfflineID string  `json:"offline_id,omitempty"`
}

// ReplacePolygonRequest is the body of PUT /measurements/{id}/polygon
type ReplacePolygonRequest struct {
	Polygon Polygon `json:"polygon"`
}

// CalculateRequest is the body of POST /measurements/calculate
type CalculateRequest struct {
	Polygon Polygon `json:"polygon"`
}

// MeasurementListResponse is returned when listing measurements
type MeasurementListResponse struct {
	Measurements []*Measurement `json:"measurements"`
	TotalCount   int            `json:"total_count"`
	Skip         int            `json:"skip"`
	Take         int            `json:"take"`
}

// MeasurementPayload is the client-owned part of a measurement carried in a sync item.
// A nil Polygon or an empty Status on an update keeps the stored value.
type MeasurementPayload struct {
	Name    string  `json:"name"`
	Polygon Polygon `json:"polygon"`
	Status  string  `json:"status"`
}

// Validate normalizes the payload and reports every invalid non-geometry field.
func (p *MeasurementPayload) Validate() error {
	verr := &ValidationError{}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		verr.Add("name", "is required")
	}
	if p.Status != "" && !ValidMeasurementStatus(p.Status) {
		verr.Add("status", "must be one of draft, confirmed, archived")
	}
	if verr.HasIssues() {
		return verr
	}
	return nil
}
