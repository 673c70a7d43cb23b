package models

import (
	"time"

	"github.com/google/uuid"
)

// TrackingPoint is one GPS breadcrumb. Points are insert-only.
type TrackingPoint struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	DriverID       string    `json:"driver_id"`
	JobID          *string   `json:"job_id,omitempty"`
	DeviceID       *string   `json:"device_id,omitempty"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Altitude       *float64  `json:"altitude,omitempty"`
	Accuracy       *float64  `json:"accuracy,omitempty"`
	Speed          *float64  `json:"speed,omitempty"`
	Heading        *float64  `json:"heading,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
	ReceivedAt     time.Time `json:"received_at"`
}

// NewTrackingPoint stamps a breadcrumb for the identity that sent it.
func NewTrackingPoint(ident Identity, driverID string, jobID *string, loc TrackingLocation) *TrackingPoint {
	tp := &TrackingPoint{
		ID:             uuid.New().String(),
		OrganizationID: ident.OrganizationID,
		UserID:         ident.UserID,
		DriverID:       driverID,
		JobID:          jobID,
		Latitude:       valueOf(loc.Latitude),
		Longitude:      valueOf(loc.Longitude),
		Altitude:       loc.Altitude,
		Accuracy:       loc.Accuracy,
		Speed:          loc.Speed,
		Heading:        loc.Heading,
		RecordedAt:     NormalizeTime(loc.RecordedAt),
		ReceivedAt:     NormalizeTime(time.Now()),
	}
	if ident.DeviceID != "" {
		deviceID := ident.DeviceID
		tp.DeviceID = &deviceID
	}
	return tp
}

func valueOf(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// TrackingLocation is one location in a tracking batch. NMEA, when set, is a raw
// $GPGGA or $GPRMC sentence the position is read from; otherwise both
// coordinates are required.
type TrackingLocation struct {
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
	Altitude   *float64  `json:"altitude,omitempty"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	Speed      *float64  `json:"speed,omitempty"`
	Heading    *float64  `json:"heading,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	NMEA       string    `json:"nmea,omitempty"`
}

// TrackingBatchRequest is the body of POST /tracking/batch
type TrackingBatchRequest struct {
	DriverID  string             `json:"driver_id"`
	JobID     *string            `json:"job_id,omitempty"`
	Locations []TrackingLocation `json:"locations"`
}

// TrackingBatchResponse is returned after a tracking batch is stored
type TrackingBatchResponse struct {
	Count int `json:"count"`
}

// TrailQuery filters breadcrumbs for GET /tracking/trail
type TrailQuery struct {
	DriverID string
	JobID    string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// TrailResponse is returned by GET /tracking/trail
type TrailResponse struct {
	Points []*TrackingPoint `json:"points"`
	Count  int              `json:"count"`
}
