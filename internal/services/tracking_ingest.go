package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/observability"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/repository"
	"go.opentelemetry.io/otel/attribute"
)

const (
	knotsToMetersPerSecond = 0.514444
	defaultTrailLimit      = 500
	maxTrailLimit          = 5000
)

// TrackingIngest stores GPS breadcrumbs sent by drivers' devices.
type TrackingIngest struct {
	store        *repository.Store
	maxBatchSize int
	metrics      *observability.BusinessMetrics
	logger       *observability.Logger
}

// NewTrackingIngest creates a tracking ingest service. metrics may be nil.
func NewTrackingIngest(store *repository.Store, maxBatchSize int, metrics *observability.BusinessMetrics) *TrackingIngest {
	return &TrackingIngest{
		store:        store,
		maxBatchSize: maxBatchSize,
		metrics:      metrics,
		logger:       observability.WithField("component", "tracking_ingest"),
	}
}

// IngestBatch validates every location and stores them all in one transaction.
// A single invalid location rejects the whole batch.
func (t *TrackingIngest) IngestBatch(ctx context.Context, ident models.Identity, req models.TrackingBatchRequest) (int, error) {
	ctx, span := observability.StartServiceSpan(ctx, "TrackingIngest", "IngestBatch")
	defer span.End()
	attrs := []attribute.KeyValue{
		observability.OrganizationID(ident.OrganizationID),
		observability.DriverID(strings.TrimSpace(req.DriverID)),
		observability.BatchSize(len(req.Locations)),
	}
	span.SetAttributes(attrs...)

	if len(req.Locations) > t.maxBatchSize {
		return 0, fmt.Errorf("%w: %d locations, limit is %d", models.ErrBatchTooLarge, len(req.Locations), t.maxBatchSize)
	}

	verr := &models.ValidationError{}
	driverID := strings.TrimSpace(req.DriverID)
	if driverID == "" {
		verr.Add("driver_id", "is required")
	}
	if len(req.Locations) == 0 {
		verr.Add("locations", "must contain at least one location")
	}

	points := make([]*models.TrackingPoint, 0, len(req.Locations))
	for i := range req.Locations {
		loc := req.Locations[i]
		validateLocation(&loc, verr, fmt.Sprintf("locations[%d].", i))
		points = append(points, models.NewTrackingPoint(ident, driverID, req.JobID, loc))
	}
	if verr.HasIssues() {
		return 0, verr
	}

	err := t.store.WithTx(ctx, func(tx *repository.Store) error {
		return tx.Tracking().AddBatch(ctx, points)
	})
	if err != nil {
		err = models.Infra("store tracking points", err)
		observability.RecordError(span, err)
		return 0, err
	}

	t.metrics.RecordTrackingPoints(ctx, ident.OrganizationID, len(points))
	t.logger.WithContext(ctx).WithAttrs(attrs...).Debug("Stored tracking batch")
	observability.SetSuccess(span)
	return len(points), nil
}

// ListTrail returns an organization's breadcrumbs in recording order.
func (t *TrackingIngest) ListTrail(ctx context.Context, orgID string, q models.TrailQuery) ([]*models.TrackingPoint, error) {
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, models.NewValidationError("from", "must not be after to")
	}
	if q.Limit <= 0 {
		q.Limit = defaultTrailLimit
	}
	if q.Limit > maxTrailLimit {
		q.Limit = maxTrailLimit
	}

	points, err := t.store.Tracking().ListTrail(ctx, orgID, q)
	if err != nil {
		return nil, models.Infra("list tracking trail", err)
	}
	return points, nil
}

// validateLocation fills the location from its NMEA sentence when present and
// records every problem under prefix.
func validateLocation(loc *models.TrackingLocation, verr *models.ValidationError, prefix string) {
	if loc.NMEA != "" {
		if err := applyNMEA(loc); err != nil {
			verr.Add(prefix+"nmea", err.Error())
			return
		}
	}

	if loc.Latitude == nil || loc.Longitude == nil {
		verr.Add(strings.TrimSuffix(prefix, "."), "requires latitude and longitude or an nmea sentence")
	} else {
		if lat := *loc.Latitude; math.IsNaN(lat) || lat < -90 || lat > 90 {
			verr.Add(prefix+"latitude", "must be between -90 and 90")
		}
		if lon := *loc.Longitude; math.IsNaN(lon) || lon < -180 || lon > 180 {
			verr.Add(prefix+"longitude", "must be between -180 and 180")
		}
	}
	if loc.RecordedAt.IsZero() {
		verr.Add(prefix+"recorded_at", "is required")
	}
	if loc.Accuracy != nil && (*loc.Accuracy < 0 || math.IsNaN(*loc.Accuracy)) {
		verr.Add(prefix+"accuracy", "must not be negative")
	}
	if loc.Speed != nil && (*loc.Speed < 0 || math.IsNaN(*loc.Speed)) {
		verr.Add(prefix+"speed", "must not be negative")
	}
	if loc.Heading != nil && (*loc.Heading < 0 || *loc.Heading >= 360 || math.IsNaN(*loc.Heading)) {
		verr.Add(prefix+"heading", "must be in [0, 360)")
	}
}

// applyNMEA reads position, and speed and course where available, from a
// $GPGGA or $GPRMC sentence. An RMC fix also supplies recorded_at when it is missing.
func applyNMEA(loc *models.TrackingLocation) error {
	sentence, err := nmea.Parse(strings.TrimSpace(loc.NMEA))
	if err != nil {
		return fmt.Errorf("unparseable sentence: %v", err)
	}

	switch s := sentence.(type) {
	case nmea.GGA:
		if s.FixQuality == nmea.Invalid {
			return fmt.Errorf("GGA sentence has no fix")
		}
		lat, lon := s.Latitude, s.Longitude
		loc.Latitude, loc.Longitude = &lat, &lon
		altitude := s.Altitude
		loc.Altitude = &altitude

	case nmea.RMC:
		if s.Validity != nmea.ValidRMC {
			return fmt.Errorf("RMC sentence is not a valid fix")
		}
		lat, lon := s.Latitude, s.Longitude
		loc.Latitude, loc.Longitude = &lat, &lon
		speed := s.Speed * knotsToMetersPerSecond
		loc.Speed = &speed
		course := s.Course
		loc.Heading = &course
		if loc.RecordedAt.IsZero() && s.Date.Valid && s.Time.Valid {
			loc.RecordedAt = time.Date(2000+s.Date.YY, time.Month(s.Date.MM), s.Date.DD,
				s.Time.Hour, s.Time.Minute, s.Time.Second, s.Time.Millisecond*int(time.Millisecond), time.UTC)
		}

	default:
		return fmt.Errorf("unsupported sentence type %s", sentence.DataType())
	}
	return nil
}
