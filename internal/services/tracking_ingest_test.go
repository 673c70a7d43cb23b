package services

import (
	"context"
	"testing"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ggaFix     = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	rmcFix     = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230324,003.1,W*61"
	rmcNoFix   = "$GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230324,003.1,W*76"
	badSummary = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*00"
)

func float(v float64) *float64 {
	return &v
}

func TestApplyNMEA(t *testing.T) {
	t.Run("GGA fills position and altitude", func(t *testing.T) {
		loc := models.TrackingLocation{NMEA: ggaFix}
		require.NoError(t, applyNMEA(&loc))
		require.NotNil(t, loc.Latitude)
		assert.InDelta(t, 48.1173, *loc.Latitude, 1e-4)
		assert.InDelta(t, 11.516667, *loc.Longitude, 1e-4)
		require.NotNil(t, loc.Altitude)
		assert.InDelta(t, 545.4, *loc.Altitude, 1e-9)
		assert.True(t, loc.RecordedAt.IsZero())
	})

	t.Run("RMC fills speed, heading and time", func(t *testing.T) {
		loc := models.TrackingLocation{NMEA: rmcFix}
		require.NoError(t, applyNMEA(&loc))
		require.NotNil(t, loc.Latitude)
		assert.InDelta(t, 48.1173, *loc.Latitude, 1e-4)
		require.NotNil(t, loc.Speed)
		assert.InDelta(t, 22.4*knotsToMetersPerSecond, *loc.Speed, 1e-9)
		require.NotNil(t, loc.Heading)
		assert.InDelta(t, 84.4, *loc.Heading, 1e-9)
		assert.Equal(t, time.Date(2024, 3, 23, 12, 35, 19, 0, time.UTC), loc.RecordedAt)
	})

	t.Run("RMC keeps an explicit recorded_at", func(t *testing.T) {
		loc := models.TrackingLocation{NMEA: rmcFix, RecordedAt: baseTime}
		require.NoError(t, applyNMEA(&loc))
		assert.Equal(t, baseTime, loc.RecordedAt)
	})

	t.Run("rejects void fixes and bad checksums", func(t *testing.T) {
		for _, sentence := range []string{rmcNoFix, badSummary, "not nmea"} {
			loc := models.TrackingLocation{NMEA: sentence}
			assert.Error(t, applyNMEA(&loc), sentence)
		}
	})
}

func TestTrackingIngest_IngestBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("stores every location", func(t *testing.T) {
		store := setupServiceStore(t)
		ingest := NewTrackingIngest(store, 10, nil)
		jobID := "job-1"

		count, err := ingest.IngestBatch(ctx, testIdent, models.TrackingBatchRequest{
			DriverID: "driver-1",
			JobID:    &jobID,
			Locations: []models.TrackingLocation{
				{Latitude: float(7.0), Longitude: float(80.0), RecordedAt: baseTime, Accuracy: float(4)},
				{Latitude: float(7.001), Longitude: float(80.001), RecordedAt: baseTime.Add(time.Second), Speed: float(3.2), Heading: float(90)},
				{NMEA: rmcFix},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 3, count)

		trail, err := ingest.ListTrail(ctx, "org-1", models.TrailQuery{JobID: "job-1"})
		require.NoError(t, err)
		require.Len(t, trail, 3)
		assert.Equal(t, time.Date(2024, 3, 23, 12, 35, 19, 0, time.UTC), trail[0].RecordedAt)
		assert.Equal(t, baseTime, trail[1].RecordedAt)
		assert.Equal(t, "driver-1", trail[1].DriverID)
		require.NotNil(t, trail[1].DeviceID)
		assert.Equal(t, "device-1", *trail[1].DeviceID)
	})

	t.Run("one bad location rejects the batch", func(t *testing.T) {
		store := setupServiceStore(t)
		ingest := NewTrackingIngest(store, 10, nil)

		_, err := ingest.IngestBatch(ctx, testIdent, models.TrackingBatchRequest{
			DriverID: "driver-1",
			Locations: []models.TrackingLocation{
				{Latitude: float(7.0), Longitude: float(80.0), RecordedAt: baseTime},
				{Latitude: float(7.0), Longitude: float(181), RecordedAt: baseTime, Heading: float(360)},
				{Latitude: float(7.0), Longitude: float(80.0)},
			},
		})
		require.ErrorIs(t, err, models.ErrValidation)

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		fields := make([]string, len(verr.Issues))
		for i, issue := range verr.Issues {
			fields[i] = issue.Field
		}
		assert.Equal(t, []string{"locations[1].longitude", "locations[1].heading", "locations[2].recorded_at"}, fields)

		trail, err := ingest.ListTrail(ctx, "org-1", models.TrailQuery{})
		require.NoError(t, err)
		assert.Empty(t, trail)
	})

	t.Run("location without coordinates or nmea is rejected", func(t *testing.T) {
		store := setupServiceStore(t)
		ingest := NewTrackingIngest(store, 10, nil)

		_, err := ingest.IngestBatch(ctx, testIdent, models.TrackingBatchRequest{
			DriverID: "driver-1",
			Locations: []models.TrackingLocation{
				{Latitude: float(7.0), Longitude: float(80.0), RecordedAt: baseTime},
				{RecordedAt: baseTime},
				{Latitude: float(7.0), RecordedAt: baseTime},
			},
		})

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, []models.FieldIssue{
			{Field: "locations[1]", Message: "requires latitude and longitude or an nmea sentence"},
			{Field: "locations[2]", Message: "requires latitude and longitude or an nmea sentence"},
		}, verr.Issues)

		trail, err := ingest.ListTrail(ctx, "org-1", models.TrailQuery{})
		require.NoError(t, err)
		assert.Empty(t, trail)
	})

	t.Run("requires driver and locations", func(t *testing.T) {
		ingest := NewTrackingIngest(setupServiceStore(t), 10, nil)
		_, err := ingest.IngestBatch(ctx, testIdent, models.TrackingBatchRequest{})

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Issues, 2)
	})

	t.Run("caps the batch size", func(t *testing.T) {
		ingest := NewTrackingIngest(setupServiceStore(t), 2, nil)
		locations := make([]models.TrackingLocation, 3)
		for i := range locations {
			locations[i] = models.TrackingLocation{Latitude: float(7), Longitude: float(80), RecordedAt: baseTime}
		}

		_, err := ingest.IngestBatch(ctx, testIdent, models.TrackingBatchRequest{DriverID: "d", Locations: locations})
		assert.ErrorIs(t, err, models.ErrBatchTooLarge)
	})
}

func TestTrackingIngest_ListTrail(t *testing.T) {
	ctx := context.Background()
	ingest := NewTrackingIngest(setupServiceStore(t), 100, nil)

	locations := make([]models.TrackingLocation, 5)
	for i := range locations {
		locations[i] = models.TrackingLocation{Latitude: float(7), Longitude: float(80), RecordedAt: baseTime.Add(time.Duration(i) * time.Minute)}
	}
	_, err := ingest.IngestBatch(ctx, testIdent, models.TrackingBatchRequest{DriverID: "driver-1", Locations: locations})
	require.NoError(t, err)
	_, err = ingest.IngestBatch(ctx, testIdent, models.TrackingBatchRequest{DriverID: "driver-2", Locations: locations[:1]})
	require.NoError(t, err)

	t.Run("filters by driver and window", func(t *testing.T) {
		from := baseTime.Add(time.Minute)
		to := baseTime.Add(3 * time.Minute)
		trail, err := ingest.ListTrail(ctx, "org-1", models.TrailQuery{DriverID: "driver-1", From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, trail, 3)
		assert.Equal(t, from, trail[0].RecordedAt)
		assert.Equal(t, to, trail[2].RecordedAt)
	})

	t.Run("applies the limit", func(t *testing.T) {
		trail, err := ingest.ListTrail(ctx, "org-1", models.TrailQuery{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, trail, 2)
	})

	t.Run("scopes to the organization", func(t *testing.T) {
		trail, err := ingest.ListTrail(ctx, "org-2", models.TrailQuery{})
		require.NoError(t, err)
		assert.Empty(t, trail)
	})

	t.Run("rejects an inverted window", func(t *testing.T) {
		from := baseTime.Add(time.Hour)
		to := baseTime
		_, err := ingest.ListTrail(ctx, "org-1", models.TrailQuery{From: &from, To: &to})
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}
