package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/observability"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/repository"
)

const (
	defaultMeasurementPageSize = 50
	maxMeasurementPageSize     = 200
)

// MeasurementService handles measurements written directly through the API
// rather than through a sync batch.
type MeasurementService struct {
	store    *repository.Store
	calc     *GeoCalculator
	locks    *KeyedLocker
	notifier ChangeNotifier
	metrics  *observability.BusinessMetrics
	logger   *observability.Logger
}

// NewMeasurementService creates a measurement service. locks should be the
// locker shared with the sync engine; notifier and metrics may be nil.
func NewMeasurementService(store *repository.Store, calc *GeoCalculator, locks *KeyedLocker, notifier ChangeNotifier, metrics *observability.BusinessMetrics) *MeasurementService {
	if locks == nil {
		locks = NewKeyedLocker()
	}
	return &MeasurementService{
		store:    store,
		calc:     calc,
		locks:    locks,
		notifier: notifier,
		metrics:  metrics,
		logger:   observability.WithField("component", "measurement_service"),
	}
}

// Calculate previews the geometry of a polygon without storing anything.
func (s *MeasurementService) Calculate(ctx context.Context, polygon models.Polygon) (models.Geometry, error) {
	geometry, err := s.calc.Compute(polygon)
	if err != nil {
		return models.Geometry{}, err
	}
	s.metrics.RecordMeasurement(ctx, "preview", geometry.AreaHectares)
	return geometry, nil
}

// Create stores a new measurement. Creating again with an offline id that is
// already stored returns the existing measurement.
func (s *MeasurementService) Create(ctx context.Context, ident models.Identity, name string, polygon models.Polygon, offlineID string) (*models.Measurement, error) {
	ctx, span := observability.StartServiceSpan(ctx, "MeasurementService", "Create")
	defer span.End()

	name = strings.TrimSpace(name)
	offlineID = strings.TrimSpace(offlineID)
	if name == "" {
		return nil, models.NewValidationError("name", "is required")
	}
	geometry, err := s.calc.Compute(polygon)
	if err != nil {
		return nil, err
	}

	if offlineID != "" {
		unlock := s.locks.Lock(lockKey(ident.OrganizationID, models.KindMeasurement, offlineID))
		defer unlock()
	}

	var created *models.Measurement
	var version int64
	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		if offlineID != "" {
			existing, err := tx.Measurements().FindByOfflineID(ctx, ident.OrganizationID, offlineID)
			if err != nil {
				return err
			}
			if existing != nil {
				created = existing
				return nil
			}
		}

		v, err := tx.Counters().Next(ctx, ident.OrganizationID)
		if err != nil {
			return err
		}
		m := models.NewMeasurement(ident.OrganizationID, ident.UserID, name, polygon, geometry)
		m.OfflineID = offlineID
		m.Version = v
		if err := tx.Measurements().Create(ctx, m); err != nil {
			return err
		}
		created, version = m, v
		return nil
	})
	if err != nil {
		err = models.Infra("create measurement", err)
		observability.RecordError(span, err)
		return nil, err
	}

	if version > 0 {
		s.metrics.RecordMeasurement(ctx, "api", created.AreaHectares)
		s.notifyChanged(ident.OrganizationID, version)
		s.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"organization_id": ident.OrganizationID,
			"measurement_id":  created.ID,
			"area_hectares":   created.AreaHectares,
		}).Info("Measurement created")
	}
	observability.SetSuccess(span)
	return created, nil
}

// Get returns a measurement of the organization, soft-deleted ones included.
func (s *MeasurementService) Get(ctx context.Context, orgID, id string) (*models.Measurement, error) {
	m, err := s.store.Measurements().GetByID(ctx, orgID, id)
	if err != nil {
		return nil, models.Infra("get measurement", err)
	}
	if m == nil {
		return nil, fmt.Errorf("measurement %s: %w", id, models.ErrNotFound)
	}
	return m, nil
}

// List pages through live measurements, newest first.
func (s *MeasurementService) List(ctx context.Context, orgID, status string, skip, take int) (*models.MeasurementListResponse, error) {
	if status != "" && !models.ValidMeasurementStatus(status) {
		return nil, models.NewValidationError("status", "must be one of draft, confirmed, archived")
	}
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = defaultMeasurementPageSize
	}
	if take > maxMeasurementPageSize {
		take = maxMeasurementPageSize
	}

	items, total, err := s.store.Measurements().FindByOrganization(ctx, orgID, status, skip, take)
	if err != nil {
		return nil, models.Infra("list measurements", err)
	}
	if items == nil {
		items = []*models.Measurement{}
	}
	return &models.MeasurementListResponse{
		Measurements: items,
		TotalCount:   total,
		Skip:         skip,
		Take:         take,
	}, nil
}

// ReplacePolygon swaps the polygon and every derived value in one write.
func (s *MeasurementService) ReplacePolygon(ctx context.Context, ident models.Identity, id string, polygon models.Polygon) (*models.Measurement, error) {
	ctx, span := observability.StartServiceSpan(ctx, "MeasurementService", "ReplacePolygon")
	defer span.End()

	geometry, err := s.calc.Compute(polygon)
	if err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, ident.OrganizationID, id)
	if err != nil {
		return nil, err
	}
	if current.IsDeleted() {
		return nil, fmt.Errorf("measurement %s: %w", id, models.ErrNotFound)
	}
	unlock := s.locks.Lock(s.measurementKey(current))
	defer unlock()

	var updated *models.Measurement
	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		// Re-read under the lock so a sync write that landed in between is not lost.
		m, err := tx.Measurements().GetByID(ctx, ident.OrganizationID, id)
		if err != nil {
			return err
		}
		if m == nil || m.IsDeleted() {
			return fmt.Errorf("measurement %s: %w", id, models.ErrNotFound)
		}

		version, err := tx.Counters().Next(ctx, ident.OrganizationID)
		if err != nil {
			return err
		}
		expected := m.UpdatedAt
		next := *m
		next.SetPolygon(polygon, geometry)
		next.SyncStatus = models.SyncStatusSynced
		next.Version = version
		next.UpdatedAt = laterThan(expected)
		if err := tx.Measurements().Update(ctx, &next, expected); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			err = models.Infra("replace polygon", err)
		}
		observability.RecordError(span, err)
		return nil, err
	}

	s.metrics.RecordMeasurement(ctx, "api", updated.AreaHectares)
	s.notifyChanged(ident.OrganizationID, updated.Version)
	observability.SetSuccess(span)
	return updated, nil
}

// Delete soft deletes a measurement so pulls can report the tombstone.
func (s *MeasurementService) Delete(ctx context.Context, ident models.Identity, id string) error {
	ctx, span := observability.StartServiceSpan(ctx, "MeasurementService", "Delete")
	defer span.End()

	current, err := s.Get(ctx, ident.OrganizationID, id)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(s.measurementKey(current))
	defer unlock()

	var version int64
	err = s.store.WithTx(ctx, func(tx *repository.Store) error {
		m, err := tx.Measurements().GetByID(ctx, ident.OrganizationID, id)
		if err != nil {
			return err
		}
		if m == nil || m.IsDeleted() {
			return fmt.Errorf("measurement %s: %w", id, models.ErrNotFound)
		}

		v, err := tx.Counters().Next(ctx, ident.OrganizationID)
		if err != nil {
			return err
		}
		ok, err := tx.Measurements().SoftDelete(ctx, ident.OrganizationID, id, laterThan(m.UpdatedAt), v)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("measurement %s: %w", id, models.ErrNotFound)
		}
		version = v
		return nil
	})
	if err != nil {
		if !isClientError(err) {
			err = models.Infra("delete measurement", err)
		}
		observability.RecordError(span, err)
		return err
	}

	s.notifyChanged(ident.OrganizationID, version)
	s.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"organization_id": ident.OrganizationID,
		"measurement_id":  id,
	}).Info("Measurement deleted")
	observability.SetSuccess(span)
	return nil
}

func (s *MeasurementService) measurementKey(m *models.Measurement) string {
	if m.OfflineID != "" {
		return lockKey(m.OrganizationID, models.KindMeasurement, m.OfflineID)
	}
	return lockKey(m.OrganizationID, models.KindMeasurement, "id:"+m.ID)
}

func (s *MeasurementService) notifyChanged(orgID string, version int64) {
	if s.notifier != nil {
		s.notifier.NotifySyncChanged(orgID, []string{models.KindMeasurement.Plural()}, version)
	}
}

// laterThan returns the current time, or stored plus one microsecond when the
// clock has not moved past it, so server writes always advance updated_at.
func laterThan(stored time.Time) time.Time {
	at := models.NormalizeTime(nowUTC())
	if !at.After(stored) {
		at = stored.Add(time.Microsecond)
	}
	return at
}
