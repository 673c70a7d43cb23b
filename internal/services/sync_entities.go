package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/repository"
	"github.com/tidwall/gjson"
)

type fieldType int

const (
	fieldString fieldType = iota
	fieldNumber
	fieldTime
	fieldArray
)

// fieldRule is a presence and JSON type check run before a payload is decoded.
type fieldRule struct {
	path     string
	typ      fieldType
	required bool
}

// checkShape reports every missing or mistyped field of a sync payload under "data.".
func checkShape(data json.RawMessage, rules []fieldRule) error {
	verr := &models.ValidationError{}
	if len(data) == 0 || !gjson.ValidBytes(data) {
		verr.Add("data", "must be a JSON object")
		return verr
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		verr.Add("data", "must be a JSON object")
		return verr
	}

	for _, rule := range rules {
		field := "data." + rule.path
		value := root.Get(rule.path)
		if !value.Exists() || value.Type == gjson.Null {
			if rule.required {
				verr.Add(field, "is required")
			}
			continue
		}

		switch rule.typ {
		case fieldString:
			if value.Type != gjson.String {
				verr.Add(field, "must be a string")
			}
		case fieldNumber:
			if value.Type != gjson.Number {
				verr.Add(field, "must be a number")
			}
		case fieldTime:
			if value.Type != gjson.String {
				verr.Add(field, "must be an RFC 3339 timestamp")
			} else if _, err := time.Parse(time.RFC3339Nano, value.Str); err != nil {
				verr.Add(field, "must be an RFC 3339 timestamp")
			}
		case fieldArray:
			if !value.IsArray() {
				verr.Add(field, "must be an array")
			}
		}
	}

	if verr.HasIssues() {
		return verr
	}
	return nil
}

// decodePayload runs the shape rules, decodes data into p and validates it.
func decodePayload(data json.RawMessage, rules []fieldRule, p interface{ Validate() error }) error {
	if err := checkShape(data, rules); err != nil {
		return err
	}
	if err := json.Unmarshal(data, p); err != nil {
		return models.NewValidationError("data", "could not be decoded: "+err.Error())
	}
	if err := p.Validate(); err != nil {
		if verr, ok := err.(*models.ValidationError); ok {
			return verr.Prefix("data")
		}
		return err
	}
	return nil
}

// entitySync reconciles one syncable kind. Entities and payloads cross this
// interface untyped so the engine can hold every kind in one dispatch table.
type entitySync interface {
	Kind() models.EntityKind
	Decode(data json.RawMessage) (interface{}, error)
	FindByOfflineID(ctx context.Context, tx *repository.Store, orgID, offlineID string) (interface{}, error)
	GetByID(ctx context.Context, tx *repository.Store, orgID, id string) (interface{}, error)
	Ref(entity interface{}) models.SyncRef
	// Create inserts a new row from a decoded payload. It may still reject the
	// payload with a validation error before writing.
	Create(ctx context.Context, tx *repository.Store, ident models.Identity, offlineID string, payload interface{}, updatedAt time.Time, version int64) (interface{}, error)
	// Update overwrites a copy of entity with payload; the write is a
	// compare-and-swap on the entity's current updated_at.
	Update(ctx context.Context, tx *repository.Store, entity interface{}, payload interface{}, updatedAt time.Time, version int64) (interface{}, error)
	Pull(ctx context.Context, tx *repository.Store, orgID string, since time.Time, sinceVersion *int64, out *models.PullResult) error
}

// syncAdapter implements entitySync for entity type T and payload type P.
type syncAdapter[T any, P any] struct {
	kind   models.EntityKind
	store  func(tx *repository.Store) repository.SyncStore[T]
	decode func(data json.RawMessage) (*P, error)
	build  func(ident models.Identity, p *P) (*T, error)
	apply  func(entity *T, p *P)
	stamp  func(entity *T, updatedAt time.Time, version int64)
	ref    func(entity *T) models.SyncRef
	pull   func(out *models.PullResult, rows []*T)
}

func (a *syncAdapter[T, P]) Kind() models.EntityKind {
	return a.kind
}

func (a *syncAdapter[T, P]) Decode(data json.RawMessage) (interface{}, error) {
	return a.decode(data)
}

func (a *syncAdapter[T, P]) FindByOfflineID(ctx context.Context, tx *repository.Store, orgID, offlineID string) (interface{}, error) {
	entity, err := a.store(tx).FindByOfflineID(ctx, orgID, offlineID)
	if err != nil || entity == nil {
		return nil, err
	}
	return entity, nil
}

func (a *syncAdapter[T, P]) GetByID(ctx context.Context, tx *repository.Store, orgID, id string) (interface{}, error) {
	entity, err := a.store(tx).GetByID(ctx, orgID, id)
	if err != nil || entity == nil {
		return nil, err
	}
	return entity, nil
}

func (a *syncAdapter[T, P]) Ref(entity interface{}) models.SyncRef {
	return a.ref(entity.(*T))
}

func (a *syncAdapter[T, P]) Create(ctx context.Context, tx *repository.Store, ident models.Identity, offlineID string, payload interface{}, updatedAt time.Time, version int64) (interface{}, error) {
	entity, err := a.build(ident, payload.(*P))
	if err != nil {
		return nil, err
	}
	a.apply(entity, payload.(*P))
	a.stamp(entity, updatedAt, version)
	setOfflineID(entity, offlineID)

	if err := a.store(tx).Create(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (a *syncAdapter[T, P]) Update(ctx context.Context, tx *repository.Store, entity interface{}, payload interface{}, updatedAt time.Time, version int64) (interface{}, error) {
	current := entity.(*T)
	expected := a.ref(current).UpdatedAt

	next := new(T)
	*next = *current
	a.apply(next, payload.(*P))
	a.stamp(next, updatedAt, version)

	if err := a.store(tx).Update(ctx, next, expected); err != nil {
		return nil, err
	}
	return next, nil
}

func (a *syncAdapter[T, P]) Pull(ctx context.Context, tx *repository.Store, orgID string, since time.Time, sinceVersion *int64, out *models.PullResult) error {
	rows, err := a.store(tx).ListUpdatedSince(ctx, orgID, since, sinceVersion)
	if err != nil {
		return err
	}
	a.pull(out, rows)
	return nil
}

func setOfflineID(entity interface{}, offlineID string) {
	switch e := entity.(type) {
	case *models.Measurement:
		e.OfflineID = offlineID
	case *models.Job:
		e.OfflineID = offlineID
	case *models.Expense:
		e.OfflineID = offlineID
	case *models.Payment:
		e.OfflineID = offlineID
	}
}

// measurementInput is a validated measurement payload with its derived geometry.
// Geometry is nil when the payload leaves the polygon unchanged.
type measurementInput struct {
	models.MeasurementPayload
	geometry *models.Geometry
}

var measurementRules = []fieldRule{
	{path: "name", typ: fieldString, required: true},
	{path: "polygon", typ: fieldArray},
	{path: "status", typ: fieldString},
}

func newMeasurementAdapter(calc *GeoCalculator) *syncAdapter[models.Measurement, measurementInput] {
	return &syncAdapter[models.Measurement, measurementInput]{
		kind:  models.KindMeasurement,
		store: func(tx *repository.Store) repository.SyncStore[models.Measurement] { return tx.Measurements() },
		decode: func(data json.RawMessage) (*measurementInput, error) {
			in := &measurementInput{}
			if err := decodePayload(data, measurementRules, in); err != nil {
				return nil, err
			}
			if in.Polygon != nil {
				geometry, err := calc.Compute(in.Polygon)
				if err != nil {
					if verr, ok := err.(*models.ValidationError); ok {
						return nil, verr.Prefix("data")
					}
					return nil, err
				}
				in.geometry = &geometry
			}
			return in, nil
		},
		build: func(ident models.Identity, in *measurementInput) (*models.Measurement, error) {
			if in.geometry == nil {
				verr := models.NewValidationError("data.polygon", "is required when creating a measurement")
				verr.Polygon = true
				return nil, verr
			}
			return models.NewMeasurement(ident.OrganizationID, ident.UserID, in.Name, in.Polygon, *in.geometry), nil
		},
		apply: func(m *models.Measurement, in *measurementInput) {
			m.ApplyPayload(&in.MeasurementPayload, in.geometry)
		},
		stamp: func(m *models.Measurement, updatedAt time.Time, version int64) {
			m.UpdatedAt = updatedAt
			m.Version = version
			m.SyncStatus = models.SyncStatusSynced
		},
		ref: (*models.Measurement).SyncRef,
		pull: func(out *models.PullResult, rows []*models.Measurement) {
			out.Measurements = rows
		},
	}
}

var jobRules = []fieldRule{
	{path: "title", typ: fieldString, required: true},
	{path: "service_type", typ: fieldString, required: true},
	{path: "status", typ: fieldString},
	{path: "land_id", typ: fieldString},
	{path: "customer_id", typ: fieldString},
	{path: "driver_id", typ: fieldString},
	{path: "machine_id", typ: fieldString},
	{path: "scheduled_at", typ: fieldTime},
	{path: "completed_at", typ: fieldTime},
	{path: "notes", typ: fieldString},
}

func newJobAdapter() *syncAdapter[models.Job, models.JobPayload] {
	return &syncAdapter[models.Job, models.JobPayload]{
		kind:  models.KindJob,
		store: func(tx *repository.Store) repository.SyncStore[models.Job] { return tx.Jobs() },
		decode: func(data json.RawMessage) (*models.JobPayload, error) {
			p := &models.JobPayload{}
			if err := decodePayload(data, jobRules, p); err != nil {
				return nil, err
			}
			return p, nil
		},
		build: func(ident models.Identity, _ *models.JobPayload) (*models.Job, error) {
			return &models.Job{
				ID:             uuid.New().String(),
				OrganizationID: ident.OrganizationID,
				CreatedBy:      ident.UserID,
				CreatedAt:      models.NormalizeTime(time.Now()),
			}, nil
		},
		apply: func(j *models.Job, p *models.JobPayload) { p.ApplyTo(j) },
		stamp: func(j *models.Job, updatedAt time.Time, version int64) {
			j.UpdatedAt = updatedAt
			j.Version = version
			j.SyncStatus = models.SyncStatusSynced
		},
		ref: (*models.Job).SyncRef,
		pull: func(out *models.PullResult, rows []*models.Job) {
			out.Jobs = rows
		},
	}
}

var expenseRules = []fieldRule{
	{path: "category", typ: fieldString, required: true},
	{path: "amount", typ: fieldNumber, required: true},
	{path: "currency", typ: fieldString},
	{path: "description", typ: fieldString},
	{path: "expense_date", typ: fieldTime, required: true},
	{path: "job_id", typ: fieldString},
}

func newExpenseAdapter() *syncAdapter[models.Expense, models.ExpensePayload] {
	return &syncAdapter[models.Expense, models.ExpensePayload]{
		kind:  models.KindExpense,
		store: func(tx *repository.Store) repository.SyncStore[models.Expense] { return tx.Expenses() },
		decode: func(data json.RawMessage) (*models.ExpensePayload, error) {
			p := &models.ExpensePayload{}
			if err := decodePayload(data, expenseRules, p); err != nil {
				return nil, err
			}
			return p, nil
		},
		build: func(ident models.Identity, _ *models.ExpensePayload) (*models.Expense, error) {
			return &models.Expense{
				ID:             uuid.New().String(),
				OrganizationID: ident.OrganizationID,
				CreatedBy:      ident.UserID,
				CreatedAt:      models.NormalizeTime(time.Now()),
			}, nil
		},
		apply: func(e *models.Expense, p *models.ExpensePayload) { p.ApplyTo(e) },
		stamp: func(e *models.Expense, updatedAt time.Time, version int64) {
			e.UpdatedAt = updatedAt
			e.Version = version
			e.SyncStatus = models.SyncStatusSynced
		},
		ref: (*models.Expense).SyncRef,
		pull: func(out *models.PullResult, rows []*models.Expense) {
			out.Expenses = rows
		},
	}
}

var paymentRules = []fieldRule{
	{path: "amount", typ: fieldNumber, required: true},
	{path: "currency", typ: fieldString},
	{path: "method", typ: fieldString},
	{path: "reference", typ: fieldString},
	{path: "paid_at", typ: fieldTime, required: true},
	{path: "job_id", typ: fieldString},
	{path: "customer_id", typ: fieldString},
}

func newPaymentAdapter() *syncAdapter[models.Payment, models.PaymentPayload] {
	return &syncAdapter[models.Payment, models.PaymentPayload]{
		kind:  models.KindPayment,
		store: func(tx *repository.Store) repository.SyncStore[models.Payment] { return tx.Payments() },
		decode: func(data json.RawMessage) (*models.PaymentPayload, error) {
			p := &models.PaymentPayload{}
			if err := decodePayload(data, paymentRules, p); err != nil {
				return nil, err
			}
			return p, nil
		},
		build: func(ident models.Identity, _ *models.PaymentPayload) (*models.Payment, error) {
			return &models.Payment{
				ID:             uuid.New().String(),
				OrganizationID: ident.OrganizationID,
				CreatedBy:      ident.UserID,
				CreatedAt:      models.NormalizeTime(time.Now()),
			}, nil
		},
		apply: func(pay *models.Payment, p *models.PaymentPayload) { p.ApplyTo(pay) },
		stamp: func(pay *models.Payment, updatedAt time.Time, version int64) {
			pay.UpdatedAt = updatedAt
			pay.Version = version
			pay.SyncStatus = models.SyncStatusSynced
		},
		ref: (*models.Payment).SyncRef,
		pull: func(out *models.PullResult, rows []*models.Payment) {
			out.Payments = rows
		},
	}
}

// trackingPointInput is one breadcrumb pushed through the sync endpoint.
type trackingPointInput struct {
	DriverID string  `json:"driver_id"`
	JobID    *string `json:"job_id"`
	models.TrackingLocation
}

var trackingPointRules = []fieldRule{
	{path: "driver_id", typ: fieldString, required: true},
	{path: "job_id", typ: fieldString},
	{path: "latitude", typ: fieldNumber},
	{path: "longitude", typ: fieldNumber},
	{path: "recorded_at", typ: fieldTime},
	{path: "nmea", typ: fieldString},
}

// decodeTrackingPoint validates a pushed breadcrumb. Position comes from
// latitude/longitude or from an NMEA sentence.
func decodeTrackingPoint(ident models.Identity, data json.RawMessage) (*models.TrackingPoint, error) {
	if err := checkShape(data, trackingPointRules); err != nil {
		return nil, err
	}
	var in trackingPointInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, models.NewValidationError("data", "could not be decoded: "+err.Error())
	}

	verr := &models.ValidationError{}
	validateLocation(&in.TrackingLocation, verr, "data.")
	if verr.HasIssues() {
		return nil, verr
	}
	return models.NewTrackingPoint(ident, in.DriverID, in.JobID, in.TrackingLocation), nil
}
