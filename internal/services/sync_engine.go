package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/observability"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

// isClientError reports whether err is the caller's fault rather than storage's.
func isClientError(err error) bool {
	return errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrNotAConflict) ||
		errors.Is(err, models.ErrStaleWrite)
}

// ChangeNotifier is told about committed sync changes.
type ChangeNotifier interface {
	NotifySyncChanged(orgID string, kinds []string, syncVersion int64)
	NotifyConflict(orgID string, payload ConflictFoundPayload)
}

// SyncEngineOptions configures a SyncEngine. Zero values select defaults.
type SyncEngineOptions struct {
	MaxBatchSize int
	Notifier     ChangeNotifier
	Locks        *KeyedLocker
	Metrics      *observability.BusinessMetrics
}

// SyncEngine reconciles batches of offline writes against server state using
// last-write-wins on updated_at, and records every decision in the conflict log.
type SyncEngine struct {
	store        *repository.Store
	conflicts    *ConflictLog
	adapters     [models.KindCount]entitySync
	locks        *KeyedLocker
	notifier     ChangeNotifier
	metrics      *observability.BusinessMetrics
	maxBatchSize int
	logger       *observability.Logger
}

// NewSyncEngine creates a sync engine
func NewSyncEngine(store *repository.Store, calc *GeoCalculator, conflicts *ConflictLog, opts SyncEngineOptions) *SyncEngine {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 500
	}
	if opts.Locks == nil {
		opts.Locks = NewKeyedLocker()
	}

	e := &SyncEngine{
		store:        store,
		conflicts:    conflicts,
		locks:        opts.Locks,
		notifier:     opts.Notifier,
		metrics:      opts.Metrics,
		maxBatchSize: opts.MaxBatchSize,
		logger:       observability.WithField("component", "sync_engine"),
	}
	// Tracking points have no adapter; they bypass reconciliation.
	e.adapters[models.KindMeasurement] = newMeasurementAdapter(calc)
	e.adapters[models.KindJob] = newJobAdapter()
	e.adapters[models.KindExpense] = newExpenseAdapter()
	e.adapters[models.KindPayment] = newPaymentAdapter()
	return e
}

// preparedItem is a pushed item after the side-effect free checks.
type preparedItem struct {
	item    models.SyncItem
	kind    models.EntityKind
	payload interface{}
	point   *models.TrackingPoint
	err     error
}

// pushNotices collects what to announce once the batch has committed.
type pushNotices struct {
	kinds     map[models.EntityKind]bool
	version   int64
	conflicts []ConflictFoundPayload
}

func (n *pushNotices) changed(kind models.EntityKind, version int64) {
	if n.kinds == nil {
		n.kinds = make(map[models.EntityKind]bool)
	}
	n.kinds[kind] = true
	if version > n.version {
		n.version = version
	}
}

func lockKey(orgID string, kind models.EntityKind, offlineID string) string {
	return orgID + "|" + kind.String() + "|" + offlineID
}

// Push applies a batch of client writes in one transaction. Item level problems
// are reported in the result; an error means nothing was written.
func (e *SyncEngine) Push(ctx context.Context, ident models.Identity, items []models.SyncItem) (*models.SyncResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "SyncEngine", "Push")
	defer span.End()
	attrs := []attribute.KeyValue{
		observability.OrganizationID(ident.OrganizationID),
		observability.UserID(ident.UserID),
		observability.BatchSize(len(items)),
	}
	span.SetAttributes(attrs...)
	logger := e.logger.WithContext(ctx).WithAttrs(attrs...)

	if len(items) > e.maxBatchSize {
		return nil, fmt.Errorf("%w: %d items, limit is %d", models.ErrBatchTooLarge, len(items), e.maxBatchSize)
	}

	prepared := make([]preparedItem, len(items))
	keys := make([]string, 0, len(items))
	for i, item := range items {
		prepared[i] = e.prepare(ident, item)
		p := &prepared[i]
		if p.err == nil && p.kind.HasConflictAxis() {
			keys = append(keys, lockKey(ident.OrganizationID, p.kind, p.item.OfflineID))
		}
	}

	unlock := e.locks.Lock(keys...)
	defer unlock()

	var result *models.SyncResult
	var notices pushNotices
	err := e.store.WithTx(ctx, func(tx *repository.Store) error {
		result = &models.SyncResult{Details: make([]models.SyncItemResult, 0, len(items))}
		notices = pushNotices{}
		for i := range prepared {
			res, err := e.pushItem(ctx, tx, ident, &prepared[i], &notices)
			if err != nil {
				return err
			}
			result.Add(res)
		}
		return nil
	})
	if err != nil {
		err = models.Infra("sync push", err)
		observability.RecordError(span, err)
		logger.Errorf("Sync push rolled back: %v", err)
		return nil, err
	}

	for _, d := range result.Details {
		e.metrics.RecordSyncItem(ctx, ident.OrganizationID, d.EntityType, d.Status)
	}
	e.metrics.RecordSyncBatch(ctx, ident.OrganizationID, "push", len(items))
	e.notify(ident.OrganizationID, &notices)

	logger.WithFields(map[string]interface{}{
		"synced":    result.Synced,
		"conflicts": result.Conflicts,
		"errors":    result.Errors,
	}).Info("Sync push processed")
	observability.SetSuccess(span)
	return result, nil
}

// prepare parses and validates an item without touching storage.
func (e *SyncEngine) prepare(ident models.Identity, item models.SyncItem) preparedItem {
	item.OfflineID = strings.TrimSpace(item.OfflineID)
	p := preparedItem{item: item}
	if verr := item.Issues(); verr != nil {
		p.err = verr
		return p
	}

	kind, err := models.ParseEntityKind(item.EntityType)
	if err != nil {
		p.err = err
		return p
	}
	p.kind = kind

	if kind == models.KindTrackingPoint {
		p.point, p.err = decodeTrackingPoint(ident, item.Data)
		return p
	}

	verr := &models.ValidationError{}
	if item.OfflineID == "" {
		verr.Add("offline_id", "is required")
	}
	if item.UpdatedAt.IsZero() {
		verr.Add("updated_at", "is required")
	}
	if verr.HasIssues() {
		p.err = verr
		return p
	}

	p.payload, p.err = e.adapters[kind].Decode(item.Data)
	return p
}

func (e *SyncEngine) pushItem(ctx context.Context, tx *repository.Store, ident models.Identity, p *preparedItem, notices *pushNotices) (models.SyncItemResult, error) {
	if p.err != nil {
		return e.reject(ctx, tx, ident, p.item, p.err)
	}

	if p.kind == models.KindTrackingPoint {
		if err := tx.Tracking().AddBatch(ctx, []*models.TrackingPoint{p.point}); err != nil {
			return models.SyncItemResult{}, err
		}
		entry := models.NewSyncLogEntry(ident, p.kind.String(), p.item.OfflineID, models.SyncActionCreate, models.SyncLogStatusSynced).
			WithEntity(p.point.ID)
		if err := e.conflicts.In(tx).Record(ctx, entry); err != nil {
			return models.SyncItemResult{}, err
		}
		return models.SyncItemResult{
			EntityType: p.kind.String(),
			OfflineID:  p.item.OfflineID,
			Status:     models.ItemStatusSynced,
			Action:     models.SyncActionCreate,
			ID:         p.point.ID,
			LogID:      entry.ID,
		}, nil
	}

	adapter := e.adapters[p.kind]
	orgID := ident.OrganizationID
	clientAt := models.NormalizeTime(p.item.UpdatedAt)

	existing, err := adapter.FindByOfflineID(ctx, tx, orgID, p.item.OfflineID)
	if err != nil {
		return models.SyncItemResult{}, err
	}

	if existing == nil {
		version, err := tx.Counters().Next(ctx, orgID)
		if err != nil {
			return models.SyncItemResult{}, err
		}
		created, err := adapter.Create(ctx, tx, ident, p.item.OfflineID, p.payload, clientAt, version)
		if errors.Is(err, models.ErrValidation) {
			return e.reject(ctx, tx, ident, p.item, err)
		}
		if err != nil {
			return models.SyncItemResult{}, err
		}
		notices.changed(p.kind, version)
		return e.accept(ctx, tx, ident, p.kind, p.item, adapter.Ref(created).ID, models.SyncActionCreate)
	}

	ref := adapter.Ref(existing)
	if ref.UpdatedAt.After(clientAt) {
		return e.conflict(ctx, tx, ident, p.kind, p.item, existing, ref, "server copy is newer than the pushed change", notices)
	}

	version, err := tx.Counters().Next(ctx, orgID)
	if err != nil {
		return models.SyncItemResult{}, err
	}
	_, err = adapter.Update(ctx, tx, existing, p.payload, clientAt, version)
	if errors.Is(err, models.ErrStaleWrite) {
		current, getErr := adapter.GetByID(ctx, tx, orgID, ref.ID)
		if getErr != nil {
			return models.SyncItemResult{}, getErr
		}
		if current == nil {
			current = existing
		}
		return e.conflict(ctx, tx, ident, p.kind, p.item, current, adapter.Ref(current), "server copy changed while the push was applied", notices)
	}
	if err != nil {
		return models.SyncItemResult{}, err
	}
	notices.changed(p.kind, version)
	return e.accept(ctx, tx, ident, p.kind, p.item, ref.ID, models.SyncActionUpdate)
}

func (e *SyncEngine) accept(ctx context.Context, tx *repository.Store, ident models.Identity, kind models.EntityKind, item models.SyncItem, id, action string) (models.SyncItemResult, error) {
	entry := models.NewSyncLogEntry(ident, kind.String(), item.OfflineID, action, models.SyncLogStatusSynced).WithEntity(id)
	if err := e.conflicts.In(tx).Record(ctx, entry); err != nil {
		return models.SyncItemResult{}, err
	}
	return models.SyncItemResult{
		EntityType: kind.String(),
		OfflineID:  item.OfflineID,
		Status:     models.ItemStatusSynced,
		Action:     action,
		ID:         id,
		LogID:      entry.ID,
	}, nil
}

func (e *SyncEngine) reject(ctx context.Context, tx *repository.Store, ident models.Identity, item models.SyncItem, cause error) (models.SyncItemResult, error) {
	entityType := strings.TrimSpace(item.EntityType)
	if entityType == "" {
		entityType = "unknown"
	}
	entry := models.NewSyncLogEntry(ident, entityType, item.OfflineID, models.SyncActionReject, models.SyncLogStatusError).
		WithMessage(cause.Error())
	if err := e.conflicts.In(tx).Record(ctx, entry); err != nil {
		return models.SyncItemResult{}, err
	}

	res := models.SyncItemResult{
		EntityType: entityType,
		OfflineID:  item.OfflineID,
		Status:     models.ItemStatusError,
		Action:     models.SyncActionReject,
		LogID:      entry.ID,
		Error:      cause.Error(),
	}
	var verr *models.ValidationError
	if errors.As(cause, &verr) {
		res.Issues = verr.Issues
	}
	return res, nil
}

func (e *SyncEngine) conflict(ctx context.Context, tx *repository.Store, ident models.Identity, kind models.EntityKind, item models.SyncItem, server interface{}, ref models.SyncRef, reason string, notices *pushNotices) (models.SyncItemResult, error) {
	serverData, err := json.Marshal(server)
	if err != nil {
		return models.SyncItemResult{}, err
	}
	clientAt := models.NormalizeTime(item.UpdatedAt)

	entry := models.NewSyncLogEntry(ident, kind.String(), item.OfflineID, models.SyncActionConflict, models.SyncLogStatusConflict).
		WithEntity(ref.ID).
		WithMessage(reason)
	entry.ConflictData = &models.ConflictData{
		Server:          serverData,
		Client:          item.Data,
		ServerUpdatedAt: ref.UpdatedAt,
		ClientUpdatedAt: clientAt,
		Diff:            snapshotDiff(serverData, item.Data),
	}
	if err := e.conflicts.In(tx).Record(ctx, entry); err != nil {
		return models.SyncItemResult{}, err
	}

	observability.AddEvent(trace.SpanFromContext(ctx), "sync.conflict",
		observability.EntityType(kind.String()),
		observability.OfflineID(item.OfflineID),
		observability.LogID(entry.ID),
	)
	notices.conflicts = append(notices.conflicts, ConflictFoundPayload{
		LogID:      entry.ID,
		EntityType: kind.String(),
		OfflineID:  item.OfflineID,
	})

	serverAt := ref.UpdatedAt
	return models.SyncItemResult{
		EntityType:      kind.String(),
		OfflineID:       item.OfflineID,
		Status:          models.ItemStatusConflict,
		Action:          models.SyncActionConflict,
		ID:              ref.ID,
		LogID:           entry.ID,
		ServerData:      serverData,
		ServerUpdatedAt: &serverAt,
	}, nil
}

func (e *SyncEngine) notify(orgID string, n *pushNotices) {
	if e.notifier == nil {
		return
	}
	if len(n.kinds) > 0 {
		kinds := make([]string, 0, len(n.kinds))
		for kind := range n.kinds {
			kinds = append(kinds, kind.Plural())
		}
		sort.Strings(kinds)
		e.notifier.NotifySyncChanged(orgID, kinds, n.version)
	}
	for _, c := range n.conflicts {
		e.notifier.NotifyConflict(orgID, c)
	}
}

// Pull returns every row of the requested kinds changed after the cursor.
// SinceVersion, when set, takes precedence over Since.
func (e *SyncEngine) Pull(ctx context.Context, orgID string, req models.PullRequest) (*models.PullResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "SyncEngine", "Pull")
	defer span.End()

	kinds := req.Kinds
	if len(kinds) == 0 {
		kinds = models.PullableKinds()
	}
	for _, kind := range kinds {
		if !kind.HasConflictAxis() {
			return nil, models.NewValidationError("include", fmt.Sprintf("%s cannot be pulled", kind.Plural()))
		}
	}
	if req.SinceVersion != nil && *req.SinceVersion < 0 {
		return nil, models.NewValidationError("since_version", "must not be negative")
	}

	result := &models.PullResult{Kinds: kinds, SyncTimestamp: models.NormalizeTime(nowUTC())}
	err := e.store.WithTx(ctx, func(tx *repository.Store) error {
		for _, kind := range kinds {
			if err := e.adapters[kind].Pull(ctx, tx, orgID, req.Since, req.SinceVersion, result); err != nil {
				return err
			}
		}
		version, err := tx.Counters().Current(ctx, orgID)
		if err != nil {
			return err
		}
		result.SyncVersion = version
		return nil
	})
	if err != nil {
		err = models.Infra("sync pull", err)
		observability.RecordError(span, err)
		return nil, err
	}

	e.metrics.RecordSyncBatch(ctx, orgID, "pull", len(result.Measurements)+len(result.Jobs)+len(result.Expenses)+len(result.Payments))
	observability.SetSuccess(span)
	return result, nil
}

// ResolveConflict settles an open conflict. use_server keeps the stored row;
// use_client re-applies the client's snapshot as a fresh server-side write.
func (e *SyncEngine) ResolveConflict(ctx context.Context, ident models.Identity, logID, resolution string) (*models.ResolveConflictResponse, error) {
	ctx, span := observability.StartServiceSpan(ctx, "SyncEngine", "ResolveConflict")
	defer span.End()
	span.SetAttributes(
		observability.OrganizationID(ident.OrganizationID),
		observability.UserID(ident.UserID),
		observability.LogID(logID),
	)

	if err := models.ValidResolution(resolution); err != nil {
		return nil, err
	}

	entry, err := e.conflicts.Get(ctx, ident.OrganizationID, logID)
	if err != nil {
		return nil, err
	}
	if !entry.IsOpenConflict() || entry.ConflictData == nil {
		return nil, fmt.Errorf("sync log entry %s: %w", logID, models.ErrNotAConflict)
	}
	kind, err := models.ParseEntityKind(entry.EntityType)
	if err != nil || !kind.HasConflictAxis() {
		return nil, fmt.Errorf("sync log entry %s: %w", logID, models.ErrNotAConflict)
	}
	adapter := e.adapters[kind]
	span.SetAttributes(observability.EntityType(kind.String()), observability.OfflineID(entry.OfflineID))

	unlock := e.locks.Lock(lockKey(ident.OrganizationID, kind, entry.OfflineID))
	defer unlock()

	var entity interface{}
	var changedVersion int64
	err = e.store.WithTx(ctx, func(tx *repository.Store) error {
		current, err := adapter.FindByOfflineID(ctx, tx, ident.OrganizationID, entry.OfflineID)
		if err != nil {
			return err
		}
		entity = current

		if resolution == models.ResolutionUseClient {
			payload, err := adapter.Decode(entry.ConflictData.Client)
			if err != nil {
				return err
			}
			version, err := tx.Counters().Next(ctx, ident.OrganizationID)
			if err != nil {
				return err
			}

			if current == nil {
				entity, err = adapter.Create(ctx, tx, ident, entry.OfflineID, payload, models.NormalizeTime(nowUTC()), version)
			} else {
				entity, err = adapter.Update(ctx, tx, current, payload, laterThan(adapter.Ref(current).UpdatedAt), version)
			}
			if err != nil {
				return err
			}
			changedVersion = version
		}

		return e.conflicts.In(tx).MarkResolved(ctx, ident, logID, resolution)
	})
	if err != nil {
		if !isClientError(err) {
			err = models.Infra("resolve conflict", err)
		}
		observability.RecordError(span, err)
		return nil, err
	}

	if changedVersion > 0 && e.notifier != nil {
		e.notifier.NotifySyncChanged(ident.OrganizationID, []string{kind.Plural()}, changedVersion)
	}
	e.metrics.RecordConflictResolution(ctx, ident.OrganizationID, resolution)
	e.logger.WithContext(ctx).WithAttrs(
		observability.OrganizationID(ident.OrganizationID),
		observability.LogID(logID),
		attribute.String("resolution", resolution),
	).Info("Sync conflict resolved")

	resp := &models.ResolveConflictResponse{
		LogID:      logID,
		Resolution: resolution,
		Status:     models.SyncLogStatusResolved,
		EntityType: kind.String(),
	}
	if entity != nil {
		if data, err := json.Marshal(entity); err == nil {
			resp.Entity = data
		}
	}
	observability.SetSuccess(span)
	return resp, nil
}
