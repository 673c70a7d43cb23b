package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdent = models.Identity{OrganizationID: "org-1", UserID: "user-1", DeviceID: "device-1"}

type recordingNotifier struct {
	mu        sync.Mutex
	changed   [][]string
	versions  []int64
	conflicts []ConflictFoundPayload
}

func (n *recordingNotifier) NotifySyncChanged(orgID string, kinds []string, syncVersion int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, kinds)
	n.versions = append(n.versions, syncVersion)
}

func (n *recordingNotifier) NotifyConflict(orgID string, payload ConflictFoundPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conflicts = append(n.conflicts, payload)
}

func setupServiceStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return repository.NewStore(db, repository.DialectSQLite, nil)
}

func setupEngine(t *testing.T, maxBatch int) (*SyncEngine, *repository.Store, *recordingNotifier) {
	t.Helper()
	store := setupServiceStore(t)
	notifier := &recordingNotifier{}
	engine := NewSyncEngine(store, NewGeoCalculator(), NewConflictLog(store), SyncEngineOptions{
		MaxBatchSize: maxBatch,
		Notifier:     notifier,
	})
	return engine, store, notifier
}

func syncItem(t *testing.T, kind, offlineID string, updatedAt time.Time, data interface{}) models.SyncItem {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return models.SyncItem{EntityType: kind, OfflineID: offlineID, UpdatedAt: updatedAt, Data: raw}
}

func measurementData(name string, polygon models.Polygon) map[string]interface{} {
	return map[string]interface{}{"name": name, "polygon": polygon}
}

func jobData(title string) map[string]interface{} {
	return map[string]interface{}{"title": title, "service_type": "ploughing"}
}

var baseTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func TestSyncEngine_PushCreate(t *testing.T) {
	ctx := context.Background()
	engine, store, notifier := setupEngine(t, 100)
	polygon := square(7.0, 80.0, 0.001)

	result, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "measurement", "m-1", baseTime, measurementData("North field", polygon)),
	})
	require.NoError(t, err)
	require.Len(t, result.Details, 1)
	assert.Equal(t, 1, result.Synced)

	detail := result.Details[0]
	assert.Equal(t, models.ItemStatusSynced, detail.Status)
	assert.Equal(t, models.SyncActionCreate, detail.Action)
	assert.NotEmpty(t, detail.ID)
	assert.NotEmpty(t, detail.LogID)

	stored, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	expected, err := NewGeoCalculator().Compute(polygon)
	require.NoError(t, err)
	assert.Equal(t, expected, stored.Geometry())
	assert.True(t, baseTime.Equal(stored.UpdatedAt))
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, models.SyncStatusSynced, stored.SyncStatus)

	require.Len(t, notifier.changed, 1)
	assert.Equal(t, []string{"measurements"}, notifier.changed[0])
	assert.Equal(t, int64(1), notifier.versions[0])
}

func TestSyncEngine_IdempotentRepush(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t, 100)
	item := syncItem(t, "job", "j-1", baseTime, jobData("Plough east block"))

	first, err := engine.Push(ctx, testIdent, []models.SyncItem{item})
	require.NoError(t, err)
	second, err := engine.Push(ctx, testIdent, []models.SyncItem{item})
	require.NoError(t, err)

	assert.Equal(t, models.ItemStatusSynced, second.Details[0].Status)
	assert.Equal(t, first.Details[0].ID, second.Details[0].ID)

	rows, err := store.Jobs().ListUpdatedSince(ctx, "org-1", time.Time{}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Plough east block", rows[0].Title)
	assert.True(t, baseTime.Equal(rows[0].UpdatedAt))
}

func TestSyncEngine_OlderPushIsConflict(t *testing.T) {
	ctx := context.Background()
	engine, store, notifier := setupEngine(t, 100)
	serverPolygon := square(7.0, 80.0, 0.001)

	_, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "measurement", "m-1", baseTime.Add(time.Hour), measurementData("Server name", serverPolygon)),
	})
	require.NoError(t, err)
	before, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
	require.NoError(t, err)

	result, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "measurement", "m-1", baseTime, measurementData("Stale name", square(7.0, 80.0, 0.002))),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)

	detail := result.Details[0]
	assert.Equal(t, models.ItemStatusConflict, detail.Status)
	assert.Equal(t, before.ID, detail.ID)
	require.NotNil(t, detail.ServerUpdatedAt)
	assert.True(t, before.UpdatedAt.Equal(*detail.ServerUpdatedAt))
	assert.Contains(t, string(detail.ServerData), "Server name")

	after, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entry, err := engine.conflicts.Get(ctx, "org-1", detail.LogID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncLogStatusConflict, entry.Status)
	require.NotNil(t, entry.ConflictData)
	assert.True(t, baseTime.Equal(entry.ConflictData.ClientUpdatedAt))
	assert.Contains(t, entry.ConflictData.Diff, `-   "name": "Server name"`)
	assert.Contains(t, entry.ConflictData.Diff, `+   "name": "Stale name"`)

	require.Len(t, notifier.conflicts, 1)
	assert.Equal(t, detail.LogID, notifier.conflicts[0].LogID)
}

func TestSyncEngine_NewerOrEqualPushWins(t *testing.T) {
	ctx := context.Background()

	for name, offset := range map[string]time.Duration{"newer": time.Minute, "equal": 0} {
		t.Run(name, func(t *testing.T) {
			engine, store, _ := setupEngine(t, 100)
			_, err := engine.Push(ctx, testIdent, []models.SyncItem{
				syncItem(t, "measurement", "m-1", baseTime, measurementData("Old", square(7.0, 80.0, 0.001))),
			})
			require.NoError(t, err)

			newPolygon := square(7.0, 80.0, 0.002)
			result, err := engine.Push(ctx, testIdent, []models.SyncItem{
				syncItem(t, "measurement", "m-1", baseTime.Add(offset), measurementData("New", newPolygon)),
			})
			require.NoError(t, err)
			assert.Equal(t, models.ItemStatusSynced, result.Details[0].Status)
			assert.Equal(t, models.SyncActionUpdate, result.Details[0].Action)

			stored, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
			require.NoError(t, err)
			expected, err := NewGeoCalculator().Compute(newPolygon)
			require.NoError(t, err)
			assert.Equal(t, "New", stored.Name)
			assert.Equal(t, expected, stored.Geometry())
			assert.True(t, baseTime.Add(offset).Equal(stored.UpdatedAt))
			assert.Equal(t, int64(2), stored.Version)
		})
	}
}

func TestSyncEngine_UpdateWithoutPolygonKeepsGeometry(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t, 100)
	polygon := square(7.0, 80.0, 0.001)

	_, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "measurement", "m-1", baseTime, measurementData("Field", polygon)),
	})
	require.NoError(t, err)
	before, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
	require.NoError(t, err)

	result, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "measurement", "m-1", baseTime.Add(time.Minute), map[string]interface{}{"name": "Renamed"}),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusSynced, result.Details[0].Status)

	after, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", after.Name)
	assert.Equal(t, before.Geometry(), after.Geometry())
	assert.Equal(t, before.Polygon, after.Polygon)
}

func TestSyncEngine_InvalidItemsDoNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t, 100)

	items := []models.SyncItem{
		syncItem(t, "job", "j-1", baseTime, jobData("One")),
		syncItem(t, "measurement", "m-bad", baseTime, measurementData("Line", models.Polygon{
			{Latitude: 7.0, Longitude: 80.0},
			{Latitude: 7.1, Longitude: 80.1},
		})),
		syncItem(t, "expense", "e-1", baseTime, map[string]interface{}{
			"category": "fuel", "amount": 42.5, "expense_date": baseTime,
		}),
		syncItem(t, "payment", "p-1", baseTime, map[string]interface{}{
			"amount": 100, "paid_at": baseTime, "method": "cash",
		}),
	}

	result, err := engine.Push(ctx, testIdent, items)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Synced)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.Details, 4)

	bad := result.Details[1]
	assert.Equal(t, models.ItemStatusError, bad.Status)
	assert.Equal(t, models.SyncActionReject, bad.Action)
	assert.Equal(t, "m-bad", bad.OfflineID)
	require.NotEmpty(t, bad.Issues)
	assert.Contains(t, bad.Issues[0].Field, "data.polygon")

	missing, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-bad")
	require.NoError(t, err)
	assert.Nil(t, missing)

	entry, err := engine.conflicts.Get(ctx, "org-1", bad.LogID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncLogStatusError, entry.Status)
	require.NotNil(t, entry.Message)
}

func TestSyncEngine_ItemLevelValidation(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := setupEngine(t, 100)

	tests := []struct {
		name  string
		item  models.SyncItem
		field string
	}{
		{
			name:  "unknown entity type",
			item:  syncItem(t, "widget", "w-1", baseTime, map[string]interface{}{}),
			field: "entity_type",
		},
		{
			name:  "missing offline id",
			item:  syncItem(t, "job", " ", baseTime, jobData("x")),
			field: "offline_id",
		},
		{
			name:  "missing updated_at",
			item:  syncItem(t, "job", "j-1", time.Time{}, jobData("x")),
			field: "updated_at",
		},
		{
			name:  "mistyped field",
			item:  syncItem(t, "expense", "e-1", baseTime, map[string]interface{}{"category": "fuel", "amount": "ten", "expense_date": baseTime}),
			field: "data.amount",
		},
		{
			name:  "new measurement without polygon",
			item:  syncItem(t, "measurement", "m-1", baseTime, map[string]interface{}{"name": "No shape"}),
			field: "data.polygon",
		},
		{
			name:  "data is not an object",
			item:  models.SyncItem{EntityType: "job", OfflineID: "j-2", UpdatedAt: baseTime, Data: json.RawMessage(`[1,2]`)},
			field: "data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Push(ctx, testIdent, []models.SyncItem{tt.item})
			require.NoError(t, err)
			require.Len(t, result.Details, 1)
			detail := result.Details[0]
			assert.Equal(t, models.ItemStatusError, detail.Status)
			require.NotEmpty(t, detail.Issues)
			assert.Equal(t, tt.field, detail.Issues[0].Field)
		})
	}
}

func TestSyncEngine_BatchTooLarge(t *testing.T) {
	engine, _, _ := setupEngine(t, 2)
	items := []models.SyncItem{
		syncItem(t, "job", "j-1", baseTime, jobData("1")),
		syncItem(t, "job", "j-2", baseTime, jobData("2")),
		syncItem(t, "job", "j-3", baseTime, jobData("3")),
	}

	_, err := engine.Push(context.Background(), testIdent, items)
	assert.ErrorIs(t, err, models.ErrBatchTooLarge)
}

func TestSyncEngine_TrackingPointInPush(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t, 100)

	result, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "tracking_point", "tp-1", time.Time{}, map[string]interface{}{
			"driver_id": "driver-1", "latitude": 7.01, "longitude": 80.02, "recorded_at": baseTime,
		}),
		syncItem(t, "tracking_point", "tp-2", time.Time{}, map[string]interface{}{
			"driver_id": "driver-1", "latitude": 97.0, "longitude": 80.02, "recorded_at": baseTime,
		}),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, "data.latitude", result.Details[1].Issues[0].Field)

	trail, err := store.Tracking().ListTrail(ctx, "org-1", models.TrailQuery{DriverID: "driver-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, result.Details[0].ID, trail[0].ID)
	assert.Equal(t, 7.01, trail[0].Latitude)
}

func TestSyncEngine_Pull(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := setupEngine(t, 100)

	_, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "job", "j-1", baseTime, jobData("First")),
		syncItem(t, "measurement", "m-1", baseTime.Add(time.Minute), measurementData("Field", square(7.0, 80.0, 0.001))),
	})
	require.NoError(t, err)
	_, err = engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "job", "j-2", baseTime.Add(2*time.Minute), jobData("Second")),
	})
	require.NoError(t, err)

	t.Run("everything by default", func(t *testing.T) {
		result, err := engine.Pull(ctx, "org-1", models.PullRequest{})
		require.NoError(t, err)
		assert.Len(t, result.Jobs, 2)
		assert.Len(t, result.Measurements, 1)
		assert.Equal(t, int64(3), result.SyncVersion)
		assert.False(t, result.SyncTimestamp.IsZero())
	})

	t.Run("since timestamp", func(t *testing.T) {
		result, err := engine.Pull(ctx, "org-1", models.PullRequest{
			Since: baseTime,
			Kinds: []models.EntityKind{models.KindJob},
		})
		require.NoError(t, err)
		require.Len(t, result.Jobs, 1)
		assert.Equal(t, "Second", result.Jobs[0].Title)
		assert.Nil(t, result.Measurements)
	})

	t.Run("since version", func(t *testing.T) {
		since := int64(1)
		result, err := engine.Pull(ctx, "org-1", models.PullRequest{SinceVersion: &since})
		require.NoError(t, err)
		assert.Len(t, result.Jobs, 1)
		assert.Len(t, result.Measurements, 1)
	})

	t.Run("other organization sees nothing", func(t *testing.T) {
		result, err := engine.Pull(ctx, "org-2", models.PullRequest{})
		require.NoError(t, err)
		assert.Empty(t, result.Jobs)
		assert.Equal(t, int64(0), result.SyncVersion)
	})

	t.Run("tracking points cannot be pulled", func(t *testing.T) {
		_, err := engine.Pull(ctx, "org-1", models.PullRequest{Kinds: []models.EntityKind{models.KindTrackingPoint}})
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func pushConflict(t *testing.T, engine *SyncEngine, clientPolygon models.Polygon) string {
	t.Helper()
	ctx := context.Background()
	_, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "measurement", "m-1", baseTime.Add(time.Hour), measurementData("Server", square(7.0, 80.0, 0.001))),
	})
	require.NoError(t, err)
	result, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "measurement", "m-1", baseTime, measurementData("Client", clientPolygon)),
	})
	require.NoError(t, err)
	require.Equal(t, models.ItemStatusConflict, result.Details[0].Status)
	return result.Details[0].LogID
}

func TestSyncEngine_ResolveConflict(t *testing.T) {
	ctx := context.Background()
	clientPolygon := square(7.0, 80.0, 0.003)

	t.Run("use_client applies the client snapshot", func(t *testing.T) {
		engine, store, notifier := setupEngine(t, 100)
		logID := pushConflict(t, engine, clientPolygon)
		before, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
		require.NoError(t, err)

		resp, err := engine.ResolveConflict(ctx, testIdent, logID, models.ResolutionUseClient)
		require.NoError(t, err)
		assert.Equal(t, models.SyncLogStatusResolved, resp.Status)
		assert.Equal(t, "measurement", resp.EntityType)
		assert.Contains(t, string(resp.Entity), "Client")

		after, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
		require.NoError(t, err)
		expected, err := NewGeoCalculator().Compute(clientPolygon)
		require.NoError(t, err)
		assert.Equal(t, "Client", after.Name)
		assert.Equal(t, expected.AreaSquareMeters, after.AreaSquareMeters)
		assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
		assert.Greater(t, after.Version, before.Version)

		entry, err := engine.conflicts.Get(ctx, "org-1", logID)
		require.NoError(t, err)
		assert.Equal(t, models.SyncLogStatusResolved, entry.Status)
		require.NotNil(t, entry.ResolvedBy)
		assert.Equal(t, "user-1", *entry.ResolvedBy)
		assert.NotEmpty(t, notifier.changed)

		_, err = engine.ResolveConflict(ctx, testIdent, logID, models.ResolutionUseClient)
		assert.ErrorIs(t, err, models.ErrNotAConflict)
	})

	t.Run("use_server leaves the row unchanged", func(t *testing.T) {
		engine, store, _ := setupEngine(t, 100)
		logID := pushConflict(t, engine, clientPolygon)
		before, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
		require.NoError(t, err)

		resp, err := engine.ResolveConflict(ctx, testIdent, logID, models.ResolutionUseServer)
		require.NoError(t, err)
		assert.Contains(t, string(resp.Entity), "Server")

		after, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
		require.NoError(t, err)
		assert.Equal(t, before, after)

		stats, err := engine.conflicts.Stats(ctx, "org-1")
		require.NoError(t, err)
		assert.Equal(t, 0, stats.PendingCount)
		assert.Equal(t, 1, stats.ResolvedCount)
	})

	t.Run("rejects unknown log and resolution", func(t *testing.T) {
		engine, _, _ := setupEngine(t, 100)
		logID := pushConflict(t, engine, clientPolygon)

		_, err := engine.ResolveConflict(ctx, testIdent, logID, "merge")
		assert.ErrorIs(t, err, models.ErrValidation)

		_, err = engine.ResolveConflict(ctx, testIdent, "missing", models.ResolutionUseServer)
		assert.ErrorIs(t, err, models.ErrNotFound)

		other := models.Identity{OrganizationID: "org-2", UserID: "user-9"}
		_, err = engine.ResolveConflict(ctx, other, logID, models.ResolutionUseServer)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("synced entries are not conflicts", func(t *testing.T) {
		engine, _, _ := setupEngine(t, 100)
		result, err := engine.Push(ctx, testIdent, []models.SyncItem{
			syncItem(t, "job", "j-1", baseTime, jobData("Job")),
		})
		require.NoError(t, err)

		_, err = engine.ResolveConflict(ctx, testIdent, result.Details[0].LogID, models.ResolutionUseServer)
		assert.ErrorIs(t, err, models.ErrNotAConflict)
	})
}

func TestSyncEngine_ConcurrentPushesOfSameItem(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t, 100)

	items := make([]models.SyncItem, 8)
	for i := range items {
		items[i] = syncItem(t, "job", "j-1", baseTime.Add(time.Duration(i)*time.Second), jobData("Job"))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(items))
	for _, item := range items {
		wg.Add(1)
		go func(item models.SyncItem) {
			defer wg.Done()
			_, err := engine.Push(ctx, testIdent, []models.SyncItem{item})
			errs <- err
		}(item)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows, err := store.Jobs().ListUpdatedSince(ctx, "org-1", time.Time{}, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSyncEngine_UpdateWithoutStatusKeepsStatus(t *testing.T) {
	ctx := context.Background()
	engine, store, _ := setupEngine(t, 100)

	archived := measurementData("Field", square(7.0, 80.0, 0.001))
	archived["status"] = models.MeasurementStatusArchived
	completed := jobData("Harvest")
	completed["status"] = models.JobStatusCompleted
	completed["completed_at"] = baseTime

	_, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "measurement", "m-1", baseTime, archived),
		syncItem(t, "job", "j-1", baseTime, completed),
		syncItem(t, "job", "j-2", baseTime, jobData("Fresh")),
	})
	require.NoError(t, err)

	result, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "measurement", "m-1", baseTime.Add(time.Minute), map[string]interface{}{"name": "Renamed"}),
		syncItem(t, "job", "j-1", baseTime.Add(time.Minute), jobData("Harvest, north")),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Synced)

	m, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", m.Name)
	assert.Equal(t, models.MeasurementStatusArchived, m.Status)

	j, err := store.Jobs().FindByOfflineID(ctx, "org-1", "j-1")
	require.NoError(t, err)
	assert.Equal(t, "Harvest, north", j.Title)
	assert.Equal(t, models.JobStatusCompleted, j.Status)
	require.NotNil(t, j.CompletedAt)
	assert.True(t, baseTime.Equal(*j.CompletedAt))

	fresh, err := store.Jobs().FindByOfflineID(ctx, "org-1", "j-2")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, fresh.Status)
}

// execHook runs fn just before the nth ExecContext whose query contains match.
type execHook struct {
	mu    sync.Mutex
	match string
	nth   int
	seen  int
	fn    func(ctx context.Context, q repository.Querier) error
}

func (h *execHook) wrap(q repository.Querier) repository.Querier {
	return &hookedQuerier{Querier: q, hook: h}
}

func (h *execHook) fires(query string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !strings.Contains(query, h.match) {
		return false
	}
	h.seen++
	return h.seen == h.nth
}

type hookedQuerier struct {
	repository.Querier
	hook *execHook
}

func (q *hookedQuerier) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if q.hook.fires(query) {
		if err := q.hook.fn(ctx, q.Querier); err != nil {
			return nil, err
		}
	}
	return q.Querier.ExecContext(ctx, query, args...)
}

func setupHookedEngine(t *testing.T, hook *execHook) (*SyncEngine, *repository.Store, *recordingNotifier) {
	t.Helper()
	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := repository.NewStore(db, repository.DialectSQLite, hook.wrap)
	notifier := &recordingNotifier{}
	engine := NewSyncEngine(store, NewGeoCalculator(), NewConflictLog(store), SyncEngineOptions{
		MaxBatchSize: 100,
		Notifier:     notifier,
	})
	return engine, store, notifier
}

func TestSyncEngine_StorageFailureRollsBackBatch(t *testing.T) {
	ctx := context.Background()
	hook := &execHook{
		match: "INSERT INTO sync_logs",
		nth:   3,
		fn: func(context.Context, repository.Querier) error {
			return errors.New("disk I/O error")
		},
	}
	engine, store, notifier := setupHookedEngine(t, hook)

	items := []models.SyncItem{
		syncItem(t, "job", "j-1", baseTime, jobData("First")),
		syncItem(t, "job", "j-2", baseTime, jobData("Second")),
		syncItem(t, "measurement", "m-1", baseTime, measurementData("Field", square(7.0, 80.0, 0.001))),
	}

	result, err := engine.Push(ctx, testIdent, items)
	require.ErrorIs(t, err, models.ErrInfrastructure)
	assert.Nil(t, result)

	jobs, err := store.Jobs().ListUpdatedSince(ctx, "org-1", time.Time{}, nil)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	m, err := store.Measurements().FindByOfflineID(ctx, "org-1", "m-1")
	require.NoError(t, err)
	assert.Nil(t, m)
	_, logged, err := store.SyncLogs().List(ctx, "org-1", "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, logged)
	version, err := store.Counters().Current(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
	assert.Empty(t, notifier.changed)

	t.Run("retry applies the whole batch", func(t *testing.T) {
		result, err := engine.Push(ctx, testIdent, items)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Synced)

		_, logged, err := store.SyncLogs().List(ctx, "org-1", "", 0, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, logged)
	})
}

func TestSyncEngine_LostUpdateIsReportedAsConflict(t *testing.T) {
	ctx := context.Background()
	movedTo := baseTime.Add(time.Hour)
	hook := &execHook{
		match: "UPDATE jobs SET",
		nth:   1,
		// Another writer commits between the engine's read and its write.
		fn: func(ctx context.Context, q repository.Querier) error {
			_, err := q.ExecContext(ctx, `UPDATE jobs SET updated_at = ? WHERE organization_id = ? AND offline_id = ?`,
				movedTo, "org-1", "j-1")
			return err
		},
	}
	engine, store, notifier := setupHookedEngine(t, hook)

	_, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "job", "j-1", baseTime, jobData("Original")),
	})
	require.NoError(t, err)

	result, err := engine.Push(ctx, testIdent, []models.SyncItem{
		syncItem(t, "job", "j-1", baseTime.Add(time.Minute), jobData("Client edit")),
	})
	require.NoError(t, err)
	require.Len(t, result.Details, 1)

	detail := result.Details[0]
	assert.Equal(t, models.ItemStatusConflict, detail.Status)
	require.NotNil(t, detail.ServerUpdatedAt)
	assert.True(t, movedTo.Equal(*detail.ServerUpdatedAt))

	stored, err := store.Jobs().FindByOfflineID(ctx, "org-1", "j-1")
	require.NoError(t, err)
	assert.Equal(t, "Original", stored.Title)
	assert.True(t, movedTo.Equal(stored.UpdatedAt))

	entry, err := engine.conflicts.Get(ctx, "org-1", detail.LogID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncLogStatusConflict, entry.Status)
	require.NotNil(t, entry.Message)
	assert.Equal(t, "server copy changed while the push was applied", *entry.Message)
	require.NotNil(t, entry.ConflictData)
	assert.True(t, movedTo.Equal(entry.ConflictData.ServerUpdatedAt))
	assert.Len(t, notifier.conflicts, 1)
}
