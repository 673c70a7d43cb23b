package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/middleware"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/repository"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "0123456789abcdef0123456789abcdef"

type testServer struct {
	handler http.Handler
	store   *repository.Store
	hub     *services.WebSocketHub
}

func setupRouter(t *testing.T, mutate func(cfg *RouterConfig)) *testServer {
	t.Helper()
	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := repository.NewStore(db, repository.DialectSQLite, nil)
	calc := services.NewGeoCalculator()
	conflicts := services.NewConflictLog(store)
	locks := services.NewKeyedLocker()
	hub := services.NewWebSocketHub()

	cfg := RouterConfig{
		DB:        store,
		Conflicts: conflicts,
		Engine: services.NewSyncEngine(store, calc, conflicts, services.SyncEngineOptions{
			MaxBatchSize: 5,
			Notifier:     hub,
			Locks:        locks,
		}),
		Tracking:     services.NewTrackingIngest(store, 3, nil),
		Measurements: services.NewMeasurementService(store, calc, locks, hub, nil),
		Hub:          hub,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	handler, err := NewRouter(cfg)
	require.NoError(t, err)
	return &testServer{handler: handler, store: store, hub: hub}
}

type requestOption func(r *http.Request)

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func asOrg(orgID string) requestOption {
	return func(r *http.Request) {
		r.Header.Set(middleware.OrganizationHeader, orgID)
		r.Header.Set(middleware.UserHeader, "user-1")
		r.Header.Set(middleware.DeviceHeader, "device-1")
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func field() models.Polygon {
	return models.Polygon{
		{Latitude: 6.999, Longitude: 79.999},
		{Latitude: 6.999, Longitude: 80.001},
		{Latitude: 7.001, Longitude: 80.001},
		{Latitude: 7.001, Longitude: 79.999},
	}
}

func measurementItem(offlineID, name string, updatedAt time.Time) map[string]interface{} {
	return map[string]interface{}{
		"entity_type": "measurement",
		"offline_id":  offlineID,
		"updated_at":  updatedAt.Format(time.RFC3339Nano),
		"data":        map[string]interface{}{"name": name, "polygon": field()},
	}
}

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func TestHealthCheck(t *testing.T) {
	srv := setupRouter(t, nil)

	for _, path := range []string{"/health", "/api/health"} {
		rec := srv.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp models.HealthResponse
		decodeBody(t, rec, &resp)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "ok", resp.Database)
	}
}

func TestVersion(t *testing.T) {
	srv := setupRouter(t, func(cfg *RouterConfig) { cfg.MinClientVersion = "2.1.0" })

	rec := srv.do(t, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, Version, resp.Version)
	assert.Equal(t, "2.1.0", resp.MinClientVersion)
}

func TestIdentityRequired(t *testing.T) {
	srv := setupRouter(t, nil)

	rec := srv.do(t, http.MethodGet, "/sync/pull", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp models.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.Details)
}

func TestAPIKeyGate(t *testing.T) {
	srv := setupRouter(t, func(cfg *RouterConfig) {
		cfg.APIKey = testAPIKey
		cfg.APIKeyHeader = "X-API-Key"
	})

	t.Run("health stays public", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing key", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/sync/pull", nil, asOrg("org-1"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/sync/pull", nil, asOrg("org-1"), withHeader("X-API-Key", "nope"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/sync/pull", nil, asOrg("org-1"), withHeader("X-API-Key", testAPIKey))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestClientVersionGate(t *testing.T) {
	srv := setupRouter(t, func(cfg *RouterConfig) { cfg.MinClientVersion = "2.0.0" })

	tests := []struct {
		name    string
		version string
		want    int
	}{
		{"missing", "", http.StatusUpgradeRequired},
		{"too old", "1.9.3", http.StatusUpgradeRequired},
		{"garbage", "latest", http.StatusUpgradeRequired},
		{"exact", "2.0.0", http.StatusOK},
		{"newer", "2.4.1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []requestOption{asOrg("org-1")}
			if tt.version != "" {
				opts = append(opts, withHeader(middleware.ClientVersionHeader, tt.version))
			}
			rec := srv.do(t, http.MethodGet, "/sync/pull", nil, opts...)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("measurements are not gated", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/measurements", nil, asOrg("org-1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSyncPushPullResolve(t *testing.T) {
	srv := setupRouter(t, nil)

	// First device creates the measurement.
	rec := srv.do(t, http.MethodPost, "/sync/push", map[string]interface{}{
		"items": []interface{}{measurementItem("m-1", "Server name", t0.Add(time.Hour))},
	}, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pushed models.SyncResult
	decodeBody(t, rec, &pushed)
	require.Equal(t, 1, pushed.Synced)
	measurementID := pushed.Details[0].ID

	// A stale edit from another device conflicts.
	rec = srv.do(t, http.MethodPost, "/sync/push", map[string]interface{}{
		"items": []interface{}{measurementItem("m-1", "Client name", t0)},
	}, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var conflicted models.SyncResult
	decodeBody(t, rec, &conflicted)
	require.Equal(t, 1, conflicted.Conflicts)
	logID := conflicted.Details[0].LogID
	require.NotEmpty(t, logID)
	assert.NotEmpty(t, conflicted.Details[0].ServerData)

	rec = srv.do(t, http.MethodGet, "/sync/conflicts?status=conflict", nil, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.SyncLogListResponse
	decodeBody(t, rec, &list)
	require.Equal(t, 1, list.TotalCount)
	assert.Equal(t, logID, list.Entries[0].ID)

	rec = srv.do(t, http.MethodGet, "/sync/conflicts/stats", nil, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.SyncLogStats
	decodeBody(t, rec, &stats)
	assert.Equal(t, 2, stats.TotalCount)
	assert.Equal(t, 1, stats.PendingCount)

	rec = srv.do(t, http.MethodPost, "/sync/resolve/"+logID, map[string]string{"resolution": "use_client"}, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resolved models.ResolveConflictResponse
	decodeBody(t, rec, &resolved)
	assert.Equal(t, models.SyncLogStatusResolved, resolved.Status)

	// Resolving twice is a 409.
	rec = srv.do(t, http.MethodPost, "/sync/resolve/"+logID, map[string]string{"resolution": "use_server"}, asOrg("org-1"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodGet, "/measurements/"+measurementID, nil, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var m models.Measurement
	decodeBody(t, rec, &m)
	assert.Equal(t, "Client name", m.Name)

	rec = srv.do(t, http.MethodGet, "/sync/pull?include=measurements,measurements", nil, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var pulled map[string]json.RawMessage
	decodeBody(t, rec, &pulled)
	assert.Contains(t, pulled, "measurements")
	assert.Contains(t, pulled, "sync_version")
	assert.NotContains(t, pulled, "jobs")

	var rows []models.Measurement
	require.NoError(t, json.Unmarshal(pulled["measurements"], &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Client name", rows[0].Name)

	// Another organization sees nothing.
	rec = srv.do(t, http.MethodGet, "/sync/pull", nil, asOrg("org-2"))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &pulled)
	require.NoError(t, json.Unmarshal(pulled["measurements"], &rows))
	assert.Empty(t, rows)
}

func TestSyncErrors(t *testing.T) {
	srv := setupRouter(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"malformed push body", http.MethodPost, "/sync/push", "{not json", http.StatusBadRequest},
		{"empty push body", http.MethodPost, "/sync/push", "", http.StatusBadRequest},
		{"batch too large", http.MethodPost, "/sync/push", map[string]interface{}{"items": batchOf(6)}, http.StatusRequestEntityTooLarge},
		{"bad since", http.MethodGet, "/sync/pull?since=yesterday", nil, http.StatusUnprocessableEntity},
		{"bad since_version", http.MethodGet, "/sync/pull?since_version=abc", nil, http.StatusUnprocessableEntity},
		{"negative since_version", http.MethodGet, "/sync/pull?since_version=-1", nil, http.StatusUnprocessableEntity},
		{"unknown include", http.MethodGet, "/sync/pull?include=photos", nil, http.StatusUnprocessableEntity},
		{"tracking include", http.MethodGet, "/sync/pull?include=tracking_points", nil, http.StatusUnprocessableEntity},
		{"unknown resolution", http.MethodPost, "/sync/resolve/abc", map[string]string{"resolution": "merge"}, http.StatusUnprocessableEntity},
		{"unknown log", http.MethodPost, "/sync/resolve/abc", map[string]string{"resolution": "use_server"}, http.StatusNotFound},
		{"unknown log entry", http.MethodGet, "/sync/conflicts/abc", nil, http.StatusNotFound},
		{"bad list status", http.MethodGet, "/sync/conflicts?status=maybe", nil, http.StatusUnprocessableEntity},
		{"bad take", http.MethodGet, "/sync/conflicts?take=lots", nil, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, tt.method, tt.path, tt.body, asOrg("org-1"))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestSyncPushItemErrorsKeepBatch(t *testing.T) {
	srv := setupRouter(t, nil)

	rec := srv.do(t, http.MethodPost, "/sync/push", map[string]interface{}{
		"items": []interface{}{
			measurementItem("m-1", "Good", t0),
			map[string]interface{}{"entity_type": "photo", "offline_id": "p-1", "updated_at": t0, "data": map[string]string{}},
		},
	}, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.SyncResult
	decodeBody(t, rec, &result)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, models.ItemStatusError, result.Details[1].Status)
}

func TestSyncPushMalformedItemsKeepBatch(t *testing.T) {
	srv := setupRouter(t, nil)
	ctx := context.Background()

	data := map[string]interface{}{"name": "Field", "polygon": field()}
	rec := srv.do(t, http.MethodPost, "/sync/push", map[string]interface{}{
		"items": []interface{}{
			measurementItem("m-good", "Good", t0),
			map[string]interface{}{"entity_type": "measurement", "offline_id": "m-local", "updated_at": "2024-05-01 08:00:00", "data": data},
			map[string]interface{}{"entity_type": "measurement", "offline_id": "m-bad", "updated_at": "yesterday", "data": data},
			map[string]interface{}{"entity_type": 5, "offline_id": "m-num", "updated_at": t0, "data": data},
			"not an item",
		},
	}, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result models.SyncResult
	decodeBody(t, rec, &result)
	require.Len(t, result.Details, 5)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 3, result.Errors)

	statuses := make([]string, len(result.Details))
	for i, d := range result.Details {
		statuses[i] = d.Status
	}
	assert.Equal(t, []string{
		models.ItemStatusSynced, models.ItemStatusSynced,
		models.ItemStatusError, models.ItemStatusError, models.ItemStatusError,
	}, statuses)
	assert.Equal(t, "updated_at", result.Details[2].Issues[0].Field)
	assert.Equal(t, "entity_type", result.Details[3].Issues[0].Field)
	assert.Equal(t, "item", result.Details[4].Issues[0].Field)

	local, err := srv.store.Measurements().FindByOfflineID(ctx, "org-1", "m-local")
	require.NoError(t, err)
	require.NotNil(t, local)
	assert.True(t, t0.Equal(local.UpdatedAt), "stored %s", local.UpdatedAt)

	rejected, total, err := srv.store.SyncLogs().List(ctx, "org-1", models.SyncLogStatusError, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	for _, entry := range rejected {
		assert.Equal(t, models.SyncActionReject, entry.Action)
	}
}

func batchOf(n int) []interface{} {
	items := make([]interface{}, n)
	for i := range items {
		items[i] = measurementItem(fmt.Sprintf("m-%d", i), "Field", t0)
	}
	return items
}

func TestMeasurementEndpoints(t *testing.T) {
	srv := setupRouter(t, nil)

	rec := srv.do(t, http.MethodPost, "/measurements/calculate", map[string]interface{}{"polygon": field()}, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var geometry models.Geometry
	decodeBody(t, rec, &geometry)
	assert.InDelta(t, 49000, geometry.AreaSquareMeters, 2000)

	rec = srv.do(t, http.MethodPost, "/measurements", map[string]interface{}{
		"name":       "Paddy block",
		"polygon":    field(),
		"offline_id": "local-1",
	}, asOrg("org-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Measurement
	decodeBody(t, rec, &created)
	assert.Equal(t, geometry.AreaSquareMeters, created.AreaSquareMeters)

	rec = srv.do(t, http.MethodGet, "/measurements", nil, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var list models.MeasurementListResponse
	decodeBody(t, rec, &list)
	assert.Equal(t, 1, list.TotalCount)

	smaller := models.Polygon{
		{Latitude: 7.0, Longitude: 80.0},
		{Latitude: 7.0, Longitude: 80.001},
		{Latitude: 7.001, Longitude: 80.0},
	}
	rec = srv.do(t, http.MethodPut, "/measurements/"+created.ID+"/polygon", map[string]interface{}{"polygon": smaller}, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var replaced models.Measurement
	decodeBody(t, rec, &replaced)
	assert.Less(t, replaced.AreaSquareMeters, created.AreaSquareMeters)
	assert.Greater(t, replaced.Version, created.Version)

	rec = srv.do(t, http.MethodGet, "/measurements/"+created.ID, nil, asOrg("org-2"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/measurements/"+created.ID, nil, asOrg("org-1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = srv.do(t, http.MethodDelete, "/measurements/"+created.ID, nil, asOrg("org-1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(t, http.MethodGet, "/measurements", nil, asOrg("org-1"))
	decodeBody(t, rec, &list)
	assert.Equal(t, 0, list.TotalCount)

	// The tombstone still travels on pull.
	rec = srv.do(t, http.MethodGet, "/sync/pull?include=measurements", nil, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "deleted_at"))
}

func TestMeasurementValidation(t *testing.T) {
	srv := setupRouter(t, nil)

	rec := srv.do(t, http.MethodPost, "/measurements", map[string]interface{}{
		"name":    "Too small",
		"polygon": field()[:2],
	}, asOrg("org-1"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp models.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.NotEmpty(t, resp.Error)

	rec = srv.do(t, http.MethodPost, "/measurements/calculate", map[string]interface{}{
		"polygon": models.Polygon{{Latitude: 95, Longitude: 0}, {Latitude: 0, Longitude: 1}, {Latitude: 1, Longitude: 0}},
	}, asOrg("org-1"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTrackingEndpoints(t *testing.T) {
	srv := setupRouter(t, nil)

	location := func(minute int) map[string]interface{} {
		return map[string]interface{}{
			"latitude":    7.0 + float64(minute)*0.0001,
			"longitude":   80.0,
			"recorded_at": t0.Add(time.Duration(minute) * time.Minute),
		}
	}

	rec := srv.do(t, http.MethodPost, "/tracking/batch", map[string]interface{}{
		"driver_id": "driver-1",
		"locations": []interface{}{location(2), location(1)},
	}, asOrg("org-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var batch models.TrackingBatchResponse
	decodeBody(t, rec, &batch)
	assert.Equal(t, 2, batch.Count)

	rec = srv.do(t, http.MethodGet, "/tracking/trail?driver_id=driver-1", nil, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var trail models.TrailResponse
	decodeBody(t, rec, &trail)
	require.Equal(t, 2, trail.Count)
	assert.True(t, trail.Points[0].RecordedAt.Before(trail.Points[1].RecordedAt))

	rec = srv.do(t, http.MethodGet, "/tracking/trail", nil, asOrg("org-2"))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &trail)
	assert.Equal(t, 0, trail.Count)
	assert.NotNil(t, trail.Points)

	t.Run("one bad location rejects the batch", func(t *testing.T) {
		bad := location(3)
		bad["latitude"] = 120.0
		rec := srv.do(t, http.MethodPost, "/tracking/batch", map[string]interface{}{
			"driver_id": "driver-1",
			"locations": []interface{}{location(4), bad},
		}, asOrg("org-1"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec = srv.do(t, http.MethodGet, "/tracking/trail?driver_id=driver-1", nil, asOrg("org-1"))
		decodeBody(t, rec, &trail)
		assert.Equal(t, 2, trail.Count)
	})

	t.Run("location without a position is not stored", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/tracking/batch", map[string]interface{}{
			"driver_id": "driver-1",
			"locations": []interface{}{map[string]interface{}{"recorded_at": t0}},
		}, asOrg("org-1"))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
		var resp models.ErrorResponse
		decodeBody(t, rec, &resp)
		require.Len(t, resp.Details, 1)
		assert.Equal(t, "locations[0]", resp.Details[0].Field)
		assert.Equal(t, "requires latitude and longitude or an nmea sentence", resp.Details[0].Message)

		rec = srv.do(t, http.MethodGet, "/tracking/trail?driver_id=driver-1", nil, asOrg("org-1"))
		decodeBody(t, rec, &trail)
		assert.Equal(t, 2, trail.Count)
	})

	t.Run("batch over the limit", func(t *testing.T) {
		rec := srv.do(t, http.MethodPost, "/tracking/batch", map[string]interface{}{
			"driver_id": "driver-1",
			"locations": []interface{}{location(5), location(6), location(7), location(8)},
		}, asOrg("org-1"))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("bad trail bounds", func(t *testing.T) {
		rec := srv.do(t, http.MethodGet, "/tracking/trail?from=soon&limit=x", nil, asOrg("org-1"))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var resp models.ErrorResponse
		decodeBody(t, rec, &resp)
		assert.Len(t, resp.Details, 2)
	})
}

func TestWebSocketSyncNotifications(t *testing.T) {
	srv := setupRouter(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	server := httptest.NewServer(srv.handler)
	defer server.Close()

	header := http.Header{}
	header.Set(middleware.OrganizationHeader, "org-1")
	header.Set(middleware.UserHeader, "user-1")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.hub.GetTopicSubscriberCount(services.OrgTopic("org-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(services.WSMessage{Type: services.WSTypePing}))
	var pong services.WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, services.WSTypePong, pong.Type)

	rec := srv.do(t, http.MethodPost, "/sync/push", map[string]interface{}{
		"items": []interface{}{measurementItem("m-1", "North field", t0)},
	}, asOrg("org-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var msg struct {
		Type    string                      `json:"type"`
		Payload services.SyncChangedPayload `json:"payload"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, services.WSTypeSyncChanged, msg.Type)
	assert.Equal(t, []string{"measurements"}, msg.Payload.Kinds)
	assert.Equal(t, int64(1), msg.Payload.SyncVersion)
}
