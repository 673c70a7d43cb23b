package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotDiff(t *testing.T) {
	server := json.RawMessage(`{"id":"abc","name":"North","status":"confirmed","version":3}`)
	client := json.RawMessage(`{"name":"South","status":"confirmed"}`)

	diff := snapshotDiff(server, client)

	assert.Contains(t, diff, `-   "name": "North",`)
	assert.Contains(t, diff, `+   "name": "South",`)
	assert.Contains(t, diff, `    "status": "confirmed"`)
	assert.NotContains(t, diff, "version", "server-only fields are left out")

	t.Run("identical snapshots have no changes", func(t *testing.T) {
		diff := snapshotDiff(client, client)
		assert.NotContains(t, diff, "- ")
		assert.NotContains(t, diff, "+ ")
	})

	t.Run("non-object client payload", func(t *testing.T) {
		assert.Empty(t, snapshotDiff(server, json.RawMessage(`[1]`)))
	})
}

func TestConflictLog(t *testing.T) {
	ctx := context.Background()
	store := setupServiceStore(t)
	log := NewConflictLog(store)

	record := func(status, action string) *models.SyncLogEntry {
		entry := models.NewSyncLogEntry(testIdent, "job", "j-1", action, status)
		if status == models.SyncLogStatusConflict {
			entry.ConflictData = &models.ConflictData{
				Server:          json.RawMessage(`{"title":"a"}`),
				Client:          json.RawMessage(`{"title":"b"}`),
				ServerUpdatedAt: baseTime.Add(time.Hour),
				ClientUpdatedAt: baseTime,
			}
		}
		require.NoError(t, log.Record(ctx, entry))
		return entry
	}

	record(models.SyncLogStatusSynced, models.SyncActionCreate)
	record(models.SyncLogStatusError, models.SyncActionReject)
	open := record(models.SyncLogStatusConflict, models.SyncActionConflict)
	closed := record(models.SyncLogStatusConflict, models.SyncActionConflict)
	require.NoError(t, log.MarkResolved(ctx, testIdent, closed.ID, models.ResolutionUseServer))

	t.Run("stats", func(t *testing.T) {
		stats, err := log.Stats(ctx, "org-1")
		require.NoError(t, err)
		assert.Equal(t, models.SyncLogStats{TotalCount: 4, PendingCount: 1, ResolvedCount: 1, ErrorCount: 1}, *stats)

		pending, err := log.PendingCount(ctx, "org-1")
		require.NoError(t, err)
		assert.Equal(t, 1, pending)
	})

	t.Run("list by status", func(t *testing.T) {
		resp, err := log.List(ctx, "org-1", models.SyncLogStatusConflict, 0, 0)
		require.NoError(t, err)
		require.Len(t, resp.Entries, 1)
		assert.Equal(t, open.ID, resp.Entries[0].ID)
		assert.Equal(t, defaultLogPageSize, resp.Take)
		require.NotNil(t, resp.Entries[0].ConflictData)
		assert.JSONEq(t, `{"title":"b"}`, string(resp.Entries[0].ConflictData.Client))
	})

	t.Run("list pages and clamps", func(t *testing.T) {
		resp, err := log.List(ctx, "org-1", "", 1, 1000)
		require.NoError(t, err)
		assert.Equal(t, 4, resp.TotalCount)
		assert.Len(t, resp.Entries, 3)
		assert.Equal(t, maxLogPageSize, resp.Take)
	})

	t.Run("list rejects unknown status", func(t *testing.T) {
		_, err := log.List(ctx, "org-1", "pending", 0, 10)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("empty organization lists an empty slice", func(t *testing.T) {
		resp, err := log.List(ctx, "org-2", "", 0, 10)
		require.NoError(t, err)
		assert.NotNil(t, resp.Entries)
		assert.Empty(t, resp.Entries)
	})

	t.Run("resolved entries stay resolved", func(t *testing.T) {
		err := log.MarkResolved(ctx, testIdent, closed.ID, models.ResolutionUseClient)
		assert.ErrorIs(t, err, models.ErrNotAConflict)

		entry, err := log.Get(ctx, "org-1", closed.ID)
		require.NoError(t, err)
		require.NotNil(t, entry.Resolution)
		assert.Equal(t, models.ResolutionUseServer, *entry.Resolution)
		assert.NotNil(t, entry.ResolvedAt)
	})

	t.Run("get is organization scoped", func(t *testing.T) {
		_, err := log.Get(ctx, "org-2", open.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}
