package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/repository"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	defaultLogPageSize = 50
	maxLogPageSize     = 200
)

// ConflictLog is the organization-scoped audit trail of sync decisions.
// Entries are appended by the sync engine and only ever move from conflict to resolved.
type ConflictLog struct {
	store *repository.Store
}

// NewConflictLog creates a conflict log over store
func NewConflictLog(store *repository.Store) *ConflictLog {
	return &ConflictLog{store: store}
}

// In returns a conflict log writing through tx.
func (c *ConflictLog) In(tx *repository.Store) *ConflictLog {
	return &ConflictLog{store: tx}
}

// Record appends an entry
func (c *ConflictLog) Record(ctx context.Context, entry *models.SyncLogEntry) error {
	if err := c.store.SyncLogs().Add(ctx, entry); err != nil {
		return models.Infra("record sync log entry", err)
	}
	return nil
}

// Get returns an entry of the organization or ErrNotFound
func (c *ConflictLog) Get(ctx context.Context, orgID, id string) (*models.SyncLogEntry, error) {
	entry, err := c.store.SyncLogs().GetByID(ctx, orgID, id)
	if err != nil {
		return nil, models.Infra("get sync log entry", err)
	}
	if entry == nil {
		return nil, fmt.Errorf("sync log entry %s: %w", id, models.ErrNotFound)
	}
	return entry, nil
}

// List pages through entries, newest first. An empty status lists everything.
func (c *ConflictLog) List(ctx context.Context, orgID, status string, skip, take int) (*models.SyncLogListResponse, error) {
	switch status {
	case "", models.SyncLogStatusSynced, models.SyncLogStatusConflict, models.SyncLogStatusResolved, models.SyncLogStatusError:
	default:
		return nil, models.NewValidationError("status", "must be one of synced, conflict, resolved, error")
	}
	if skip < 0 {
		skip = 0
	}
	if take <= 0 {
		take = defaultLogPageSize
	}
	if take > maxLogPageSize {
		take = maxLogPageSize
	}

	entries, total, err := c.store.SyncLogs().List(ctx, orgID, status, skip, take)
	if err != nil {
		return nil, models.Infra("list sync log", err)
	}
	if entries == nil {
		entries = []*models.SyncLogEntry{}
	}
	return &models.SyncLogListResponse{
		Entries:    entries,
		TotalCount: total,
		Skip:       skip,
		Take:       take,
	}, nil
}

// PendingCount returns the number of unresolved conflicts
func (c *ConflictLog) PendingCount(ctx context.Context, orgID string) (int, error) {
	stats, err := c.Stats(ctx, orgID)
	if err != nil {
		return 0, err
	}
	return stats.PendingCount, nil
}

// Stats summarizes the organization's log
func (c *ConflictLog) Stats(ctx context.Context, orgID string) (*models.SyncLogStats, error) {
	stats, err := c.store.SyncLogs().Stats(ctx, orgID)
	if err != nil {
		return nil, models.Infra("sync log stats", err)
	}
	return stats, nil
}

// MarkResolved closes an open conflict. It returns ErrNotAConflict when the
// entry is no longer open.
func (c *ConflictLog) MarkResolved(ctx context.Context, ident models.Identity, id, resolution string) error {
	ok, err := c.store.SyncLogs().MarkResolved(ctx, ident.OrganizationID, id, resolution, ident.UserID, models.NormalizeTime(nowUTC()))
	if err != nil {
		return models.Infra("resolve sync log entry", err)
	}
	if !ok {
		return fmt.Errorf("sync log entry %s: %w", id, models.ErrNotAConflict)
	}
	return nil
}

// snapshotDiff renders a line diff from the server copy to the client payload,
// limited to the fields the client sent.
func snapshotDiff(server, client json.RawMessage) string {
	var clientFields map[string]interface{}
	if err := json.Unmarshal(client, &clientFields); err != nil {
		return ""
	}
	var serverFields map[string]interface{}
	if err := json.Unmarshal(server, &serverFields); err != nil {
		return ""
	}

	projected := make(map[string]interface{}, len(clientFields))
	for key := range clientFields {
		if v, ok := serverFields[key]; ok {
			projected[key] = v
		}
	}

	serverText, err := json.MarshalIndent(projected, "", "  ")
	if err != nil {
		return ""
	}
	clientText, err := json.MarshalIndent(clientFields, "", "  ")
	if err != nil {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(string(serverText), string(clientText))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteByte('\n')
			}
		}
	}
	return out.String()
}
