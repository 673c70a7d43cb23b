package models

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// SyncItem is one locally captured write pushed by a mobile client.
type SyncItem struct {
	EntityType string          `json:"entity_type"`
	OfflineID  string          `json:"offline_id"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Data       json.RawMessage `json:"data"`

	issues *ValidationError
}

// UnmarshalJSON accepts any JSON value. Envelope fields that are missing the
// right type are kept as issues and reported against this item alone.
func (s *SyncItem) UnmarshalJSON(data []byte) error {
	*s = SyncItem{}
	issues := &ValidationError{}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		issues.Add("item", "must be a JSON object")
		s.issues = issues
		return nil
	}

	s.EntityType = envelopeString(root, "entity_type", issues)
	s.OfflineID = envelopeString(root, "offline_id", issues)

	if v := root.Get("updated_at"); v.Exists() && v.Type != gjson.Null {
		if v.Type != gjson.String {
			issues.Add("updated_at", "must be an ISO 8601 timestamp")
		} else if t, err := ParseClientTime(v.Str); err != nil {
			issues.Add("updated_at", "must be an ISO 8601 timestamp")
		} else {
			s.UpdatedAt = t
		}
	}
	if v := root.Get("data"); v.Exists() {
		s.Data = json.RawMessage(v.Raw)
	}

	if issues.HasIssues() {
		s.issues = issues
	}
	return nil
}

// Issues returns the envelope problems found while decoding, or nil.
func (s SyncItem) Issues() *ValidationError {
	return s.issues
}

func envelopeString(root gjson.Result, field string, issues *ValidationError) string {
	v := root.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		return ""
	}
	if v.Type != gjson.String {
		issues.Add(field, "must be a string")
		return ""
	}
	return v.Str
}

var clientTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

// ParseClientTime parses an ISO 8601 timestamp as sent by mobile clients.
// A timestamp without a zone is taken as UTC.
func ParseClientTime(s string) (time.Time, error) {
	var err error
	for _, layout := range clientTimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// SyncPushRequest for POST /sync/push
type SyncPushRequest struct {
	Items []SyncItem `json:"items"`
}

// Per-item push outcomes
const (
	ItemStatusSynced   = "synced"
	ItemStatusConflict = "conflict"
	ItemStatusError    = "error"
)

// SyncItemResult reports what happened to one pushed item.
type SyncItemResult struct {
	EntityType      string          `json:"entity_type"`
	OfflineID       string          `json:"offline_id"`
	Status          string          `json:"status"`
	Action          string          `json:"action,omitempty"`
	ID              string          `json:"id,omitempty"`
	LogID           string          `json:"log_id,omitempty"`
	Error           string          `json:"error,omitempty"`
	Issues          []FieldIssue    `json:"issues,omitempty"`
	ServerData      json.RawMessage `json:"server_data,omitempty"`
	ServerUpdatedAt *time.Time      `json:"server_updated_at,omitempty"`
}

// SyncResult for POST /sync/push
type SyncResult struct {
	Synced    int              `json:"synced"`
	Conflicts int              `json:"conflicts"`
	Errors    int              `json:"errors"`
	Details   []SyncItemResult `json:"details"`
}

// Add appends an item result and updates the counters.
func (r *SyncResult) Add(item SyncItemResult) {
	switch item.Status {
	case ItemStatusSynced:
		r.Synced++
	case ItemStatusConflict:
		r.Conflicts++
	case ItemStatusError:
		r.Errors++
	}
	r.Details = append(r.Details, item)
}

// PullRequest describes GET /sync/pull
type PullRequest struct {
	Since        time.Time
	SinceVersion *int64
	Kinds        []EntityKind
}

// PullResult carries the changed rows per kind.
type PullResult struct {
	Measurements  []*Measurement
	Jobs          []*Job
	Expenses      []*Expense
	Payments      []*Payment
	Kinds         []EntityKind
	SyncTimestamp time.Time
	SyncVersion   int64
}

// MarshalJSON emits one array per requested kind plus the cursors.
func (r *PullResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Kinds)+2)
	for _, kind := range r.Kinds {
		switch kind {
		case KindMeasurement:
			out[kind.Plural()] = nonNil(r.Measurements)
		case KindJob:
			out[kind.Plural()] = nonNil(r.Jobs)
		case KindExpense:
			out[kind.Plural()] = nonNil(r.Expenses)
		case KindPayment:
			out[kind.Plural()] = nonNil(r.Payments)
		}
	}
	out["sync_timestamp"] = r.SyncTimestamp
	out["sync_version"] = r.SyncVersion
	return json.Marshal(out)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// ResolveConflictRequest for POST /sync/resolve/{log_id}
type ResolveConflictRequest struct {
	Resolution string `json:"resolution"`
}

// ResolveConflictResponse for POST /sync/resolve/{log_id}
type ResolveConflictResponse struct {
	LogID      string          `json:"log_id"`
	Resolution string          `json:"resolution"`
	Status     string          `json:"status"`
	EntityType string          `json:"entity_type"`
	Entity     json.RawMessage `json:"entity,omitempty"`
}
