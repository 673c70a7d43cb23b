package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/services"
)

// SyncHandler handles offline sync endpoints
type SyncHandler struct {
	engine *services.SyncEngine
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(engine *services.SyncEngine) *SyncHandler {
	return &SyncHandler{engine: engine}
}

// Push applies a batch of offline writes
// @Summary Push offline changes
// @Description Apply a batch of locally captured writes. Each item is reported as synced, conflict or error.
// @Tags sync
// @Accept json
// @Produce json
// @Param request body models.SyncPushRequest true "Batch of sync items"
// @Success 200 {object} models.SyncResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 426 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /sync/push [post]
func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	var req models.SyncPushRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.engine.Push(r.Context(), ident, req.Items)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Pull returns server changes since a cursor
// @Summary Pull server changes
// @Description Rows changed after since (RFC 3339) or since_version, per requested kind. Soft-deleted measurements carry deleted_at.
// @Tags sync
// @Produce json
// @Param since query string false "RFC 3339 timestamp cursor"
// @Param since_version query int false "Server sequence cursor, takes precedence over since"
// @Param include query string false "Comma separated kinds (measurements,jobs,expenses,payments)"
// @Success 200 {object} object
// @Failure 422 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /sync/pull [get]
func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	req, err := parsePullRequest(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	result, err := h.engine.Pull(r.Context(), ident.OrganizationID, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func parsePullRequest(r *http.Request) (models.PullRequest, error) {
	var req models.PullRequest
	q := r.URL.Query()

	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return req, models.NewValidationError("since", "must be an RFC 3339 timestamp")
		}
		req.Since = since
	}
	if s := q.Get("since_version"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return req, models.NewValidationError("since_version", "must be an integer")
		}
		req.SinceVersion = &v
	}
	if s := q.Get("include"); s != "" {
		seen := make(map[models.EntityKind]bool)
		for _, name := range strings.Split(s, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			kind, err := models.ParseEntityKind(name)
			if err != nil {
				return req, models.NewValidationError("include", "unknown kind "+strconv.Quote(strings.TrimSpace(name)))
			}
			if !seen[kind] {
				seen[kind] = true
				req.Kinds = append(req.Kinds, kind)
			}
		}
	}
	return req, nil
}

// Resolve settles a sync conflict
// @Summary Resolve a sync conflict
// @Description use_server keeps the stored row; use_client re-applies the client's snapshot.
// @Tags sync
// @Accept json
// @Produce json
// @Param log_id path string true "Sync log entry ID"
// @Param request body models.ResolveConflictRequest true "Resolution"
// @Success 200 {object} models.ResolveConflictResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /sync/resolve/{log_id} [post]
func (h *SyncHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	var req models.ResolveConflictRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.engine.ResolveConflict(r.Context(), ident, chi.URLParam(r, "log_id"), req.Resolution)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
