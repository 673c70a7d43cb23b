package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/services"
)

// ConflictHandler exposes an organization's sync log
type ConflictHandler struct {
	log *services.ConflictLog
}

// NewConflictHandler creates a new ConflictHandler
func NewConflictHandler(log *services.ConflictLog) *ConflictHandler {
	return &ConflictHandler{log: log}
}

// ListConflicts returns sync log entries
// @Summary List sync log entries
// @Description Newest first, with optional status filter
// @Tags sync
// @Produce json
// @Param status query string false "Filter by status (synced, conflict, resolved, error)"
// @Param skip query int false "Number of records to skip" default(0)
// @Param take query int false "Number of records to return" default(50)
// @Success 200 {object} models.SyncLogListResponse
// @Failure 422 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /sync/conflicts [get]
func (h *ConflictHandler) ListConflicts(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	skip, take, err := pageParams(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp, err := h.log.List(r.Context(), ident.OrganizationID, r.URL.Query().Get("status"), skip, take)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GetStats returns sync log counts
// @Summary Get sync log statistics
// @Tags sync
// @Produce json
// @Success 200 {object} models.SyncLogStats
// @Security GatewayIdentity
// @Router /sync/conflicts/stats [get]
func (h *ConflictHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	stats, err := h.log.Stats(r.Context(), ident.OrganizationID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GetConflict returns one sync log entry
// @Summary Get a sync log entry
// @Tags sync
// @Produce json
// @Param log_id path string true "Sync log entry ID"
// @Success 200 {object} models.SyncLogEntry
// @Failure 404 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /sync/conflicts/{log_id} [get]
func (h *ConflictHandler) GetConflict(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	entry, err := h.log.Get(r.Context(), ident.OrganizationID, chi.URLParam(r, "log_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}
