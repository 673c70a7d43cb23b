package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/services"
)

// TrackingHandler handles GPS breadcrumb endpoints
type TrackingHandler struct {
	ingest *services.TrackingIngest
}

// NewTrackingHandler creates a new TrackingHandler
func NewTrackingHandler(ingest *services.TrackingIngest) *TrackingHandler {
	return &TrackingHandler{ingest: ingest}
}

// Batch stores a batch of locations
// @Summary Upload tracking points
// @Description Stores every location or none. A location may carry a raw $GPGGA or $GPRMC sentence instead of coordinates.
// @Tags tracking
// @Accept json
// @Produce json
// @Param request body models.TrackingBatchRequest true "Locations"
// @Success 201 {object} models.TrackingBatchResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /tracking/batch [post]
func (h *TrackingHandler) Batch(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.TrackingBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	count, err := h.ingest.IngestBatch(r.Context(), ident, req)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, models.TrackingBatchResponse{Count: count})
}

// Trail lists stored locations
// @Summary List tracking points
// @Tags tracking
// @Produce json
// @Param driver_id query string false "Driver ID"
// @Param job_id query string false "Job ID"
// @Param from query string false "RFC 3339 lower bound on recorded_at"
// @Param to query string false "RFC 3339 upper bound on recorded_at"
// @Param limit query int false "Maximum points" default(500)
// @Success 200 {object} models.TrailResponse
// @Failure 422 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /tracking/trail [get]
func (h *TrackingHandler) Trail(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	q, err := parseTrailQuery(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	points, err := h.ingest.ListTrail(r.Context(), ident.OrganizationID, q)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if points == nil {
		points = []*models.TrackingPoint{}
	}
	respondJSON(w, http.StatusOK, models.TrailResponse{Points: points, Count: len(points)})
}

func parseTrailQuery(r *http.Request) (models.TrailQuery, error) {
	values := r.URL.Query()
	q := models.TrailQuery{
		DriverID: values.Get("driver_id"),
		JobID:    values.Get("job_id"),
	}

	verr := &models.ValidationError{}
	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &q.From}, {"to", &q.To}} {
		s := values.Get(bound.name)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			verr.Add(bound.name, "must be an RFC 3339 timestamp")
			continue
		}
		*bound.dst = &t
	}
	if s := values.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			verr.Add("limit", "must be an integer")
		}
		q.Limit = limit
	}

	if verr.HasIssues() {
		return q, verr
	}
	return q, nil
}
