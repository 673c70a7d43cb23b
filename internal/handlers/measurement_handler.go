package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/services"
)

// MeasurementHandler handles direct measurement endpoints
type MeasurementHandler struct {
	measurements *services.MeasurementService
}

// NewMeasurementHandler creates a new MeasurementHandler
func NewMeasurementHandler(measurements *services.MeasurementService) *MeasurementHandler {
	return &MeasurementHandler{measurements: measurements}
}

// Create stores a measured parcel
// @Summary Create a measurement
// @Description Area, perimeter and center are computed from the polygon. Repeating an offline_id returns the stored measurement.
// @Tags measurements
// @Accept json
// @Produce json
// @Param request body models.CreateMeasurementRequest true "Measurement"
// @Success 201 {object} models.Measurement
// @Failure 422 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /measurements [post]
func (h *MeasurementHandler) Create(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.CreateMeasurementRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.measurements.Create(r.Context(), ident, req.Name, req.Polygon, req.OfflineID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// Calculate previews polygon geometry
// @Summary Calculate polygon geometry
// @Description Computes area, perimeter and center without storing anything
// @Tags measurements
// @Accept json
// @Produce json
// @Param request body models.CalculateRequest true "Polygon"
// @Success 200 {object} models.Geometry
// @Failure 422 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /measurements/calculate [post]
func (h *MeasurementHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req models.CalculateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	geometry, err := h.measurements.Calculate(r.Context(), req.Polygon)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, geometry)
}

// List returns live measurements
// @Summary List measurements
// @Tags measurements
// @Produce json
// @Param status query string false "Filter by status (draft, confirmed, archived)"
// @Param skip query int false "Number of records to skip" default(0)
// @Param take query int false "Number of records to return" default(50)
// @Success 200 {object} models.MeasurementListResponse
// @Security GatewayIdentity
// @Router /measurements [get]
func (h *MeasurementHandler) List(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	skip, take, err := pageParams(r)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp, err := h.measurements.List(r.Context(), ident.OrganizationID, r.URL.Query().Get("status"), skip, take)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get returns one measurement
// @Summary Get a measurement
// @Tags measurements
// @Produce json
// @Param id path string true "Measurement ID"
// @Success 200 {object} models.Measurement
// @Failure 404 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /measurements/{id} [get]
func (h *MeasurementHandler) Get(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	m, err := h.measurements.Get(r.Context(), ident.OrganizationID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// ReplacePolygon swaps a measurement's polygon
// @Summary Replace a measurement polygon
// @Description Recomputes every derived value in the same write
// @Tags measurements
// @Accept json
// @Produce json
// @Param id path string true "Measurement ID"
// @Param request body models.ReplacePolygonRequest true "Polygon"
// @Success 200 {object} models.Measurement
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /measurements/{id}/polygon [put]
func (h *MeasurementHandler) ReplacePolygon(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}
	var req models.ReplacePolygonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	m, err := h.measurements.ReplacePolygon(r.Context(), ident, chi.URLParam(r, "id"), req.Polygon)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// Delete soft deletes a measurement
// @Summary Delete a measurement
// @Tags measurements
// @Param id path string true "Measurement ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security GatewayIdentity
// @Router /measurements/{id} [delete]
func (h *MeasurementHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.measurements.Delete(r.Context(), ident, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
