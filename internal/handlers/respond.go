package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/middleware"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/observability"
)

const maxBodyBytes = 8 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// respondServiceError maps a service error onto its HTTP status.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error(), Details: verr.Issues})
	case errors.Is(err, models.ErrValidation):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrNotAConflict), errors.Is(err, models.ErrStaleWrite):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrBatchTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, models.ErrInfrastructure):
		observability.WithContext(r.Context()).Errorf("Storage failure on %s %s: %v", r.Method, r.URL.Path, err)
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusServiceUnavailable, "Storage is temporarily unavailable, retry the request.")
	default:
		observability.WithContext(r.Context()).Errorf("Unhandled error on %s %s: %v", r.Method, r.URL.Path, err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON reads a JSON request body into v. It reports false after
// writing a 400 response.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			respondError(w, http.StatusBadRequest, "Request body is required")
		default:
			respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		}
		return false
	}
	return true
}

// identity returns the caller set by middleware.RequireIdentity.
func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	ident, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Caller identity is required.")
	}
	return ident, ok
}

// pageParams reads skip and take; missing values are zero so services apply their defaults.
func pageParams(r *http.Request) (skip, take int, err error) {
	q := r.URL.Query()
	if s := q.Get("skip"); s != "" {
		if skip, err = strconv.Atoi(s); err != nil {
			return 0, 0, models.NewValidationError("skip", "must be an integer")
		}
	}
	if s := q.Get("take"); s != "" {
		if take, err = strconv.Atoi(s); err != nil {
			return 0, 0, models.NewValidationError("take", "must be an integer")
		}
	}
	return skip, take, nil
}
