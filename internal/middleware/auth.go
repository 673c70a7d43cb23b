package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

// Identity headers set by the upstream auth gateway
const (
	OrganizationHeader = "X-Organization-ID"
	UserHeader         = "X-User-ID"
	DeviceHeader       = "X-Device-ID"
)

// GetIdentityFromContext retrieves the caller identity from request context
func GetIdentityFromContext(ctx context.Context) (models.Identity, bool) {
	ident, ok := ctx.Value(IdentityContextKey).(models.Identity)
	return ident, ok
}

// WithIdentity returns a context carrying ident
func WithIdentity(ctx context.Context, ident models.Identity) context.Context {
	return context.WithValue(ctx, IdentityContextKey, ident)
}

// RequireIdentity reads the gateway identity headers into the request context.
// Requests without an organization or user are rejected.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := models.Identity{
			OrganizationID: strings.TrimSpace(r.Header.Get(OrganizationHeader)),
			UserID:         strings.TrimSpace(r.Header.Get(UserHeader)),
			DeviceID:       strings.TrimSpace(r.Header.Get(DeviceHeader)),
		}

		var missing []models.FieldIssue
		if ident.OrganizationID == "" {
			missing = append(missing, models.FieldIssue{Field: OrganizationHeader, Message: "is required"})
		}
		if ident.UserID == "" {
			missing = append(missing, models.FieldIssue{Field: UserHeader, Message: "is required"})
		}
		if len(missing) > 0 {
			writeError(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Caller identity is required.", Details: missing})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}

// APIKeyAuth checks the shared gateway key on every request except the public paths.
func APIKeyAuth(apiKey, headerName string, publicPrefixes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range publicPrefixes {
				if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
					next.ServeHTTP(w, r)
					return
				}
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				writeError(w, http.StatusUnauthorized, models.ErrorResponse{Error: "API key is required."})
				return
			}

			// Constant-time comparison to prevent timing attacks
			if !constantTimeEquals(apiKey, providedKey) {
				writeError(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid API key."})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func writeError(w http.ResponseWriter, status int, body models.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
