package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
)

const ClientVersionHeader = "X-Client-Version"

// RequireClientVersion rejects clients older than minVersion with 426 Upgrade Required.
// An empty minVersion disables the check.
func RequireClientVersion(minVersion string) (func(http.Handler) http.Handler, error) {
	if strings.TrimSpace(minVersion) == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	minimum, err := semver.NewVersion(minVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid minimum client version %q: %w", minVersion, err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(ClientVersionHeader))
			if raw == "" {
				writeError(w, http.StatusUpgradeRequired, models.ErrorResponse{
					Error: fmt.Sprintf("%s header is required; minimum supported version is %s", ClientVersionHeader, minimum),
				})
				return
			}

			version, err := semver.NewVersion(raw)
			if err != nil {
				writeError(w, http.StatusUpgradeRequired, models.ErrorResponse{
					Error: fmt.Sprintf("unrecognized client version %q; minimum supported version is %s", raw, minimum),
				})
				return
			}
			if version.LessThan(minimum) {
				writeError(w, http.StatusUpgradeRequired, models.ErrorResponse{
					Error: fmt.Sprintf("client version %s is no longer supported; minimum is %s", version, minimum),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}
