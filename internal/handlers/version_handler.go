package handlers

import (
	"net/http"
)

// Version information injected at build time
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

type VersionResponse struct {
	Version          string `json:"version"`
	GitCommit        string `json:"gitCommit"`
	BuildTime        string `json:"buildTime"`
	MinClientVersion string `json:"minClientVersion,omitempty"`
}

// VersionHandler reports the build and the oldest client the sync endpoints accept
func VersionHandler(minClientVersion string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, VersionResponse{
			Version:          Version,
			GitCommit:        GitCommit,
			BuildTime:        BuildTime,
			MinClientVersion: minClientVersion,
		})
	}
}
