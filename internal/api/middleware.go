// Package api implements the raido REST API using chi.
package api

import (
	"net/http"
	"strings"
)

// defaultOwner is used when no owner header is present. Authentication is an
// external concern; the API only needs an owner scope for the datastore.
const defaultOwner = "local"

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ownerID extracts the owner scope from the request.
func ownerID(r *http.Request) string {
	if owner := strings.TrimSpace(r.Header.Get("X-Owner-ID")); owner != "" {
		return owner
	}
	return defaultOwner
}
