// ABOUTME: Bearer token authentication middleware for the API routes.
// ABOUTME: Constant-time comparison; only the root and health endpoints pass through unprotected.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// AuthMiddleware returns an http.Handler middleware that validates bearer
// tokens on /api/* routes. The health check passes through unprotected.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	expected := "Bearer " + token
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if path == "/" || path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			if !strings.HasPrefix(path, "/api/") && path != "/api" {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(auth), []byte(expected)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		})
	}
}
