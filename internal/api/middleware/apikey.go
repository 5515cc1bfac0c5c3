package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/loyaltywallet/walletsync/internal/api/models"
)

// APIKeyHeader carries the shared secret for internal trigger endpoints.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key does not match key. An
// empty key leaves the routes open, which is only sensible behind a private
// network boundary.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		want := []byte(key)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(APIKeyHeader))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				problem := models.NewUnauthorized(GetRequestID(r.Context()), "missing or invalid API key")
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
