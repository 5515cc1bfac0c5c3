package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/loyaltywallet/walletsync/internal/api/models"
)

// RateLimitByIP limits each client address to requestsPerMinute. A
// non-positive limit disables limiting.
func RateLimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// RateLimitByKey limits per API key, falling back to the client address.
func RateLimitByKey(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(keyByAPIKeyOrIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

func keyByAPIKeyOrIP(r *http.Request) (string, error) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return "key:" + key, nil
	}
	return httprate.KeyByRealIP(r)
}

func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	problem := models.NewTooManyRequests(GetRequestID(r.Context()), "rate limit exceeded, try again later")
	problem.Instance = r.URL.Path

	// httprate does not expose the window reset, so advertise the full window.
	w.Header().Set("Retry-After", strconv.Itoa(60))
	problem.Write(w)
}
