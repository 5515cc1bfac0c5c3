// Package response writes the service's HTTP responses.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/loyaltywallet/walletsync/internal/api/middleware"
	"github.com/loyaltywallet/walletsync/internal/api/models"
)

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
}

// JSON writes data as JSON with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Status writes an empty response. Wallet clients expect no body on
// registration and unregistration.
func Status(w http.ResponseWriter, r *http.Request, status int) {
	setRequestID(w, r)
	w.WriteHeader(status)
}

// NoContent writes a 204.
func NoContent(w http.ResponseWriter, r *http.Request) {
	Status(w, r, http.StatusNoContent)
}

// NotModified writes a 304.
func NotModified(w http.ResponseWriter, r *http.Request, lastModified time.Time) {
	w.Header().Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	Status(w, r, http.StatusNotModified)
}

// Attachment writes a binary body. An empty filename serves it inline.
func Attachment(w http.ResponseWriter, r *http.Request, contentType, filename string, lastModified time.Time, data []byte) {
	setRequestID(w, r)
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("Cache-Control", "no-cache")
	if !lastModified.IsZero() {
		h.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
	if filename != "" {
		h.Set("Content-Disposition", `attachment; filename="`+attachmentName(filename)+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// attachmentName keeps the quoted filename parameter well formed.
func attachmentName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

// Error writes a problem response for the current request.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// Unauthorized writes a 401.
func Unauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewUnauthorized(middleware.GetRequestID(r.Context()), detail))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}
