// Package handler implements the wallet web service endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/loyaltywallet/walletsync/internal/api/middleware"
	"github.com/loyaltywallet/walletsync/internal/api/request"
	"github.com/loyaltywallet/walletsync/internal/api/response"
	"github.com/loyaltywallet/walletsync/internal/loyalty"
	"github.com/loyaltywallet/walletsync/internal/pass"
	"github.com/loyaltywallet/walletsync/internal/passgen"
	"github.com/loyaltywallet/walletsync/internal/push"
	"github.com/loyaltywallet/walletsync/internal/registration"
)

// writeError maps domain errors onto status codes. Client-facing details
// stay short; the full error goes to the log for 5xx responses.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	var ve *request.ValidationError

	switch {
	case errors.As(err, &ve):
		response.BadRequest(w, r, ve.Detail, ve.Fields)
	case errors.Is(err, registration.ErrMissingPushToken),
		errors.Is(err, registration.ErrInvalidSince):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, pass.ErrInvalidToken):
		response.Unauthorized(w, r, "invalid authentication token")
	case errors.Is(err, pass.ErrPassTypeMismatch),
		errors.Is(err, pass.ErrPassNotFound),
		errors.Is(err, loyalty.ErrCardNotFound):
		response.NotFound(w, r, "pass not found")
	case errors.Is(err, passgen.ErrNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, push.ErrProviderNotConfigured):
		logFailure(r, log, err)
		response.InternalError(w, r, "push provider is not configured")
	case errors.Is(err, passgen.ErrAssetRetrieval):
		logFailure(r, log, err)
		response.InternalError(w, r, "pass assets could not be retrieved")
	default:
		logFailure(r, log, err)
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func logFailure(r *http.Request, log zerolog.Logger, err error) {
	log.Error().
		Err(err).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
}
