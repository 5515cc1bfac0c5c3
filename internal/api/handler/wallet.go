package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/loyaltywallet/walletsync/internal/api/models"
	"github.com/loyaltywallet/walletsync/internal/api/request"
	"github.com/loyaltywallet/walletsync/internal/api/response"
	"github.com/loyaltywallet/walletsync/internal/pass"
	"github.com/loyaltywallet/walletsync/internal/passgen"
	"github.com/loyaltywallet/walletsync/internal/registration"
)

// Generator renders the current bundle for a pass.
type Generator interface {
	Generate(ctx context.Context, identity *pass.Identity) (*passgen.Bundle, error)
}

// WalletHandler serves the endpoints wallet clients call.
type WalletHandler struct {
	auth          *pass.Authenticator
	registrations *registration.Service
	generator     Generator
	logger        zerolog.Logger
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(auth *pass.Authenticator, registrations *registration.Service, generator Generator, logger zerolog.Logger) *WalletHandler {
	return &WalletHandler{
		auth:          auth,
		registrations: registrations,
		generator:     generator,
		logger:        logger,
	}
}

// authenticate resolves the pass named in the path for the presented token.
func (h *WalletHandler) authenticate(r *http.Request) (*pass.Identity, error) {
	token, ok := pass.TokenFromHeader(r.Header.Get("Authorization"))
	if !ok {
		return nil, pass.ErrInvalidToken
	}
	return h.auth.Authenticate(r.Context(), chi.URLParam(r, "passType"), chi.URLParam(r, "serial"), token)
}

// RegisterDevice handles POST /v1/devices/{device}/registrations/{passType}/{serial}.
func (h *WalletHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authenticate(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var body models.RegisterDeviceRequest
	if err := request.Decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	created, err := h.registrations.Register(r.Context(), registration.RegisterInput{
		Key: registration.Key{
			DeviceLibraryIdentifier: chi.URLParam(r, "device"),
			PassTypeIdentifier:      identity.PassTypeIdentifier,
			SerialNumber:            identity.SerialNumber,
		},
		PushToken:           body.PushToken,
		AuthenticationToken: identity.AuthenticationToken,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("device", chi.URLParam(r, "device")).
		Str("serial_number", identity.SerialNumber).
		Str("token_suffix", registration.TokenSuffix(body.PushToken)).
		Bool("created", created).
		Msg("device registered")

	if created {
		response.Status(w, r, http.StatusCreated)
		return
	}
	response.Status(w, r, http.StatusOK)
}

// UnregisterDevice handles DELETE /v1/devices/{device}/registrations/{passType}/{serial}.
func (h *WalletHandler) UnregisterDevice(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authenticate(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	key := registration.Key{
		DeviceLibraryIdentifier: chi.URLParam(r, "device"),
		PassTypeIdentifier:      identity.PassTypeIdentifier,
		SerialNumber:            identity.SerialNumber,
	}
	if err := h.registrations.Unregister(r.Context(), key); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info().Str("device", key.DeviceLibraryIdentifier).Str("serial_number", key.SerialNumber).Msg("device unregistered")
	response.Status(w, r, http.StatusOK)
}

// ListUpdatedPasses handles GET /v1/devices/{device}/registrations/{passType}.
func (h *WalletHandler) ListUpdatedPasses(w http.ResponseWriter, r *http.Request) {
	since, err := registration.ParseSince(r.URL.Query().Get("passesUpdatedSince"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	feed, ok, err := h.registrations.Updates(r.Context(), chi.URLParam(r, "device"), chi.URLParam(r, "passType"), since)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !ok {
		response.NoContent(w, r)
		return
	}

	response.JSON(w, r, http.StatusOK, models.SerialNumbers{
		LastUpdated:   feed.LastUpdatedTag(),
		SerialNumbers: feed.SerialNumbers,
	})
}

// GetPass handles GET /v1/passes/{passType}/{serial}.
func (h *WalletHandler) GetPass(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authenticate(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// Pass versions are whole seconds, as are HTTP dates.
	modified := identity.UpdatedAt.Truncate(time.Second)
	if ims, err := http.ParseTime(r.Header.Get("If-Modified-Since")); err == nil && !modified.After(ims) {
		response.NotModified(w, r, modified)
		return
	}

	bundle, err := h.generator.Generate(r.Context(), identity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.Attachment(w, r, bundle.ContentType, "", bundle.LastModified, bundle.Data)
}

// Log handles POST /v1/log.
func (h *WalletHandler) Log(w http.ResponseWriter, r *http.Request) {
	var body models.DeviceLogs
	if err := request.Decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	for _, msg := range body.Logs {
		h.logger.Info().Str("source", "device").Msg(msg)
	}
	response.Status(w, r, http.StatusOK)
}
