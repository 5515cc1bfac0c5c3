package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/loyaltywallet/walletsync/internal/api/models"
	"github.com/loyaltywallet/walletsync/internal/api/request"
	"github.com/loyaltywallet/walletsync/internal/api/response"
	"github.com/loyaltywallet/walletsync/internal/loyalty"
	"github.com/loyaltywallet/walletsync/internal/pass"
)

// Issuer creates and looks up pass identities.
type Issuer interface {
	Issue(ctx context.Context, serial string) (*pass.Identity, bool, error)
	Get(ctx context.Context, serial string) (*pass.Identity, error)
}

// CardLookup confirms a loyalty card exists before a pass is issued for it.
type CardLookup interface {
	GetSnapshot(ctx context.Context, cardNumber string) (*loyalty.Snapshot, error)
}

// IssueHandler hands out new passes.
type IssueHandler struct {
	cards     CardLookup
	passes    Issuer
	generator Generator
	logger    zerolog.Logger
}

// NewIssueHandler creates an IssueHandler.
func NewIssueHandler(cards CardLookup, passes Issuer, generator Generator, logger zerolog.Logger) *IssueHandler {
	return &IssueHandler{cards: cards, passes: passes, generator: generator, logger: logger}
}

// IssuePass handles POST /api/passes. Retrying for the same card returns the
// pass that was already issued.
func (h *IssueHandler) IssuePass(w http.ResponseWriter, r *http.Request) {
	var body models.SerialRequest
	if err := request.Decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if _, err := h.cards.GetSnapshot(r.Context(), body.SerialNumber); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	identity, created, err := h.passes.Issue(r.Context(), body.SerialNumber)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if created {
		h.logger.Info().Str("serial_number", identity.SerialNumber).Msg("pass issued")
	}

	bundle, err := h.generator.Generate(r.Context(), identity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.Attachment(w, r, bundle.ContentType, identity.SerialNumber+".pkpass", bundle.LastModified, bundle.Data)
}

// GetPassMetadata handles GET /api/passes/{serial}.
func (h *IssueHandler) GetPassMetadata(w http.ResponseWriter, r *http.Request) {
	identity, err := h.passes.Get(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.PassMetadata{
		SerialNumber:       identity.SerialNumber,
		PassTypeIdentifier: identity.PassTypeIdentifier,
		CreatedAt:          identity.CreatedAt,
		UpdatedAt:          identity.UpdatedAt,
	})
}
