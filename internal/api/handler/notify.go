package handler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/loyaltywallet/walletsync/internal/api/models"
	"github.com/loyaltywallet/walletsync/internal/api/request"
	"github.com/loyaltywallet/walletsync/internal/api/response"
	"github.com/loyaltywallet/walletsync/internal/push"
)

// Updater propagates pass changes to devices.
type Updater interface {
	Notify(ctx context.Context, serial string) (*push.Result, error)
	MarkChanged(ctx context.Context, serial string) (*push.Result, error)
}

// NotifyHandler serves the internal triggers that push to devices.
type NotifyHandler struct {
	updates Updater
	logger  zerolog.Logger
}

// NewNotifyHandler creates a NotifyHandler.
func NewNotifyHandler(updates Updater, logger zerolog.Logger) *NotifyHandler {
	return &NotifyHandler{updates: updates, logger: logger}
}

// NotifyUpdate handles POST /notify-update. It pushes without recording a
// change.
func (h *NotifyHandler) NotifyUpdate(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.updates.Notify, "notification dispatched")
}

// PassChanged handles POST /api/webhook/pass-changed. It records the change
// so the update feed reports it, then pushes.
func (h *NotifyHandler) PassChanged(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.updates.MarkChanged, "pass change recorded")
}

func (h *NotifyHandler) serve(w http.ResponseWriter, r *http.Request, run func(context.Context, string) (*push.Result, error), message string) {
	var body models.SerialRequest
	if err := request.Decode(r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := run(r.Context(), body.SerialNumber)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NotifyResponse{
		Message:      message,
		SerialNumber: body.SerialNumber,
		Attempted:    result.Attempted,
		Sent:         result.Sent,
		Failed:       result.Failed,
	})
}
