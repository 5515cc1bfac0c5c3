// Package push fans a pass change out to every device registered for it.
package push

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrProviderNotConfigured is returned when no push channel exists.
var ErrProviderNotConfigured = errors.New("push provider is not configured")

// Job is one delivery attempt. Wallet pushes carry an empty payload; the
// device reacts by polling the update feed.
type Job struct {
	PushToken string
	Topic     string
	Payload   []byte
}

// DeliveryError is a rejected delivery to one device.
type DeliveryError struct {
	StatusCode int
	Reason     string
}

func (e *DeliveryError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("push rejected: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("push rejected: %d %s", e.StatusCode, e.Reason)
}

// TokenInvalid reports whether the provider says the token will never work
// again, so its registrations can be dropped.
func (e *DeliveryError) TokenInvalid() bool {
	return e.StatusCode == http.StatusGone || e.Reason == "Unregistered" || e.Reason == "BadDeviceToken"
}
