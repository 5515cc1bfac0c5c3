// Package registration binds wallet devices to passes and resolves the
// changed-since feed devices poll after a push.
package registration

import (
	"errors"
	"time"
)

// Errors returned by the registration package.
var (
	ErrMissingPushToken = errors.New("push token is required")
	ErrInvalidSince     = errors.New("passesUpdatedSince is not a valid timestamp")
)

// Key identifies one registration.
type Key struct {
	DeviceLibraryIdentifier string
	PassTypeIdentifier      string
	SerialNumber            string
}

// Registration binds a device to a pass. UpdatedAt only moves forward.
type Registration struct {
	Key
	PushToken           string
	AuthenticationToken string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TokenSuffix returns the last 4 characters of the push token for logging.
func TokenSuffix(token string) string {
	if len(token) < 4 {
		return token
	}
	return token[len(token)-4:]
}
