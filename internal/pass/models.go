// Package pass holds issued pass identities and authenticates protocol
// requests against them.
package pass

import (
	"errors"
	"time"
)

// Errors returned by the pass package.
var (
	ErrPassNotFound     = errors.New("pass not found")
	ErrInvalidToken     = errors.New("invalid authentication token")
	ErrPassTypeMismatch = errors.New("pass type identifier does not match pass")
)

// Identity is an issued pass. The serial number doubles as the loyalty card
// number and the authentication token never changes after issuance.
type Identity struct {
	PassTypeIdentifier  string
	SerialNumber        string
	AuthenticationToken string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
