package pass

import (
	"context"
	"time"
)

// Repository persists pass identities.
type Repository interface {
	// Get returns the identity for a serial number or ErrPassNotFound.
	Get(ctx context.Context, serial string) (*Identity, error)

	// Create stores a new identity. If the serial already exists the stored
	// identity is left untouched and created is false.
	Create(ctx context.Context, identity *Identity) (created bool, err error)

	// Touch advances UpdatedAt to at, never backwards.
	Touch(ctx context.Context, serial string, at time.Time) error
}
