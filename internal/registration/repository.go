package registration

import (
	"context"
	"time"
)

// Repository defines registration persistence.
type Repository interface {
	// Upsert stores a registration keyed by its Key. An existing row keeps
	// its CreatedAt, takes the new push token and never moves UpdatedAt back.
	Upsert(ctx context.Context, reg *Registration) (created bool, err error)

	// ListBySerial returns every registration bound to serial.
	ListBySerial(ctx context.Context, serial string) ([]*Registration, error)

	// ListByDevice returns the device's registrations for a pass type,
	// restricted to UpdatedAt strictly after since when since is non-nil.
	ListByDevice(ctx context.Context, device, passType string, since *time.Time) ([]*Registration, error)

	// Delete removes a registration. Deleting a missing row is not an error.
	Delete(ctx context.Context, key Key) error

	// DeleteByPushToken removes every registration carrying token.
	DeleteByPushToken(ctx context.Context, token string) (int64, error)

	// Touch advances UpdatedAt on every registration of serial.
	Touch(ctx context.Context, serial string, at time.Time) (int64, error)
}
