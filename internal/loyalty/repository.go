package loyalty

import "context"

// Repository reads loyalty records.
type Repository interface {
	// GetSnapshot returns the card with the given number and its customer.
	GetSnapshot(ctx context.Context, cardNumber string) (*Snapshot, error)

	// GetPassConfig returns the rendering configuration of a business.
	GetPassConfig(ctx context.Context, businessID string) (*PassConfig, error)
}
