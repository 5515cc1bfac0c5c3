package loyalty

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing.
type InMemoryRepository struct {
	mu        sync.RWMutex
	customers map[string]Customer
	cards     map[string]Card
	configs   map[string]PassConfig
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		customers: make(map[string]Customer),
		cards:     make(map[string]Card),
		configs:   make(map[string]PassConfig),
	}
}

// PutCustomer stores a customer.
func (r *InMemoryRepository) PutCustomer(c Customer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.customers[c.ID] = c
}

// PutCard stores a card.
func (r *InMemoryRepository) PutCard(c Card) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards[c.CardNumber] = c
}

// PutPassConfig stores a configuration.
func (r *InMemoryRepository) PutPassConfig(c PassConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[c.BusinessID] = c
}

// GetSnapshot returns a card and its customer.
func (r *InMemoryRepository) GetSnapshot(_ context.Context, cardNumber string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	card, ok := r.cards[cardNumber]
	if !ok {
		return nil, ErrCardNotFound
	}
	customer, ok := r.customers[card.CustomerID]
	if !ok {
		return nil, ErrCardNotFound
	}
	return &Snapshot{Customer: customer, Card: card}, nil
}

// GetPassConfig returns a business's configuration.
func (r *InMemoryRepository) GetPassConfig(_ context.Context, businessID string) (*PassConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[businessID]
	if !ok {
		return nil, ErrConfigNotFound
	}
	return &cfg, nil
}

var _ Repository = (*InMemoryRepository)(nil)
