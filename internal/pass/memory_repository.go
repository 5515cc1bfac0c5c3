package pass

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory Repository for tests and local runs.
type InMemoryRepository struct {
	mu     sync.RWMutex
	passes map[string]Identity
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{passes: make(map[string]Identity)}
}

// Get retrieves an identity by serial number.
func (r *InMemoryRepository) Get(_ context.Context, serial string) (*Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.passes[serial]
	if !ok {
		return nil, ErrPassNotFound
	}
	return &p, nil
}

// Create stores an identity unless the serial already exists.
func (r *InMemoryRepository) Create(_ context.Context, p *Identity) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.passes[p.SerialNumber]; ok {
		return false, nil
	}
	r.passes[p.SerialNumber] = *p
	return true, nil
}

// Touch advances UpdatedAt for a serial per NextVersion.
func (r *InMemoryRepository) Touch(_ context.Context, serial string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.passes[serial]
	if !ok {
		return ErrPassNotFound
	}
	p.UpdatedAt = NextVersion(p.UpdatedAt, at)
	r.passes[serial] = p
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
