package registration

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL implementation.
type InMemoryRepository struct {
	mu   sync.RWMutex
	regs map[Key]Registration
}

// NewInMemoryRepository creates a new in-memory registration repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{regs: make(map[Key]Registration)}
}

// Upsert creates or updates a registration.
func (r *InMemoryRepository) Upsert(_ context.Context, reg *Registration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.regs[reg.Key]
	if !ok {
		r.regs[reg.Key] = *reg
		return true, nil
	}

	existing.PushToken = reg.PushToken
	existing.AuthenticationToken = reg.AuthenticationToken
	if reg.UpdatedAt.After(existing.UpdatedAt) {
		existing.UpdatedAt = reg.UpdatedAt
	}
	r.regs[reg.Key] = existing
	reg.UpdatedAt = existing.UpdatedAt
	return false, nil
}

// ListBySerial returns the registrations of a serial.
func (r *InMemoryRepository) ListBySerial(_ context.Context, serial string) ([]*Registration, error) {
	return r.filter(func(reg Registration) bool { return reg.SerialNumber == serial }), nil
}

// ListByDevice returns a device's registrations for a pass type.
func (r *InMemoryRepository) ListByDevice(_ context.Context, device, passType string, since *time.Time) ([]*Registration, error) {
	return r.filter(func(reg Registration) bool {
		if reg.DeviceLibraryIdentifier != device || reg.PassTypeIdentifier != passType {
			return false
		}
		return since == nil || reg.UpdatedAt.After(*since)
	}), nil
}

// Delete removes a registration.
func (r *InMemoryRepository) Delete(_ context.Context, key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.regs, key)
	return nil
}

// DeleteByPushToken removes every registration for a push token.
func (r *InMemoryRepository) DeleteByPushToken(_ context.Context, token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, reg := range r.regs {
		if reg.PushToken == token {
			delete(r.regs, key)
			n++
		}
	}
	return n, nil
}

// Touch advances UpdatedAt for every registration of a serial.
func (r *InMemoryRepository) Touch(_ context.Context, serial string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, reg := range r.regs {
		if reg.SerialNumber != serial {
			continue
		}
		if at.After(reg.UpdatedAt) {
			reg.UpdatedAt = at
			r.regs[key] = reg
		}
		n++
	}
	return n, nil
}

func (r *InMemoryRepository) filter(keep func(Registration) bool) []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Registration
	for _, reg := range r.regs {
		if keep(reg) {
			reg := reg
			out = append(out, &reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SerialNumber < out[j].SerialNumber })
	return out
}

var _ Repository = (*InMemoryRepository)(nil)
