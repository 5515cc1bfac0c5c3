package pass

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service issues pass identities and records pass changes.
type Service struct {
	repo     Repository
	passType string
	now      func() time.Time
}

// NewService creates a pass service issuing identities for passType.
func NewService(repo Repository, passType string) *Service {
	return &Service{repo: repo, passType: passType, now: Now}
}

// Now returns the current time at the precision the store keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Issue returns the identity for serial, creating it with a fresh
// authentication token on first use.
func (s *Service) Issue(ctx context.Context, serial string) (*Identity, bool, error) {
	now := s.now()
	candidate := &Identity{
		PassTypeIdentifier:  s.passType,
		SerialNumber:        serial,
		AuthenticationToken: newAuthenticationToken(),
		CreatedAt:           now,
		UpdatedAt:           now.Truncate(time.Second),
	}

	created, err := s.repo.Create(ctx, candidate)
	if err != nil {
		return nil, false, fmt.Errorf("create pass: %w", err)
	}
	if created {
		return candidate, true, nil
	}

	existing, err := s.repo.Get(ctx, serial)
	if err != nil {
		return nil, false, fmt.Errorf("get pass: %w", err)
	}
	return existing, false, nil
}

// Get returns the identity for serial.
func (s *Service) Get(ctx context.Context, serial string) (*Identity, error) {
	return s.repo.Get(ctx, serial)
}

// NextVersion returns the UpdatedAt of a pass last changed at current after
// a change at at. Versions are whole seconds, like the HTTP dates devices
// send back in If-Modified-Since, and every change moves them forward by at
// least one second.
func NextVersion(current, at time.Time) time.Time {
	floor := current.Truncate(time.Second).Add(time.Second)
	if next := at.Truncate(time.Second); next.After(floor) {
		return next
	}
	return floor
}

// MarkChanged records a change at at, advancing UpdatedAt per NextVersion.
func (s *Service) MarkChanged(ctx context.Context, serial string, at time.Time) error {
	if err := s.repo.Touch(ctx, serial, at); err != nil {
		return fmt.Errorf("touch pass: %w", err)
	}
	return nil
}

// The vendor requires at least 16 characters.
func newAuthenticationToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
