package registration

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Service provides registry operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new registration service.
func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// RegisterInput carries a device registration request.
type RegisterInput struct {
	Key
	PushToken           string
	AuthenticationToken string
}

// Register binds a device to a pass, replacing the push token of an existing
// binding. created reports whether the binding is new.
func (s *Service) Register(ctx context.Context, in RegisterInput) (bool, error) {
	if strings.TrimSpace(in.PushToken) == "" {
		return false, ErrMissingPushToken
	}

	now := s.now()
	reg := &Registration{
		Key:                 in.Key,
		PushToken:           in.PushToken,
		AuthenticationToken: in.AuthenticationToken,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	created, err := s.repo.Upsert(ctx, reg)
	if err != nil {
		return false, fmt.Errorf("upsert registration: %w", err)
	}
	return created, nil
}

// Unregister removes a binding. Missing bindings are not an error.
func (s *Service) Unregister(ctx context.Context, key Key) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return nil
}

// PushTokens returns the distinct push tokens registered for serial.
func (s *Service) PushTokens(ctx context.Context, serial string) ([]string, error) {
	regs, err := s.repo.ListBySerial(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}

	seen := make(map[string]struct{}, len(regs))
	tokens := make([]string, 0, len(regs))
	for _, reg := range regs {
		if _, dup := seen[reg.PushToken]; dup {
			continue
		}
		seen[reg.PushToken] = struct{}{}
		tokens = append(tokens, reg.PushToken)
	}
	return tokens, nil
}

// FeedSince returns the device's registrations for passType, restricted to
// those updated strictly after since when it is non-nil.
func (s *Service) FeedSince(ctx context.Context, device, passType string, since *time.Time) ([]*Registration, error) {
	regs, err := s.repo.ListByDevice(ctx, device, passType, since)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// MarkChanged advances UpdatedAt on every registration of serial and returns
// how many were touched.
func (s *Service) MarkChanged(ctx context.Context, serial string, at time.Time) (int64, error) {
	n, err := s.repo.Touch(ctx, serial, at)
	if err != nil {
		return 0, fmt.Errorf("touch registrations: %w", err)
	}
	return n, nil
}

// RemovePushToken drops every registration for a token the push provider
// reported as no longer valid.
func (s *Service) RemovePushToken(ctx context.Context, token string) (int64, error) {
	n, err := s.repo.DeleteByPushToken(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("delete registrations by push token: %w", err)
	}
	return n, nil
}
