// Package update records pass changes and tells the registered devices.
package update

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/loyaltywallet/walletsync/internal/pass"
	"github.com/loyaltywallet/walletsync/internal/push"
	"github.com/loyaltywallet/walletsync/internal/registration"
)

// Dispatcher fans a change out to devices.
type Dispatcher interface {
	Dispatch(ctx context.Context, serial string) (*push.Result, error)
}

// Service coordinates change marking and push fan-out.
type Service struct {
	passes        *pass.Service
	registrations *registration.Service
	dispatcher    Dispatcher
	logger        zerolog.Logger
	now           func() time.Time
}

// NewService creates an update service.
func NewService(passes *pass.Service, registrations *registration.Service, dispatcher Dispatcher, logger zerolog.Logger) *Service {
	return &Service{
		passes:        passes,
		registrations: registrations,
		dispatcher:    dispatcher,
		logger:        logger,
		now:           pass.Now,
	}
}

// Notify pushes to every device registered for serial without recording a
// change. Devices that poll afterwards see only passes whose UpdatedAt moved.
func (s *Service) Notify(ctx context.Context, serial string) (*push.Result, error) {
	return s.dispatcher.Dispatch(ctx, serial)
}

// MarkChanged advances UpdatedAt on the pass and its registrations, then
// pushes. A pass that was never issued is reported as pass.ErrPassNotFound.
func (s *Service) MarkChanged(ctx context.Context, serial string) (*push.Result, error) {
	at := s.now()

	if err := s.passes.MarkChanged(ctx, serial, at); err != nil {
		return nil, err
	}

	touched, err := s.registrations.MarkChanged(ctx, serial, at)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("serial_number", serial).
		Int64("registrations", touched).
		Time("updated_at", at).
		Msg("pass marked changed")

	result, err := s.dispatcher.Dispatch(ctx, serial)
	if errors.Is(err, push.ErrProviderNotConfigured) {
		// The change is recorded; devices pick it up on their next poll.
		s.logger.Warn().Str("serial_number", serial).Msg("push provider not configured, skipping notification")
		return &push.Result{SerialNumber: serial}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	return result, nil
}
