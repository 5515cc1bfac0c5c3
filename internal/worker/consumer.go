package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/loyaltywallet/walletsync/internal/pass"
	"github.com/loyaltywallet/walletsync/internal/push"
)

// SerialAttribute names the message attribute that may carry the serial
// when the payload does not.
const SerialAttribute = "serialNumber"

// ChangeMarker records a pass change and notifies its devices.
type ChangeMarker interface {
	MarkChanged(ctx context.Context, serial string) (*push.Result, error)
}

// Message is a delivered event, independent of the broker.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// PassChangedEvent is the payload published when loyalty state changes.
type PassChangedEvent struct {
	SerialNumber string `json:"serialNumber"`
}

// Outcome tells the broker what to do with a message.
type Outcome int

// Outcomes.
const (
	// Ack removes the message, including ones that can never succeed.
	Ack Outcome = iota
	// Nack asks for redelivery.
	Nack
)

// Consumer turns pass change events into change marking and pushes.
type Consumer struct {
	updates ChangeMarker
	timeout time.Duration
	logger  zerolog.Logger
}

// NewConsumer creates a Consumer. A non-positive timeout uses the default.
func NewConsumer(updates ChangeMarker, timeout time.Duration, logger zerolog.Logger) *Consumer {
	if timeout <= 0 {
		timeout = DefaultReceiveConfig().HandlerTimeout
	}
	return &Consumer{updates: updates, timeout: timeout, logger: logger}
}

// Handle processes one message. Malformed events and unknown passes are
// acknowledged so they are not redelivered forever; store failures are
// retried.
func (c *Consumer) Handle(ctx context.Context, msg Message) Outcome {
	start := time.Now()
	logger := c.logger.With().Str("message_id", msg.ID).Logger()

	serial, err := serialOf(msg)
	if err != nil {
		logger.Error().Err(err).Msg("dropping malformed pass change event")
		return Ack
	}
	logger = logger.With().Str("serial_number", serial).Logger()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.updates.MarkChanged(ctx, serial)
	switch {
	case errors.Is(err, pass.ErrPassNotFound):
		logger.Warn().Msg("dropping change event for a pass that was never issued")
		return Ack
	case err != nil:
		logger.Error().Err(err).Msg("pass change failed, requesting redelivery")
		return Nack
	}

	logger.Info().
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Dur("duration", time.Since(start)).
		Msg("pass change propagated")
	return Ack
}

func serialOf(msg Message) (string, error) {
	if len(msg.Data) > 0 {
		var event PassChangedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return "", err
		}
		if event.SerialNumber != "" {
			return event.SerialNumber, nil
		}
	}
	if serial := msg.Attributes[SerialAttribute]; serial != "" {
		return serial, nil
	}
	return "", errors.New("event carries no serial number")
}
