package push

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/loyaltywallet/walletsync/internal/registration"
)

// Sender delivers one job.
type Sender interface {
	Send(ctx context.Context, job Job) error
}

// Registry is the view of the device registry the dispatcher needs.
type Registry interface {
	PushTokens(ctx context.Context, serial string) ([]string, error)
	RemovePushToken(ctx context.Context, token string) (int64, error)
}

// Config wires a Dispatcher. A nil Sender makes every dispatch fail with
// ErrProviderNotConfigured.
type Config struct {
	Sender   Sender
	Registry Registry
	Topic    string
	Logger   zerolog.Logger

	// Concurrency bounds in-flight sends. Default: 8
	Concurrency int

	// Timeout bounds each send on its own. Default: 10 seconds
	Timeout time.Duration

	// RatePerSecond paces sends when positive.
	RatePerSecond float64
}

// Outcome is the result for one push token.
type Outcome struct {
	TokenSuffix string
	Err         error
	Pruned      bool
}

// Result summarizes one dispatch.
type Result struct {
	SerialNumber string
	Attempted    int
	Sent         int
	Failed       int
	Outcomes     []Outcome
}

// Dispatcher sends silent pushes for changed passes.
type Dispatcher struct {
	cfg        Config
	limiter    *rate.Limiter
	deliveries metric.Int64Counter
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	deliveries, err := otel.Meter("walletsync/push").Int64Counter(
		"push.deliveries",
		metric.WithDescription("Push deliveries by outcome"),
		metric.WithUnit("{delivery}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create deliveries counter: %w", err)
	}

	d := &Dispatcher{cfg: cfg, deliveries: deliveries}
	if cfg.RatePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return d, nil
}

// Configured reports whether a push channel is wired.
func (d *Dispatcher) Configured() bool {
	return d.cfg.Sender != nil
}

// Dispatch pushes to every device registered for serial. Per-device
// failures are recorded in the result and never returned as the error; the
// error is reserved for a missing provider or a failed registry read. Sends
// outlive the caller's cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, serial string) (*Result, error) {
	if d.cfg.Sender == nil {
		return nil, ErrProviderNotConfigured
	}

	tokens, err := d.cfg.Registry.PushTokens(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("load push tokens: %w", err)
	}

	result := &Result{SerialNumber: serial, Attempted: len(tokens)}
	if len(tokens) == 0 {
		d.cfg.Logger.Debug().Str("serial_number", serial).Msg("no devices registered, nothing to push")
		return result, nil
	}

	base := context.WithoutCancel(ctx)
	outcomes := make([]Outcome, len(tokens))

	var eg errgroup.Group
	eg.SetLimit(d.cfg.Concurrency)
	for i, token := range tokens {
		eg.Go(func() error {
			outcomes[i] = d.send(base, serial, token)
			return nil
		})
	}
	_ = eg.Wait()

	for _, o := range outcomes {
		if o.Err != nil {
			result.Failed++
		} else {
			result.Sent++
		}
	}
	result.Outcomes = outcomes

	d.cfg.Logger.Info().
		Str("serial_number", serial).
		Int("sent", result.Sent).
		Int("failed", result.Failed).
		Msg("push dispatch complete")

	return result, nil
}

func (d *Dispatcher) send(ctx context.Context, serial, token string) Outcome {
	outcome := Outcome{TokenSuffix: registration.TokenSuffix(token)}

	// Queueing for the limiter does not count against the send timeout.
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			outcome.Err = fmt.Errorf("rate limit wait: %w", err)
			d.record(ctx, outcome)
			return outcome
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	outcome.Err = d.cfg.Sender.Send(sendCtx, Job{PushToken: token, Topic: d.cfg.Topic, Payload: []byte("{}")})
	cancel()
	if outcome.Err != nil {
		d.cfg.Logger.Warn().
			Err(outcome.Err).
			Str("serial_number", serial).
			Str("token_suffix", outcome.TokenSuffix).
			Msg("push delivery failed")

		var delivery *DeliveryError
		if errors.As(outcome.Err, &delivery) && delivery.TokenInvalid() {
			outcome.Pruned = d.prune(ctx, token)
		}
	}

	d.record(ctx, outcome)
	return outcome
}

func (d *Dispatcher) prune(ctx context.Context, token string) bool {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	n, err := d.cfg.Registry.RemovePushToken(ctx, token)
	if err != nil {
		d.cfg.Logger.Error().Err(err).Str("token_suffix", registration.TokenSuffix(token)).Msg("failed to remove dead push token")
		return false
	}
	d.cfg.Logger.Info().Int64("registrations", n).Str("token_suffix", registration.TokenSuffix(token)).Msg("removed dead push token")
	return true
}

func (d *Dispatcher) record(ctx context.Context, o Outcome) {
	status := "sent"
	switch {
	case o.Pruned:
		status = "pruned"
	case o.Err != nil:
		status = "failed"
	}
	d.deliveries.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", status)))
}
