// Package resilience wraps outbound HTTP calls with retries, timeouts and a
// circuit breaker per upstream.
package resilience

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker of a Client.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open. Default: 1
	MaxRequests uint32

	// Timeout is how long the breaker stays open. Default: 30 seconds
	Timeout time.Duration

	// MinRequests before the failure ratio is considered. Default: 5
	MinRequests uint32

	// FailureRatio at or above which the breaker opens. Default: 0.5
	FailureRatio float64

	OnStateChange func(name string, from, to gobreaker.State)
}

func (b BreakerConfig) withDefaults() BreakerConfig {
	if b.MaxRequests == 0 {
		b.MaxRequests = 1
	}
	if b.Timeout == 0 {
		b.Timeout = 30 * time.Second
	}
	if b.MinRequests == 0 {
		b.MinRequests = 5
	}
	if b.FailureRatio == 0 {
		b.FailureRatio = 0.5
	}
	return b
}

func newBreaker[T any](name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[T] {
	cfg = cfg.withDefaults()
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: cfg.OnStateChange,
	})
}
