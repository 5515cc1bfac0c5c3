// Package worker consumes pass change events and propagates them to devices.
package worker

import "time"

// ReceiveConfig tunes the Pub/Sub subscriber.
type ReceiveConfig struct {
	// MaxOutstandingMessages bounds messages handled at once. Default: 10
	MaxOutstandingMessages int

	// MaxExtension bounds how long a message lease is extended. Default: 10 minutes
	MaxExtension time.Duration

	// HandlerTimeout bounds the handling of one message. Default: 2 minutes
	HandlerTimeout time.Duration
}

// DefaultReceiveConfig returns the default subscriber settings.
func DefaultReceiveConfig() ReceiveConfig {
	return ReceiveConfig{
		MaxOutstandingMessages: 10,
		MaxExtension:           10 * time.Minute,
		HandlerTimeout:         2 * time.Minute,
	}
}

func (c ReceiveConfig) withDefaults() ReceiveConfig {
	d := DefaultReceiveConfig()
	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = d.MaxOutstandingMessages
	}
	if c.MaxExtension <= 0 {
		c.MaxExtension = d.MaxExtension
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = d.HandlerTimeout
	}
	return c
}
