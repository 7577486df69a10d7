package endpoint

import (
	"time"

	"github.com/bft-labs/intake/pkg/log"
)

// Option configures an Endpoint.
type Option func(*Endpoint)

// WithLogger sets the logger. The default discards output.
func WithLogger(l log.Logger) Option {
	return func(e *Endpoint) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records ingestion counters.
func WithMetrics(m *Metrics) Option {
	return func(e *Endpoint) {
		e.metrics = m
	}
}

// withSleep replaces the backpressure sleep.
func withSleep(fn func(time.Duration)) Option {
	return func(e *Endpoint) {
		e.sleep = fn
	}
}
