package intake

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/intake/internal/app"
	"github.com/bft-labs/intake/pkg/log"
)

// Handler processes one event popped from the queue.
type Handler = app.Handler

// HandlerFunc adapts a function to Handler.
type HandlerFunc = app.HandlerFunc

// Option configures optional behavior of Intake.
type Option func(*options)

type options struct {
	logger       log.Logger
	eventHandler EventHandler
	handler      Handler
	registry     *prometheus.Registry
}

// WithLogger sets the logger. If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for lifecycle and worker notifications.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithHandler replaces the store forwarder as the worker handler.
func WithHandler(h Handler) Option {
	return func(o *options) {
		o.handler = h
	}
}

// WithRegistry registers metrics on reg and serves it on Config.MetricsAddr.
// Without it metrics are disabled.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}
