package framed

import (
	"context"
	"net"
	"time"

	"github.com/bft-labs/intake/pkg/log"
)

// Dialer opens the underlying stream connection. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures a Channel.
type Option func(*options)

type options struct {
	maxMsgSize   int
	dialTimeout  time.Duration
	writeTimeout time.Duration
	dialer       Dialer
	logger       log.Logger
	metrics      *Metrics
}

// WithMaxMsgSize sets the largest frame length accepted on send and receive.
func WithMaxMsgSize(n int) Option {
	return func(o *options) {
		o.maxMsgSize = n
	}
}

// WithDialTimeout bounds each connect attempt.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithWriteTimeout makes a send that cannot make progress within d report
// OutcomeBusy instead of blocking. Zero means writes block.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// WithDialer replaces the default unix dialer.
func WithDialer(d Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records frame and error counters.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
