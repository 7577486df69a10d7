// Package intake receives events on a unix datagram socket and forwards them
// to a backing store.
//
// Example usage:
//
//	cfg := intake.DefaultConfig()
//	cfg.SocketPath = "/var/run/intake/queue"
//	cfg.StoreSocket = "/var/run/store/sock"
//	if err := intake.Run(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// For control over the lifecycle use pkg/intake directly.
package intake

import (
	"context"
	"errors"
	"time"

	core "github.com/bft-labs/intake/pkg/intake"
)

// Config holds the configuration of the intake daemon.
type Config = core.Config

// Option configures Run.
type Option = core.Option

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return core.DefaultConfig()
}

// ErrCrashed is returned by Run when the daemon stopped on its own.
var ErrCrashed = errors.New("intake: crashed")

// Run starts the daemon and blocks until ctx is canceled, then shuts it down
// gracefully.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	in, err := core.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := in.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return in.Stop()
		case <-ticker.C:
			if in.Status() == core.StateCrashed {
				return ErrCrashed
			}
		}
	}
}
