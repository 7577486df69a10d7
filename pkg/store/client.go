package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/intake/internal/domain"
	"github.com/bft-labs/intake/pkg/framed"
	"github.com/bft-labs/intake/pkg/log"
)

// DefaultMaxAttempts bounds the tries of one Query.
const DefaultMaxAttempts = 3

// Requester sends one frame and reads one reply frame. *framed.Channel
// satisfies it.
type Requester interface {
	Request(ctx context.Context, msg string) ([]byte, error)
}

// Config controls retries.
type Config struct {
	// MaxAttempts defaults to DefaultMaxAttempts.
	MaxAttempts int
	// BackoffInitial defaults to DefaultBackoffInitial.
	BackoffInitial time.Duration
	// BackoffMax defaults to DefaultBackoffMax.
	BackoffMax time.Duration
	// Timeout bounds each attempt. Zero means the caller's ctx alone.
	Timeout time.Duration
}

// Client queries the backing store.
type Client struct {
	req    Requester
	cfg    Config
	logger log.Logger
}

// NewClient wraps req. A nil logger discards output.
func NewClient(req Requester, cfg Config, logger log.Logger) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = DefaultBackoffInitial
	}
	if cfg.BackoffMax < cfg.BackoffInitial {
		cfg.BackoffMax = DefaultBackoffMax
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Client{
		req:    req,
		cfg:    cfg,
		logger: logger.With(log.Component("store")),
	}
}

// Query sends cmd and parses the reply. Connect, recoverable and busy failures
// are retried up to MaxAttempts; anything else is returned at once.
func (c *Client) Query(ctx context.Context, cmd string) (Reply, error) {
	bo := newBackoff(c.cfg.BackoffInitial, c.cfg.BackoffMax)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		raw, err := c.request(ctx, cmd)
		if err == nil {
			return ParseReply(raw)
		}
		lastErr = err
		if !retryable(err) || attempt == c.cfg.MaxAttempts {
			break
		}
		c.logger.Debug("store request failed, retrying",
			log.Int("attempt", attempt),
			log.Err(err),
		)
		if werr := bo.Wait(ctx); werr != nil {
			return Reply{}, werr
		}
	}
	return Reply{}, fmt.Errorf("store query: %w", lastErr)
}

func (c *Client) request(ctx context.Context, cmd string) ([]byte, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	return c.req.Request(ctx, cmd)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, framed.ErrBusy):
		return true
	case domain.IsRecoverable(err):
		return true
	case domain.KindOf(err) == domain.KindConnect:
		return true
	default:
		return false
	}
}
