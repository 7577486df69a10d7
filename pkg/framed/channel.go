package framed

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bft-labs/intake/internal/domain"
	"github.com/bft-labs/intake/pkg/log"
)

// State is the connection state of a Channel.
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnected:
		return "Connected"
	default:
		return "Unknown"
	}
}

// Outcome is the non-error result of Send.
type Outcome int

const (
	// OutcomeFailed accompanies a non-nil error.
	OutcomeFailed Outcome = iota
	// OutcomeSent means the whole frame was written.
	OutcomeSent
	// OutcomeEmptyPayload means the message was empty and nothing was written.
	OutcomeEmptyPayload
	// OutcomeTooLarge means the framed message exceeds the maximum and nothing was written.
	OutcomeTooLarge
	// OutcomeBusy means the socket buffer was full. The channel stays connected.
	OutcomeBusy
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeFailed:
		return "Failed"
	case OutcomeSent:
		return "Sent"
	case OutcomeEmptyPayload:
		return "EmptyPayload"
	case OutcomeTooLarge:
		return "TooLarge"
	case OutcomeBusy:
		return "Busy"
	default:
		return "Unknown"
	}
}

// ErrBusy is returned by Request when the send reported OutcomeBusy.
var ErrBusy = errors.New("framed: socket busy")

// Channel is a framed connection to a single peer. It is safe for concurrent
// use; a Request holds the channel for its send and its receive.
type Channel struct {
	path   string
	opts   options
	logger log.Logger

	mu   sync.Mutex
	conn net.Conn
}

// New creates a disconnected channel to the unix stream socket at path.
func New(path string, opts ...Option) *Channel {
	o := options{
		maxMsgSize: domain.DefaultMaxMsgSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxMsgSize <= 0 {
		o.maxMsgSize = domain.DefaultMaxMsgSize
	}
	if o.dialer == nil {
		o.dialer = &net.Dialer{}
	}
	if o.logger == nil {
		o.logger = log.NewNoopLogger()
	}

	return &Channel{
		path:   path,
		opts:   o,
		logger: o.logger.With(log.Component("framed"), log.String("path", path)),
	}
}

// Path returns the peer socket path.
func (c *Channel) Path() string { return c.path }

// MaxMsgSize returns the frame length ceiling.
func (c *Channel) MaxMsgSize() int { return c.opts.maxMsgSize }

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return StateDisconnected
	}
	return StateConnected
}

// Connect opens the connection. It is a no-op when already connected.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

// Send frames msg and writes it. Connects first when disconnected.
func (c *Channel) Send(ctx context.Context, msg string) (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(ctx, msg)
}

// Receive reads one frame and returns its payload without the terminator.
func (c *Channel) Receive(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiveLocked(ctx)
}

// Request sends msg and waits for one reply frame.
func (c *Channel) Request(ctx context.Context, msg string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, err := c.sendLocked(ctx, msg)
	if err != nil {
		return nil, err
	}
	switch out {
	case OutcomeEmptyPayload:
		return nil, domain.ErrEmptyPayload
	case OutcomeTooLarge:
		return nil, domain.ErrTooLarge
	case OutcomeBusy:
		return nil, ErrBusy
	}
	return c.receiveLocked(ctx)
}

// Close drops the connection. Safe to call multiple times; a later Send
// reconnects.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Channel) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	if c.opts.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.dialTimeout)
		defer cancel()
	}

	conn, err := c.opts.dialer.DialContext(ctx, "unix", c.path)
	if err != nil {
		c.opts.metrics.failed(domain.KindConnect)
		return domain.NewError("connect", domain.KindConnect, "endpoint unreachable", err)
	}
	c.conn = conn
	c.opts.metrics.connected()
	c.logger.Debug("connected")
	return nil
}

func (c *Channel) sendLocked(ctx context.Context, msg string) (Outcome, error) {
	if err := c.connectLocked(ctx); err != nil {
		return OutcomeFailed, err
	}

	frame, err := domain.EncodeFrame(msg, c.opts.maxMsgSize)
	switch {
	case errors.Is(err, domain.ErrEmptyPayload):
		return OutcomeEmptyPayload, nil
	case errors.Is(err, domain.ErrTooLarge):
		c.logger.Warn("message too large", log.Int("size", len(msg)+1), log.Int("max", c.opts.maxMsgSize))
		return OutcomeTooLarge, nil
	}

	conn := c.conn
	stop := c.bindWriteDeadline(ctx, conn)
	// header and payload go out in one write so the header always leads
	n, err := conn.Write(frame)
	stop()

	if err == nil {
		c.opts.metrics.sent()
		return OutcomeSent, nil
	}

	switch {
	case isPeerGone(err):
		return OutcomeFailed, c.fail("send", domain.KindRecoverable, "peer disconnected", err)
	case n > 0:
		// the peer has a partial frame; the stream cannot be resynchronised
		return OutcomeFailed, c.fail("send", domain.KindRecoverable, "partial frame written", err)
	case ctx.Err() != nil:
		return OutcomeFailed, ctx.Err()
	case errors.Is(err, os.ErrDeadlineExceeded):
		c.opts.metrics.wouldBlock()
		c.logger.Warn("socket is full", log.Err(err))
		return OutcomeBusy, nil
	default:
		return OutcomeFailed, c.fail("send", domain.KindFatal, "write failed", err)
	}
}

func (c *Channel) receiveLocked(ctx context.Context) ([]byte, error) {
	if c.conn == nil {
		return nil, domain.NewError("receive", domain.KindRecoverable, "not connected", nil)
	}

	conn := c.conn
	stop := bindReadDeadline(ctx, conn)
	defer stop()

	var hdr [domain.HeaderSize]byte
	if _, err := readFull(conn, hdr[:]); err != nil {
		return nil, c.receiveFailure(ctx, err)
	}

	n := domain.DecodeHeader(hdr[:])
	if n == 0 {
		// a valid frame carries at least its terminator
		return nil, c.fail("receive", domain.KindProtocol, "empty frame", nil)
	}
	if uint64(n) > uint64(c.opts.maxMsgSize) {
		return nil, c.fail("receive", domain.KindProtocol, "oversized message", nil)
	}

	// zeroed n+1 buffer keeps a payload from a peer that skipped the
	// terminator bounded
	buf := make([]byte, int(n)+1)
	if _, err := readFull(conn, buf[:n]); err != nil {
		return nil, c.receiveFailure(ctx, err)
	}

	c.opts.metrics.received()
	return domain.TrimPayload(buf), nil
}

func (c *Channel) receiveFailure(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return c.fail("receive", domain.KindFatal, "canceled", ctx.Err())
	case errors.Is(err, os.ErrDeadlineExceeded):
		// the read deadline only ever comes from ctx; its timer may not have fired yet
		return c.fail("receive", domain.KindFatal, "canceled", context.DeadlineExceeded)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.ErrNoProgress):
		return c.fail("receive", domain.KindRecoverable, "peer closed", err)
	case errors.Is(err, unix.ECONNRESET):
		return c.fail("receive", domain.KindRecoverable, "peer reset", err)
	default:
		return c.fail("receive", domain.KindFatal, "read failed", err)
	}
}

// fail disconnects and builds the error for op.
func (c *Channel) fail(op string, kind domain.Kind, msg string, err error) error {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.opts.metrics.failed(kind)
	e := domain.NewError(op, kind, msg, err)
	if kind == domain.KindRecoverable {
		c.logger.Debug("disconnected", log.String("op", op), log.String("reason", msg), log.Err(err))
	} else {
		c.logger.Error("disconnected", log.String("op", op), log.Stringer("kind", kind), log.String("reason", msg), log.Err(err))
	}
	return e
}

// bindWriteDeadline sets the earliest of the ctx deadline and the write
// timeout, and aborts the write when ctx is canceled.
func (c *Channel) bindWriteDeadline(ctx context.Context, conn net.Conn) func() {
	var deadline time.Time
	if c.opts.writeTimeout > 0 {
		deadline = time.Now().Add(c.opts.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	cancel := context.AfterFunc(ctx, func() {
		_ = conn.SetWriteDeadline(time.Now())
	})
	return func() {
		cancel()
		_ = conn.SetWriteDeadline(time.Time{})
	}
}

func bindReadDeadline(ctx context.Context, conn net.Conn) func() {
	d, _ := ctx.Deadline()
	_ = conn.SetReadDeadline(d)
	cancel := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	return func() {
		cancel()
		_ = conn.SetReadDeadline(time.Time{})
	}
}

// readFull fills buf from r. Any read that returns no bytes ends the loop with
// an error, so a dead peer never turns into a busy loop.
func readFull(r io.Reader, buf []byte) (int, error) {
	off := 0
	for off < len(buf) {
		n, err := r.Read(buf[off:])
		if n <= 0 {
			if err == nil {
				err = io.ErrNoProgress
			}
			return off, err
		}
		off += n
	}
	return off, nil
}

func isPeerGone(err error) bool {
	return errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET)
}
