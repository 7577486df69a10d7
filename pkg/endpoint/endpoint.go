package endpoint

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bft-labs/intake/internal/domain"
	"github.com/bft-labs/intake/internal/ports"
	"github.com/bft-labs/intake/pkg/degrade"
	"github.com/bft-labs/intake/pkg/log"
)

// DefaultRetryInterval is the pause between push attempts on a full queue.
const DefaultRetryInterval = time.Millisecond

// Config is fixed at construction.
type Config struct {
	// BindPath is the unix datagram socket path.
	BindPath string
	// MaxMsgSize is the largest datagram accepted. Defaults to domain.DefaultMaxMsgSize.
	MaxMsgSize int
	// RecvBufferFloor is the minimum SO_RCVBUF. Defaults to MaxMsgSize.
	RecvBufferFloor int
	// RetryInterval defaults to DefaultRetryInterval.
	RetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxMsgSize <= 0 {
		c.MaxMsgSize = domain.DefaultMaxMsgSize
	}
	if c.RecvBufferFloor <= 0 {
		c.RecvBufferFloor = c.MaxMsgSize
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	return c
}

// Endpoint receives datagrams and feeds them to the event queue.
type Endpoint struct {
	cfg     Config
	queue   ports.EventQueue
	reactor ports.Reactor
	flag    ports.DegradeFlag
	sink    ports.OverflowSink

	logger  log.Logger
	metrics *Metrics
	sleep   func(time.Duration)
	// throttles the queue-full warning
	fullWarn *rate.Limiter

	conn *net.UnixConn

	mu         sync.Mutex
	handle     ports.Handle
	registered bool
}

var _ ports.PacketHandler = (*Endpoint)(nil)

// New binds the socket and returns the endpoint. Setup failures are logged and
// leave the endpoint inert; check Ready before Start. sink may be nil, in which
// case events arriving in degrade mode are dropped. A nil flag means degrade
// mode never turns on.
func New(cfg Config, queue ports.EventQueue, reactor ports.Reactor, flag ports.DegradeFlag, sink ports.OverflowSink, opts ...Option) *Endpoint {
	if flag == nil {
		flag = &degrade.Flag{}
	}
	e := &Endpoint{
		cfg:      cfg.withDefaults(),
		queue:    queue,
		reactor:  reactor,
		flag:     flag,
		sink:     sink,
		logger:   log.NewNoopLogger(),
		sleep:    time.Sleep,
		fullWarn: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(log.Component("endpoint"), log.String("path", e.cfg.BindPath))

	conn, err := bindDatagram(e.cfg.BindPath, e.cfg.RecvBufferFloor)
	if err != nil {
		e.logger.Error("error while opening datagram socket", log.Err(err))
		return e
	}
	e.conn = conn
	return e
}

// Ready reports whether the socket is bound.
func (e *Endpoint) Ready() bool { return e.conn != nil }

// Path returns the bind path.
func (e *Endpoint) Path() string { return e.cfg.BindPath }

// Start registers the socket with the reactor. An inert endpoint logs and
// returns domain.ErrNotReady.
func (e *Endpoint) Start() error {
	if e.conn == nil {
		e.logger.Error("datagram socket descriptor is invalid")
		return domain.ErrNotReady
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.registered {
		return domain.ErrAlreadyRunning
	}
	h, err := e.reactor.RegisterReadable(e.cfg.BindPath, e.conn, e.cfg.MaxMsgSize, e)
	if err != nil {
		return fmt.Errorf("register endpoint: %w", err)
	}
	e.handle = h
	e.registered = true
	e.logger.Info("listening for events", log.Int("max_msg_size", e.cfg.MaxMsgSize))
	return nil
}

// Run drives the reactor until Stop is called or ctx is done.
func (e *Endpoint) Run(ctx context.Context) error {
	return e.reactor.Run(ctx)
}

// Stop shuts the reactor down: stop, close every handle, deliver the close
// callbacks, release. A second call only logs.
func (e *Endpoint) Stop() {
	e.mu.Lock()
	orphan := e.conn != nil && !e.registered
	e.registered = true
	e.mu.Unlock()
	if orphan {
		// bound but never handed to the reactor
		_ = e.conn.Close()
		e.OnClose()
	}

	if !e.reactor.Alive() {
		e.logger.Info("loop is already closed")
		return
	}
	e.reactor.Stop()
	e.reactor.Walk(func(h ports.Handle) { h.Close() })
	e.reactor.RunOnce()
	if err := e.reactor.Close(); err != nil {
		e.logger.Error("release reactor", log.Err(err))
		return
	}
	e.logger.Info("closed endpoints")
}

// OnData handles one datagram.
func (e *Endpoint) OnData(data []byte) {
	e.metrics.received()

	if e.flag.Load() {
		e.overflow(data)
		return
	}

	ev := domain.Event(data).Clone()
	for !e.queue.TryPush(ev) {
		e.metrics.retried()
		if e.fullWarn.Allow() {
			e.logger.Warn("event queue is full, holding the socket", log.Duration("retry", e.cfg.RetryInterval))
		}
		e.sleep(e.cfg.RetryInterval)
		// degrade may start while we wait; it wins over capacity that freed up
		if e.flag.Load() {
			e.overflow(data)
			return
		}
	}
	e.metrics.queued()
}

// OnError logs a socket error.
func (e *Endpoint) OnError(err error) {
	e.metrics.socketError()
	e.logger.Error("datagram socket error", log.Err(err))
}

// OnClose removes the socket file once the reactor has closed the handle.
func (e *Endpoint) OnClose() {
	e.mu.Lock()
	e.handle = nil
	e.mu.Unlock()
	if err := os.Remove(e.cfg.BindPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("remove socket file", log.Err(err))
	}
	e.logger.Debug("datagram socket closed")
}

// overflow writes the event to the sink. The line ends at the first NUL so a
// stray terminator cannot split the file format.
func (e *Endpoint) overflow(data []byte) {
	if e.sink == nil {
		e.metrics.dropped()
		e.logger.Error("cannot write to overflow sink, flooded events will be lost")
		return
	}
	if err := e.sink.AppendLine(domain.TrimPayload(data)); err != nil {
		e.metrics.dropped()
		e.logger.Error("cannot write to overflow sink, flooded events will be lost", log.Err(err))
		return
	}
	e.metrics.overflowed()
}
