package reactor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/intake/internal/ports"
	"github.com/bft-labs/intake/pkg/log"
)

// Loop errors.
var (
	ErrClosed         = errors.New("reactor: loop closed")
	ErrHandlesOpen    = errors.New("reactor: handles still open")
	ErrPacketTooLarge = errors.New("reactor: datagram exceeds maximum message size")
	ErrAlreadyRunning = errors.New("reactor: already running")

	errInvalidHandler = errors.New("reactor: nil handler")
)

const readErrorBackoff = 10 * time.Millisecond

// CloseNotifier may be implemented by a PacketHandler that wants to know when
// its handle finished closing. OnClose runs on the loop goroutine.
type CloseNotifier interface {
	OnClose()
}

type event struct {
	h       *handle
	data    []byte
	err     error
	closing bool
}

// Loop implements ports.Reactor.
type Loop struct {
	logger log.Logger
	events chan event

	// runMu is held by whoever is dispatching, so callbacks never overlap.
	runMu sync.Mutex

	mu      sync.Mutex
	handles map[*handle]struct{}
	stopCh  chan struct{}
	stopReq bool
	closed  bool
}

var _ ports.Reactor = (*Loop)(nil)

// New creates an idle loop. A nil logger discards output.
func New(logger log.Logger) *Loop {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Loop{
		logger:  logger.With(log.Component("reactor")),
		events:  make(chan event),
		handles: make(map[*handle]struct{}),
	}
}

// RegisterReadable starts reading datagrams of up to maxSize bytes from conn
// and delivering them to h.
func (l *Loop) RegisterReadable(name string, conn net.PacketConn, maxSize int, h ports.PacketHandler) (ports.Handle, error) {
	if h == nil {
		return nil, errInvalidHandler
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("reactor: invalid max size %d", maxSize)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}

	hd := &handle{
		name:    name,
		conn:    conn,
		maxSize: maxSize,
		handler: h,
		loop:    l,
		quit:    make(chan struct{}),
	}
	l.handles[hd] = struct{}{}
	go hd.readLoop()

	l.logger.Debug("handle registered", log.String("handle", name), log.Int("max_size", maxSize))
	return hd, nil
}

// Run dispatches callbacks until Stop is called or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	if !l.runMu.TryLock() {
		return ErrAlreadyRunning
	}
	defer l.runMu.Unlock()

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	if l.stopReq {
		l.stopReq = false
		l.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	l.stopCh = stop
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.stopCh = nil
		l.stopReq = false
		l.mu.Unlock()
	}()

	for {
		select {
		case ev := <-l.events:
			l.dispatch(ev)
		case <-stop:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce dispatches pending callbacks, waiting only for close callbacks of
// handles already asked to close. It blocks while Run is dispatching.
func (l *Loop) RunOnce() {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	for {
		select {
		case ev := <-l.events:
			l.dispatch(ev)
			continue
		default:
		}
		if l.pendingCloses() == 0 {
			return
		}
		l.dispatch(<-l.events)
	}
}

// Stop makes a running Run return after its current callback. A Stop with no
// Run in progress makes the next Run return immediately.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopCh != nil {
		close(l.stopCh)
		l.stopCh = nil
		return
	}
	l.stopReq = true
}

// Walk calls fn for every handle not yet closing.
func (l *Loop) Walk(fn func(ports.Handle)) {
	l.mu.Lock()
	hs := make([]*handle, 0, len(l.handles))
	for h := range l.handles {
		if !h.Closed() {
			hs = append(hs, h)
		}
	}
	l.mu.Unlock()

	for _, h := range hs {
		fn(h)
	}
}

// Alive reports whether the loop has not been closed.
func (l *Loop) Alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed
}

// Close releases the loop. All handles must have delivered their close
// callbacks first.
func (l *Loop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	if len(l.handles) > 0 {
		return ErrHandlesOpen
	}
	l.closed = true
	return nil
}

func (l *Loop) pendingCloses() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for h := range l.handles {
		if h.Closed() {
			n++
		}
	}
	return n
}

func (l *Loop) dispatch(ev event) {
	h := ev.h
	switch {
	case ev.closing:
		l.mu.Lock()
		delete(l.handles, h)
		l.mu.Unlock()
		if cn, ok := h.handler.(CloseNotifier); ok {
			cn.OnClose()
		}
		l.logger.Debug("handle closed", log.String("handle", h.name))
	case h.Closed():
		// reads that raced with Close are discarded
	case ev.err != nil:
		h.handler.OnError(ev.err)
	default:
		h.handler.OnData(ev.data)
	}
}

type handle struct {
	name    string
	conn    net.PacketConn
	maxSize int
	handler ports.PacketHandler
	loop    *Loop

	closing atomic.Bool
	quit    chan struct{}
}

func (h *handle) Name() string { return h.name }

func (h *handle) Closed() bool { return h.closing.Load() }

// Close stops reads and queues the close callback. Safe to call multiple times.
func (h *handle) Close() {
	if h.closing.Swap(true) {
		return
	}
	close(h.quit)
	_ = h.conn.Close()
}

func (h *handle) readLoop() {
	// one extra byte detects datagrams longer than maxSize
	buf := make([]byte, h.maxSize+1)
	for {
		n, _, err := h.conn.ReadFrom(buf)
		if err != nil {
			if h.Closed() || errors.Is(err, net.ErrClosed) {
				break
			}
			if !h.post(event{h: h, err: err}) {
				break
			}
			time.Sleep(readErrorBackoff)
			continue
		}
		if n > h.maxSize {
			if !h.post(event{h: h, err: fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, n)}) {
				break
			}
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		if !h.post(event{h: h, data: data}) {
			break
		}
	}
	// the close callback is always delivered, by Run or RunOnce
	h.loop.events <- event{h: h, closing: true}
}

func (h *handle) post(ev event) bool {
	select {
	case h.loop.events <- ev:
		return true
	case <-h.quit:
		return false
	}
}
