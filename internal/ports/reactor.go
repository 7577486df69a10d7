package ports

import (
	"context"
	"net"
)

// PacketHandler is the callback table for one readable socket. Both methods
// run on the reactor goroutine, one call at a time, in arrival order.
type PacketHandler interface {
	// OnData receives one datagram. The slice is only valid for the duration
	// of the call.
	OnData(data []byte)

	// OnError receives socket-level errors. It must not block.
	OnError(err error)
}

// Handle is one registration inside a Reactor.
type Handle interface {
	Name() string
	// Close stops reads and queues the handle's close callback on the loop.
	Close()
	Closed() bool
}

// Reactor multiplexes readable sockets onto one dispatch goroutine.
type Reactor interface {
	// RegisterReadable starts delivering datagrams from conn to h. Reads use
	// a buffer of maxSize+1 bytes; larger datagrams are reported to OnError.
	RegisterReadable(name string, conn net.PacketConn, maxSize int, h PacketHandler) (Handle, error)

	// Run dispatches callbacks until Stop is called or ctx is done.
	Run(ctx context.Context) error

	// RunOnce dispatches every callback already pending and returns.
	RunOnce()

	// Stop makes Run return. It does not close handles.
	Stop()

	// Walk calls fn for every open handle.
	Walk(fn func(Handle))

	// Alive reports whether the loop still owns resources.
	Alive() bool

	// Close releases the loop. Handles must already be closed.
	Close() error
}
