// Package reactor provides a single-goroutine dispatch loop for readable
// datagram sockets.
//
// Every registered socket gets a reader goroutine that hands packets to the
// loop over an unbuffered channel. Callbacks therefore run one at a time, in
// arrival order, on whichever goroutine calls Run; a callback that stalls
// stops further reads and leaves new datagrams in the kernel buffer.
//
// Shutdown mirrors the classic event-loop sequence:
//
//	loop.Stop()                                  // Run returns
//	loop.Walk(func(h ports.Handle) { h.Close() }) // request closes
//	loop.RunOnce()                               // deliver close callbacks
//	loop.Close()                                 // release
package reactor
