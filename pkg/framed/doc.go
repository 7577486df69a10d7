// Package framed implements the length-prefixed request/response transport
// used to talk to the backing store over a unix stream socket.
//
// Each frame is a 4-byte host-order length followed by that many payload
// bytes; the payload is the message text plus one trailing NUL, and the length
// counts the NUL. Both directions enforce the configured maximum.
//
// A Channel connects lazily on the first Send and reconnects the same way after
// any disconnect. Failures come back as *domain.Error values whose Kind tells
// the caller what to do:
//
//	out, err := ch.Send(ctx, "agent 001 sql SELECT 1")
//	switch {
//	case err == nil && out == framed.OutcomeSent:
//	case err == nil:                 // EmptyPayload, TooLarge, Busy
//	case domain.IsRecoverable(err):  // retry the whole operation
//	default:                         // connect, fatal, protocol
//	}
//
// The channel has no internal timeout on reads; wrap calls in a context with a
// deadline when one is needed.
package framed
