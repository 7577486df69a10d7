package domain

import (
	"errors"
	"fmt"
)

// Lifecycle and setup errors. These can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running instance.
	ErrAlreadyRunning = errors.New("intake: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped instance.
	ErrNotRunning = errors.New("intake: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("intake: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("intake: invalid configuration")

	// ErrNotReady is returned by Start on an endpoint whose socket never bound.
	ErrNotReady = errors.New("intake: endpoint socket is not ready")
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindConnect means the peer could not be reached. The caller owns the retry policy.
	KindConnect Kind = iota + 1
	// KindRecoverable means the peer reset, closed, or broke the pipe. The channel
	// is disconnected and retrying the whole operation reconnects implicitly.
	KindRecoverable
	// KindFatal is any other I/O failure. The channel is disconnected and the
	// failure is not retried automatically.
	KindFatal
	// KindProtocol means the peer violated the framing contract.
	KindProtocol
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindRecoverable:
		return "recoverable"
	case KindFatal:
		return "fatal"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is a transport failure tagged with its Kind.
type Error struct {
	Op   string // "connect", "send", "receive"
	Kind Kind
	Msg  string
	Err  error
}

// NewError builds an *Error.
func NewError(op string, kind Kind, msg string, err error) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same Kind, so callers can write
// errors.Is(err, &domain.Error{Kind: domain.KindRecoverable}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// KindOf returns the Kind carried by err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsRecoverable reports whether retrying the operation may succeed after an
// implicit reconnect.
func IsRecoverable(err error) bool {
	return KindOf(err) == KindRecoverable
}

// IsFatal reports whether err is a fatal or protocol transport failure.
func IsFatal(err error) bool {
	k := KindOf(err)
	return k == KindFatal || k == KindProtocol
}
