package store

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the first word of a store reply.
type Status string

const (
	StatusOK     Status = "ok"
	StatusDue    Status = "due"
	StatusErr    Status = "err"
	StatusIgnore Status = "ign"
)

// ErrBadReply is returned when a reply does not start with a known status.
var ErrBadReply = errors.New("store: malformed reply")

// Reply is a parsed store answer.
type Reply struct {
	Status  Status
	Payload string
}

// Err returns a non-nil error for StatusErr replies.
func (r Reply) Err() error {
	if r.Status != StatusErr {
		return nil
	}
	return &RejectedError{Reason: r.Payload}
}

// RejectedError is a request the store understood and refused.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("store: rejected: %s", e.Reason)
}

// ParseReply splits raw into status and payload.
func ParseReply(raw []byte) (Reply, error) {
	s := string(raw)
	status, payload, _ := strings.Cut(s, " ")
	switch Status(status) {
	case StatusOK, StatusDue, StatusErr, StatusIgnore:
		return Reply{Status: Status(status), Payload: payload}, nil
	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrBadReply, truncate(s, 64))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
