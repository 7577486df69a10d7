package ports

import (
	"context"

	"github.com/bft-labs/intake/internal/domain"
)

// EventQueue is the bounded queue between the ingestion endpoint and the
// pipeline workers. Internal synchronization is the implementation's concern.
type EventQueue interface {
	// TryPush enqueues ev without blocking. It returns false when the queue is full.
	TryPush(ev domain.Event) bool

	// Pop blocks until an event is available or ctx is done.
	// It returns false when the queue is closed and drained, or ctx is done.
	Pop(ctx context.Context) (domain.Event, bool)
}
