package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrInvalidCapacity is returned by NewBounded for a capacity below 1.
var ErrInvalidCapacity = errors.New("queue: capacity must be positive")

// Bounded is a fixed-capacity multi-producer/multi-consumer FIFO.
type Bounded[T any] struct {
	items  chan T
	mu     sync.RWMutex
	closed bool
	depth  prometheus.Gauge
}

// Option configures a Bounded queue.
type Option[T any] func(*Bounded[T])

// WithDepthGauge reports the queue length to g after every push and pop.
func WithDepthGauge[T any](g prometheus.Gauge) Option[T] {
	return func(q *Bounded[T]) {
		q.depth = g
	}
}

// NewBounded creates a queue holding at most capacity items.
func NewBounded[T any](capacity int, opts ...Option[T]) (*Bounded[T], error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	q := &Bounded[T]{items: make(chan T, capacity)}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// TryPush appends item if there is room. It never blocks and returns false
// when the queue is full or closed.
func (q *Bounded[T]) TryPush(item T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.items <- item:
		q.observe()
		return true
	default:
		return false
	}
}

// Pop blocks until an item is available. It returns false once the queue is
// closed and empty, or when ctx is done.
func (q *Bounded[T]) Pop(ctx context.Context) (T, bool) {
	select {
	case item, ok := <-q.items:
		if ok {
			q.observe()
		}
		return item, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Len returns the number of queued items.
func (q *Bounded[T]) Len() int { return len(q.items) }

// Cap returns the queue capacity.
func (q *Bounded[T]) Cap() int { return cap(q.items) }

// Close stops further pushes. Items already queued remain poppable.
// Safe to call multiple times.
func (q *Bounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.items)
}

func (q *Bounded[T]) observe() {
	if q.depth != nil {
		q.depth.Set(float64(len(q.items)))
	}
}
