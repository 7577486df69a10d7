package app

import (
	"context"
	"fmt"

	"github.com/bft-labs/intake/internal/domain"
	"github.com/bft-labs/intake/pkg/log"
	"github.com/bft-labs/intake/pkg/store"
)

// Handler processes one event popped from the queue.
type Handler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev domain.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev domain.Event) error { return f(ctx, ev) }

// Querier is the part of store.Client a forwarder needs.
type Querier interface {
	Query(ctx context.Context, cmd string) (store.Reply, error)
}

// EventCommand prefixes every forwarded event.
const EventCommand = "event "

// StoreForwarder sends every event to the backing store as "event <payload>".
type StoreForwarder struct {
	store  Querier
	logger log.Logger
}

// NewStoreForwarder creates a forwarder over q.
func NewStoreForwarder(q Querier, logger log.Logger) *StoreForwarder {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &StoreForwarder{store: q, logger: logger}
}

// Handle forwards ev. Rejections by the store are returned as errors;
// ignored events are logged at debug level.
func (f *StoreForwarder) Handle(ctx context.Context, ev domain.Event) error {
	reply, err := f.store.Query(ctx, EventCommand+ev.String())
	if err != nil {
		return fmt.Errorf("forward event: %w", err)
	}
	if err := reply.Err(); err != nil {
		return err
	}
	if reply.Status == store.StatusIgnore {
		f.logger.Debug("store ignored event", log.String("reason", reply.Payload))
	}
	return nil
}

// LogHandler writes events to the debug log. It is used when no store socket
// is configured.
type LogHandler struct {
	logger log.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(logger log.Logger) *LogHandler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Handle(_ context.Context, ev domain.Event) error {
	h.logger.Debug("event", log.Int("size", len(ev)), log.String("payload", ev.String()))
	return nil
}
