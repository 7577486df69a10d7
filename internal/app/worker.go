package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/intake/internal/domain"
	"github.com/bft-labs/intake/internal/ports"
	"github.com/bft-labs/intake/pkg/log"
)

// HandleEventEmitter is told about every handled event.
type HandleEventEmitter interface {
	OnEventHandled(duration time.Duration)
	OnEventError(err error)
}

// Pool drains the event queue with a fixed number of workers.
type Pool struct {
	queue   ports.EventQueue
	handler Handler
	workers int
	logger  log.Logger
	emitter HandleEventEmitter
}

// NewPool creates a pool of n workers. n below one means one.
func NewPool(q ports.EventQueue, h Handler, n int, logger log.Logger, emitter HandleEventEmitter) *Pool {
	if n < 1 {
		n = 1
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Pool{
		queue:   q,
		handler: h,
		workers: n,
		logger:  logger.With(log.Component("workers")),
		emitter: emitter,
	}
}

// Run blocks until every worker has exited. Workers exit when the queue is
// closed and drained, or when ctx is done. Handler errors are logged and do not
// stop the pool.
func (p *Pool) Run(ctx context.Context) error {
	var g errgroup.Group
	for i := 0; i < p.workers; i++ {
		i := i
		g.Go(func() error {
			p.work(ctx, i)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) work(ctx context.Context, id int) {
	logger := p.logger.With(log.Int("worker", id))
	logger.Debug("worker started")
	defer logger.Debug("worker stopped")

	for {
		ev, ok := p.queue.Pop(ctx)
		if !ok {
			return
		}
		p.handle(ctx, logger, ev)
	}
}

func (p *Pool) handle(ctx context.Context, logger log.Logger, ev domain.Event) {
	start := time.Now()
	err := p.handler.Handle(ctx, ev)
	if err != nil {
		logger.Error("handle event failed", log.Err(err), log.Int("size", len(ev)))
		if p.emitter != nil {
			p.emitter.OnEventError(err)
		}
		return
	}
	if p.emitter != nil {
		p.emitter.OnEventHandled(time.Since(start))
	}
}
