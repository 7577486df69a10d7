package intake

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/intake/internal/adapters/fs"
	"github.com/bft-labs/intake/internal/app"
	"github.com/bft-labs/intake/internal/domain"
	"github.com/bft-labs/intake/internal/ports"
	"github.com/bft-labs/intake/pkg/degrade"
	"github.com/bft-labs/intake/pkg/endpoint"
	"github.com/bft-labs/intake/pkg/framed"
	"github.com/bft-labs/intake/pkg/log"
	"github.com/bft-labs/intake/pkg/queue"
	"github.com/bft-labs/intake/pkg/reactor"
	"github.com/bft-labs/intake/pkg/store"
)

// Intake is an event intake daemon that can be embedded in other applications.
// Use New() to create an instance, then Start() to begin listening.
type Intake struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	emitter   *eventEmitterWrapper
	logger    log.Logger

	flag    *degrade.Flag
	watcher *degrade.Watcher

	endpointMetrics *endpoint.Metrics
	storeMetrics    *framed.Metrics
	queueDepth      prometheus.Gauge

	mu  sync.Mutex
	run *runState
}

// runState holds everything built by one Start and released by Stop.
type runState struct {
	cancel     context.CancelFunc
	workCancel context.CancelFunc

	queue    *queue.Bounded[domain.Event]
	sink     *fs.OverflowFile
	endpoint *endpoint.Endpoint
	channel  *framed.Channel
	pool     *app.Pool
	metrics  net.Listener

	poolDone chan struct{}
}

// New creates an Intake in StateStopped. Returns an error if configuration is
// invalid.
func New(cfg Config, opts ...Option) (*Intake, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}
	w := &Intake{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		emitter:   emitter,
		logger:    logger,
		flag:      &degrade.Flag{},
	}

	if cfg.DegradeFile != "" {
		w.watcher = degrade.NewWatcher(cfg.DegradeFile, w.flag, logger)
		w.watcher.Sync()
	}

	if o.registry != nil {
		w.endpointMetrics = endpoint.NewMetrics(o.registry)
		w.storeMetrics = framed.NewMetrics(o.registry, "store")
		w.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "intake",
			Name:      "queue_depth",
			Help:      "Events waiting in the queue",
		})
		o.registry.MustRegister(w.queueDepth)
	}

	return w, nil
}

// Start binds the socket and starts the reactor, the workers and, when
// configured, the degrade watcher and the metrics server. The provided context
// bounds the lifetime of all of them.
func (w *Intake) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.lifecycle.Begin("Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	rs, err := w.build()
	if err != nil {
		cancel()
		w.lifecycle.Crash(err)
		return err
	}
	rs.cancel = cancel
	w.run = rs

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return rs.endpoint.Run(gctx)
	})
	if w.watcher != nil {
		g.Go(func() error {
			if err := w.watcher.Run(gctx); err != nil {
				w.logger.Error("degrade watcher stopped", log.Err(err))
			}
			return nil
		})
	}
	if rs.metrics != nil {
		g.Go(func() error {
			return serveMetrics(gctx, rs.metrics, w.opts.registry)
		})
	}

	// workers outlive runCtx so Stop can drain the queue
	workCtx, workCancel := context.WithCancel(context.WithoutCancel(runCtx))
	rs.workCancel = workCancel
	rs.poolDone = make(chan struct{})
	go func() {
		defer close(rs.poolDone)
		_ = rs.pool.Run(workCtx)
	}()

	if err := w.lifecycle.Up(w.teardown(rs), "endpoint listening"); err != nil {
		w.logger.Error("failed to transition to running", log.Err(err))
	}
	w.lifecycle.Watch(func() error {
		err := g.Wait()
		// ErrClosed: Stop released the reactor before Run got to it
		if errors.Is(err, reactor.ErrClosed) {
			return nil
		}
		return err
	})

	return nil
}

// build creates the per-run components. On error everything already created
// is released.
func (w *Intake) build() (*runState, error) {
	cfg := w.config
	rs := &runState{}

	q, err := queue.NewBounded[domain.Event](cfg.QueueCapacity, queue.WithDepthGauge[domain.Event](w.queueDepth))
	if err != nil {
		return nil, err
	}
	rs.queue = q

	var sink ports.OverflowSink
	if cfg.OverflowPath != "" {
		f, err := fs.OpenOverflowFile(cfg.OverflowPath)
		if err != nil {
			w.logger.Error("cannot open overflow file, flooded events will be lost", log.Err(err))
		} else {
			rs.sink = f
			sink = f
		}
	}

	rs.endpoint = endpoint.New(endpoint.Config{
		BindPath:        cfg.SocketPath,
		MaxMsgSize:      cfg.MaxMsgSize,
		RecvBufferFloor: cfg.RecvBufferFloor,
		RetryInterval:   cfg.RetryInterval,
	}, q, reactor.New(w.logger), w.flag, sink,
		endpoint.WithLogger(w.logger),
		endpoint.WithMetrics(w.endpointMetrics),
	)
	if err := rs.endpoint.Start(); err != nil {
		rs.endpoint.Stop()
		w.release(rs)
		return nil, fmt.Errorf("start endpoint: %w", err)
	}

	if cfg.MetricsAddr != "" && w.opts.registry != nil {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			rs.endpoint.Stop()
			w.release(rs)
			return nil, fmt.Errorf("metrics listener: %w", err)
		}
		rs.metrics = ln
	}

	handler := w.opts.handler
	if handler == nil {
		handler = w.defaultHandler(rs)
	}
	rs.pool = app.NewPool(q, handler, cfg.Workers, w.logger, w.emitter)
	return rs, nil
}

func (w *Intake) defaultHandler(rs *runState) app.Handler {
	cfg := w.config
	if cfg.StoreSocket == "" {
		w.logger.Info("no store socket configured, events are only logged")
		return app.NewLogHandler(w.logger)
	}
	rs.channel = framed.New(cfg.StoreSocket,
		framed.WithMaxMsgSize(cfg.StoreMaxMsgSize),
		framed.WithDialTimeout(cfg.StoreTimeout),
		framed.WithWriteTimeout(cfg.StoreTimeout),
		framed.WithLogger(w.logger),
		framed.WithMetrics(w.storeMetrics),
	)
	client := store.NewClient(rs.channel, store.Config{Timeout: cfg.StoreTimeout}, w.logger)
	return app.NewStoreForwarder(client, w.logger)
}

// Stop shuts down gracefully: degrade mode is forced on so a stalled push
// gives up, the reactor is stopped, the queue is closed and drained by the
// workers. Returns ErrShutdownTimeout if the workers or background goroutines
// do not finish in time.
func (w *Intake) Stop() error {
	// waits out a concurrent Start so its run is the one torn down
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lifecycle.Shutdown("Stop() called")
}

// teardown returns the release sequence of rs. The lifecycle runs it once,
// from Stop or from a crash. Degrade mode stays forced on until the endpoint
// is gone so a push stalled on a full queue gives up.
func (w *Intake) teardown(rs *runState) app.Teardown {
	return func() error {
		prev := w.flag.Load()
		w.flag.Set()
		defer w.restoreFlag(prev)

		rs.endpoint.Stop()
		rs.queue.Close()

		var err error
		t := time.NewTimer(app.ShutdownTimeout)
		defer t.Stop()
		select {
		case <-rs.poolDone:
		case <-t.C:
			w.logger.Warn("workers did not drain the queue in time", log.Int("left", rs.queue.Len()))
			err = domain.ErrShutdownTimeout
		}
		rs.workCancel()
		rs.cancel()
		w.release(rs)
		return err
	}
}

// restoreFlag puts degrade mode back to what the degrade file says, or to
// prev when there is no file.
func (w *Intake) restoreFlag(prev bool) {
	if w.watcher != nil {
		w.watcher.Sync()
		return
	}
	w.flag.Store(prev)
}

// release closes the store connection and the overflow file.
func (w *Intake) release(rs *runState) {
	if rs.channel != nil {
		_ = rs.channel.Close()
	}
	if rs.sink != nil {
		if err := rs.sink.Close(); err != nil {
			w.logger.Error("close overflow file", log.Err(err))
		}
	}
}

// Status returns the current lifecycle state.
func (w *Intake) Status() State {
	return State(w.lifecycle.State())
}

// Degraded reports whether degrade mode is on.
func (w *Intake) Degraded() bool {
	return w.flag.Load()
}

// SetDegraded turns degrade mode on or off. A configured DegradeFile
// overrides this on its next change.
func (w *Intake) SetDegraded(on bool) {
	w.flag.Store(on)
}

// MetricsAddr returns the address the metrics server listens on, or "" when
// it is not running.
func (w *Intake) MetricsAddr() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.run == nil || w.run.metrics == nil {
		return ""
	}
	return w.run.metrics.Addr().String()
}

func serveMetrics(ctx context.Context, ln net.Listener, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
