package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/intake/internal/domain"
	"github.com/bft-labs/intake/pkg/log"
)

// ShutdownTimeout bounds a teardown and the wait for supervised goroutines.
const ShutdownTimeout = 30 * time.Second

// State is a run state. The values are part of the public API of pkg/intake.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

var stateNames = [...]string{"Stopped", "Starting", "Running", "Stopping", "Crashed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// next lists the states reachable from each state.
var next = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopping, StateCrashed},
	StateRunning:  {StateStopping, StateCrashed},
	StateStopping: {StateStopped, StateCrashed},
	StateCrashed:  {StateStarting},
}

func reachable(from, to State) bool {
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}

// idle reports whether no run is in progress.
func (s State) idle() bool { return s == StateStopped || s == StateCrashed }

// EventEmitter is told about every state change.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Teardown releases everything one run built.
type Teardown func() error

// Lifecycle is the run state machine. A run goes through Begin, Up and then
// either Shutdown or Crash; its teardown executes exactly once whichever
// path gets there first.
type Lifecycle struct {
	logger  log.Logger
	emitter EventEmitter
	timeout time.Duration

	mu       sync.Mutex
	state    State
	teardown func() error

	supervised sync.WaitGroup
}

// NewLifecycle returns a Lifecycle in StateStopped.
func NewLifecycle(logger log.Logger, emitter EventEmitter) *Lifecycle {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Lifecycle{
		logger:  logger.With(log.Component("lifecycle")),
		emitter: emitter,
		timeout: ShutdownTimeout,
	}
}

// SetShutdownTimeout replaces ShutdownTimeout for this lifecycle.
func (l *Lifecycle) SetShutdownTimeout(d time.Duration) {
	l.mu.Lock()
	l.timeout = d
	l.mu.Unlock()
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// TransitionTo moves to state to. Leaving an idle state for anything but
// Starting fails with domain.ErrNotRunning; every other illegal move fails
// with domain.ErrAlreadyRunning.
func (l *Lifecycle) TransitionTo(to State, reason string) error {
	l.mu.Lock()
	from, err := l.moveLocked(to)
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.announce(from, to, reason)
	return nil
}

func (l *Lifecycle) moveLocked(to State) (State, error) {
	from := l.state
	if !reachable(from, to) {
		if from.idle() {
			return from, domain.ErrNotRunning
		}
		return from, domain.ErrAlreadyRunning
	}
	l.state = to
	return from, nil
}

func (l *Lifecycle) announce(from, to State, reason string) {
	if l.emitter != nil {
		l.emitter.OnStateChange(from, to, reason)
	}
	l.logger.Info("state transition",
		log.Stringer("from", from),
		log.Stringer("to", to),
		log.String("reason", reason),
	)
}

// Begin starts a new run. It fails with domain.ErrAlreadyRunning unless the
// lifecycle is idle.
func (l *Lifecycle) Begin(reason string) error {
	l.mu.Lock()
	if !l.state.idle() {
		l.mu.Unlock()
		return domain.ErrAlreadyRunning
	}
	from, _ := l.moveLocked(StateStarting)
	l.teardown = nil
	l.mu.Unlock()
	l.announce(from, StateStarting, reason)
	return nil
}

// Up registers the teardown of the current run and moves to Running.
func (l *Lifecycle) Up(td Teardown, reason string) error {
	l.mu.Lock()
	from, err := l.moveLocked(StateRunning)
	if err == nil && td != nil {
		l.teardown = sync.OnceValue(td)
	}
	l.mu.Unlock()
	if err != nil {
		return err
	}
	l.announce(from, StateRunning, reason)
	return nil
}

// Go runs fn as a supervised goroutine. Shutdown waits for it.
func (l *Lifecycle) Go(fn func()) {
	l.supervised.Add(1)
	go func() {
		defer l.supervised.Done()
		fn()
	}()
}

// Watch supervises wait. A failure other than cancellation crashes the run.
func (l *Lifecycle) Watch(wait func() error) {
	l.Go(func() {
		err := wait()
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		l.Crash(err)
	})
}

// Crash moves a starting or running run to Crashed and tears it down. It is
// a no-op once a shutdown has begun or the run has ended.
func (l *Lifecycle) Crash(cause error) {
	l.mu.Lock()
	if l.state != StateRunning && l.state != StateStarting {
		l.mu.Unlock()
		return
	}
	from, _ := l.moveLocked(StateCrashed)
	td := l.teardown
	l.mu.Unlock()

	l.logger.Error("run crashed", log.Err(cause))
	l.announce(from, StateCrashed, cause.Error())
	if td == nil {
		return
	}
	if err := td(); err != nil {
		l.logger.Error("teardown after crash", log.Err(err))
	}
}

// Shutdown stops the current run: Stopping, teardown, then a bounded wait for
// the supervised goroutines. It ends in Stopped, or in Crashed with the
// teardown error or domain.ErrShutdownTimeout.
func (l *Lifecycle) Shutdown(reason string) error {
	l.mu.Lock()
	if l.state != StateRunning && l.state != StateStarting {
		l.mu.Unlock()
		return domain.ErrNotRunning
	}
	from, _ := l.moveLocked(StateStopping)
	td, timeout := l.teardown, l.timeout
	l.mu.Unlock()
	l.announce(from, StateStopping, reason)

	var err error
	if td != nil {
		err = td()
	}
	if werr := l.wait(timeout); err == nil {
		err = werr
	}

	if err != nil {
		reason := err.Error()
		if errors.Is(err, domain.ErrShutdownTimeout) {
			reason = "shutdown timeout"
		}
		_ = l.TransitionTo(StateCrashed, reason)
		return err
	}
	_ = l.TransitionTo(StateStopped, "graceful shutdown")
	return nil
}

func (l *Lifecycle) wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.supervised.Wait()
		close(done)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		l.logger.Warn("supervised goroutines still running", log.Duration("timeout", timeout))
		return domain.ErrShutdownTimeout
	}
}
