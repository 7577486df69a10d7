package intake

import (
	"time"

	"github.com/bft-labs/intake/internal/app"
)

// State is the lifecycle state of an Intake instance.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// EventHandledEvent is emitted after a worker handled an event.
type EventHandledEvent struct {
	Duration time.Duration
}

// EventErrorEvent is emitted when a worker failed to handle an event.
type EventErrorEvent struct {
	Error error
}

// EventHandler receives notifications. Methods are called synchronously from
// lifecycle and worker goroutines and should return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnEventHandled(EventHandledEvent)
	OnEventError(EventErrorEvent)
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: State(previous),
		Current:  State(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnEventHandled(d time.Duration) {
	if e.handler == nil {
		return
	}
	e.handler.OnEventHandled(EventHandledEvent{Duration: d})
}

func (e *eventEmitterWrapper) OnEventError(err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnEventError(EventErrorEvent{Error: err})
}
