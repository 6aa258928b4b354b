package lottery

import (
	"github.com/bft-labs/lottery/internal/app"
)

// State is the lifecycle state of a Lottery server.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateCrashed  State = "crashed"
)

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// BatchEvent describes a processed BATCH message. Err is nil when the
// bets were stored.
type BatchEvent struct {
	Bets int
	Err  error
}

// WinnersEvent describes a winners reply sent to an agency.
type WinnersEvent struct {
	Agency  int
	Winners int
}

// EventHandler receives server events.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnBatch(event BatchEvent)
	OnAgencyFinished(agency int)
	OnWinnersServed(event WinnersEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only the events you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(event StateChangeEvent) {}
func (BaseEventHandler) OnBatch(event BatchEvent)             {}
func (BaseEventHandler) OnAgencyFinished(agency int)          {}
func (BaseEventHandler) OnWinnersServed(event WinnersEvent)   {}

// sessionEmitters fans session events out to several emitters.
type sessionEmitters []app.SessionEventEmitter

func (m sessionEmitters) OnSessionOpened() {
	for _, e := range m {
		e.OnSessionOpened()
	}
}

func (m sessionEmitters) OnSessionClosed(err error) {
	for _, e := range m {
		e.OnSessionClosed(err)
	}
}

func (m sessionEmitters) OnBatch(bets int, err error) {
	for _, e := range m {
		e.OnBatch(bets, err)
	}
}

func (m sessionEmitters) OnAgencyFinished(agency int) {
	for _, e := range m {
		e.OnAgencyFinished(agency)
	}
}

func (m sessionEmitters) OnWinnersServed(agency int, winners int) {
	for _, e := range m {
		e.OnWinnersServed(agency, winners)
	}
}

// stateEmitters fans lifecycle events out to several emitters.
type stateEmitters []app.EventEmitter

func (m stateEmitters) OnStateChange(previous, current app.State, reason string) {
	for _, e := range m {
		e.OnStateChange(previous, current, reason)
	}
}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnSessionOpened()          {}
func (e *eventEmitterWrapper) OnSessionClosed(err error) {}

func (e *eventEmitterWrapper) OnBatch(bets int, err error) {
	e.handler.OnBatch(BatchEvent{Bets: bets, Err: err})
}

func (e *eventEmitterWrapper) OnAgencyFinished(agency int) {
	e.handler.OnAgencyFinished(agency)
}

func (e *eventEmitterWrapper) OnWinnersServed(agency int, winners int) {
	e.handler.OnWinnersServed(WinnersEvent{Agency: agency, Winners: winners})
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}
