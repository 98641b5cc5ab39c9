package maintenance

import (
	"errors"
	"log/slog"
	"sync"
)

var ErrInvalidTransition = errors.New("invalid mode state substate transition")

type Mode int
type State int
type SubState int

const (
	MODE_INIT Mode = iota
	MODE_OPERATIONAL
)

const (
	STATE_CONFIGURING State = iota
	STATE_RUNNING
	STATE_FAILED
)

const (
	SUBSTATE_CONFIGURING_SECRETS  SubState = iota // Read passwords and keys from vault
	SUBSTATE_CONFIGURING_SERVICES                 // Connect db and cache, run migrations
	SUBSTATE_CONFIGURING_ENGINE                   // Load the catalog, start battle workers and notifications
	SUBSTATE_SAFE
	SUBSTATE_DEGRADED // A dependency failed its health check; no new battles
	SUBSTATE_FAILED
)

type MSS struct {
	mode     Mode
	state    State
	substate SubState
}

type MSSTransition struct {
	From MSS
	To   MSS
}

var transitions = map[MSSTransition]struct{}{
	{MSS{MODE_INIT, STATE_CONFIGURING, SUBSTATE_CONFIGURING_SECRETS}, MSS{MODE_INIT, STATE_CONFIGURING, SUBSTATE_CONFIGURING_SERVICES}}: {},
	{MSS{MODE_INIT, STATE_CONFIGURING, SUBSTATE_CONFIGURING_SERVICES}, MSS{MODE_INIT, STATE_CONFIGURING, SUBSTATE_CONFIGURING_ENGINE}}:  {},
	{MSS{MODE_INIT, STATE_CONFIGURING, SUBSTATE_CONFIGURING_ENGINE}, MSS{MODE_OPERATIONAL, STATE_RUNNING, SUBSTATE_SAFE}}:               {},
	{MSS{MODE_OPERATIONAL, STATE_RUNNING, SUBSTATE_SAFE}, MSS{MODE_OPERATIONAL, STATE_RUNNING, SUBSTATE_DEGRADED}}:                      {},
	{MSS{MODE_OPERATIONAL, STATE_RUNNING, SUBSTATE_DEGRADED}, MSS{MODE_OPERATIONAL, STATE_RUNNING, SUBSTATE_SAFE}}:                      {},
}

func names(mode Mode, state State, substate SubState) (string, string, string) {
	var mode_name string
	switch mode {
	case MODE_INIT:
		mode_name = "INIT"
	case MODE_OPERATIONAL:
		mode_name = "OPERATIONAL"
	}

	var state_name string
	switch state {
	case STATE_CONFIGURING:
		state_name = "CONFIGURING"
	case STATE_FAILED:
		state_name = "FAILED"
	case STATE_RUNNING:
		state_name = "RUNNING"
	}

	var substate_name string
	switch substate {
	case SUBSTATE_CONFIGURING_SECRETS:
		substate_name = "CONFIGURING_SECRETS"
	case SUBSTATE_CONFIGURING_SERVICES:
		substate_name = "CONFIGURING_SERVICES"
	case SUBSTATE_CONFIGURING_ENGINE:
		substate_name = "CONFIGURING_ENGINE"
	case SUBSTATE_SAFE:
		substate_name = "SAFE"
	case SUBSTATE_DEGRADED:
		substate_name = "DEGRADED"
	case SUBSTATE_FAILED:
		substate_name = "FAILED"
	}
	return mode_name, state_name, substate_name
}

// Names returns the printable mode, state and substate.
func (state_machine *StateMachine) Names() (string, string, string) {
	return names(state_machine.Get())
}

type StateMachine struct {
	mode     Mode
	state    State
	substate SubState

	signals map[MSS][]func()

	mutex sync.RWMutex
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		mode:     MODE_INIT,
		state:    STATE_CONFIGURING,
		substate: SUBSTATE_CONFIGURING_SECRETS,
		signals:  make(map[MSS][]func()),
	}
}

func (state_machine *StateMachine) Get() (Mode, State, SubState) {
	state_machine.mutex.RLock()
	defer state_machine.mutex.RUnlock()

	return state_machine.mode, state_machine.state, state_machine.substate
}

// To moves to the target triple. Any target naming FAILED is always accepted
// and lands on FAILED/FAILED in the requested mode.
func (state_machine *StateMachine) To(mode Mode, state State, substate SubState) error {
	state_machine.mutex.Lock()
	defer state_machine.mutex.Unlock()

	current := MSS{state_machine.mode, state_machine.state, state_machine.substate}
	if _, ok := transitions[MSSTransition{current, MSS{mode, state, substate}}]; ok {
		state_machine.accept(mode, state, substate)
		return nil
	} else if state == STATE_FAILED || substate == SUBSTATE_FAILED {
		state_machine.accept(mode, STATE_FAILED, SUBSTATE_FAILED)
		return nil
	}
	mode_name, state_name, substate_name := names(mode, state, substate)
	slog.Warn("MSS : Invalid mode state substate transition", "mode", mode_name, "state", state_name, "substate", substate_name)
	return ErrInvalidTransition
}

// Fail is a shortcut for a transition to FAILED in the current mode.
func (state_machine *StateMachine) Fail() {
	mode, _, _ := state_machine.Get()
	state_machine.To(mode, STATE_FAILED, SUBSTATE_FAILED)
}

// Running reports whether the machine is operational and running, and
// whether it is in the SAFE substate.
func (state_machine *StateMachine) Running() (bool, bool) {
	mode, state, substate := state_machine.Get()
	running := mode == MODE_OPERATIONAL && state == STATE_RUNNING
	return running, running && substate == SUBSTATE_SAFE
}

// accept must be called with the mutex held.
func (state_machine *StateMachine) accept(mode Mode, state State, substate SubState) {
	if signals, ok := state_machine.signals[MSS{mode: mode, state: state, substate: substate}]; ok {
		for _, signal := range signals {
			go signal()
		}
	}

	state_machine.mode = mode
	state_machine.state = state
	state_machine.substate = substate
	mode_name, state_name, substate_name := names(mode, state, substate)
	slog.Info("MSS : transition done", "mode", mode_name, "state", state_name, "substate", substate_name)
}

// When registers a callback run in its own goroutine every time the machine
// enters the given triple.
func (state_machine *StateMachine) When(mode Mode, state State, substate SubState, callback func()) {
	state_machine.mutex.Lock()
	defer state_machine.mutex.Unlock()

	key := MSS{mode: mode, state: state, substate: substate}
	state_machine.signals[key] = append(state_machine.signals[key], callback)
}
