// Package statemachine implements the generic finite-state-machine base and
// the five concrete machines the core tracks: Order, Position, Engine,
// Command, and WebSocket connection state. Illegal transitions are rejected
// as programmer error, never silently accepted.
package statemachine

import (
	"sync"

	"github.com/klingon-exchange/ledger-core/internal/errs"
)

// Transitions maps a state to the set of states it may legally move to.
type Transitions map[string][]string

// Machine is a generic, concurrency-safe finite state machine over string
// states. Concrete machines (below) wrap it with typed states and a fixed
// transition table.
type Machine struct {
	name        string
	transitions Transitions
	mu          sync.Mutex
	state       string
	history     []string
}

// New constructs a Machine in the given initial state.
func New(name string, transitions Transitions, initial string) *Machine {
	return &Machine{
		name:        name,
		transitions: transitions,
		state:       initial,
		history:     []string{initial},
	}
}

// State returns the current state.
func (m *Machine) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// History returns the ordered list of states visited, including the initial
// state.
func (m *Machine) History() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.history))
	copy(out, m.history)
	return out
}

// CanTransition reports whether a move from the current state to to is legal.
func (m *Machine) CanTransition(to string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canTransitionLocked(to)
}

func (m *Machine) canTransitionLocked(to string) bool {
	for _, allowed := range m.transitions[m.state] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves the machine to the target state, returning
// *errs.StateMachineError if the move is not legal from the current state.
func (m *Machine) Transition(to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.canTransitionLocked(to) {
		return &errs.StateMachineError{Machine: m.name, From: m.state, To: to}
	}
	m.state = to
	m.history = append(m.history, to)
	return nil
}

// ForceState sets the state without transition validation. Intended only
// for rehydrating a machine from persisted state at process startup.
func (m *Machine) ForceState(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.history = append(m.history, state)
}
