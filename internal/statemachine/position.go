package statemachine

// PositionLifecycleState tracks whether a symbol currently has an open
// position, independent of the Position projection's side/qty detail.
type PositionLifecycleState string

const (
	PositionFlat PositionLifecycleState = "FLAT"
	PositionOpen PositionLifecycleState = "OPEN"
)

var positionTransitions = Transitions{
	string(PositionFlat): {string(PositionOpen)},
	string(PositionOpen): {string(PositionFlat)},
}

// PositionMachine wraps Machine with the position lifecycle's typed states.
type PositionMachine struct{ *Machine }

// NewPositionMachine constructs a PositionMachine starting FLAT.
func NewPositionMachine() *PositionMachine {
	return &PositionMachine{Machine: New("position", positionTransitions, string(PositionFlat))}
}

// Transition moves to the given PositionLifecycleState.
func (m *PositionMachine) Transition(to PositionLifecycleState) error {
	return m.Machine.Transition(string(to))
}

// Current returns the current PositionLifecycleState.
func (m *PositionMachine) Current() PositionLifecycleState {
	return PositionLifecycleState(m.Machine.State())
}

// HasPosition reports whether the machine is currently OPEN.
func (m *PositionMachine) HasPosition() bool {
	return m.Current() == PositionOpen
}
