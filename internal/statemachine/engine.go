package statemachine

// EngineState is the overall trading-engine operating mode.
type EngineState string

const (
	EngineBooting EngineState = "BOOTING"
	EngineRunning EngineState = "RUNNING"
	EnginePaused  EngineState = "PAUSED"
	EngineSafe    EngineState = "SAFE"
)

var engineTransitions = Transitions{
	string(EngineBooting): {string(EngineRunning)},
	string(EngineRunning): {string(EnginePaused), string(EngineSafe)},
	string(EnginePaused):  {string(EngineRunning)},
	string(EngineSafe):    {string(EngineRunning)},
}

// EngineMachine wraps Machine with the engine lifecycle's typed states.
type EngineMachine struct{ *Machine }

// NewEngineMachine constructs an EngineMachine starting in BOOTING.
func NewEngineMachine() *EngineMachine {
	return &EngineMachine{Machine: New("engine", engineTransitions, string(EngineBooting))}
}

// Transition moves to the given EngineState.
func (m *EngineMachine) Transition(to EngineState) error {
	return m.Machine.Transition(string(to))
}

// Current returns the current EngineState.
func (m *EngineMachine) Current() EngineState {
	return EngineState(m.Machine.State())
}

// IsRunning reports whether the engine is actively trading.
func (m *EngineMachine) IsRunning() bool {
	return m.Current() == EngineRunning
}

// CanTrade reports whether new position-opening actions are permitted.
func (m *EngineMachine) CanTrade() bool {
	return m.Current() == EngineRunning
}

// CanCloseOnly reports whether only position-reducing actions are permitted,
// as is the case in SAFE mode.
func (m *EngineMachine) CanCloseOnly() bool {
	return m.Current() == EngineSafe
}
