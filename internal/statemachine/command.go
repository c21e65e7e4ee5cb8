package statemachine

// CommandState tracks a strategy-issued command from submission through
// exchange acknowledgement. Supplements the base order/position/engine/
// websocket machines: every Event may carry a command_id, but nothing
// previously modeled the command's own lifecycle.
type CommandState string

const (
	CommandNew    CommandState = "NEW"
	CommandSent   CommandState = "SENT"
	CommandAck    CommandState = "ACK"
	CommandFailed CommandState = "FAILED"
)

var commandTransitions = Transitions{
	string(CommandNew):  {string(CommandSent)},
	string(CommandSent): {string(CommandAck), string(CommandFailed)},
}

// CommandMachine wraps Machine with the command lifecycle's typed states.
type CommandMachine struct{ *Machine }

// NewCommandMachine constructs a CommandMachine starting in NEW.
func NewCommandMachine() *CommandMachine {
	return &CommandMachine{Machine: New("command", commandTransitions, string(CommandNew))}
}

// Transition moves to the given CommandState.
func (m *CommandMachine) Transition(to CommandState) error {
	return m.Machine.Transition(string(to))
}

// Current returns the current CommandState.
func (m *CommandMachine) Current() CommandState {
	return CommandState(m.Machine.State())
}

// IsComplete reports whether the command has reached a terminal state.
func (m *CommandMachine) IsComplete() bool {
	s := m.Current()
	return s == CommandAck || s == CommandFailed
}
