package statemachine

// WebSocketState is the connection lifecycle of the exchange WS client.
type WebSocketState string

const (
	WSDisconnected WebSocketState = "DISCONNECTED"
	WSConnecting   WebSocketState = "CONNECTING"
	WSConnected    WebSocketState = "CONNECTED"
	WSReconnecting WebSocketState = "RECONNECTING"
)

var websocketTransitions = Transitions{
	string(WSDisconnected): {string(WSConnecting)},
	string(WSConnecting):   {string(WSConnected), string(WSDisconnected)},
	string(WSConnected):    {string(WSReconnecting), string(WSDisconnected)},
	string(WSReconnecting): {string(WSConnected), string(WSDisconnected)},
}

// WebSocketMachine wraps Machine with the connection lifecycle's typed
// states.
type WebSocketMachine struct{ *Machine }

// NewWebSocketMachine constructs a WebSocketMachine starting DISCONNECTED.
func NewWebSocketMachine() *WebSocketMachine {
	return &WebSocketMachine{Machine: New("websocket", websocketTransitions, string(WSDisconnected))}
}

// Transition moves to the given WebSocketState.
func (m *WebSocketMachine) Transition(to WebSocketState) error {
	return m.Machine.Transition(string(to))
}

// Current returns the current WebSocketState.
func (m *WebSocketMachine) Current() WebSocketState {
	return WebSocketState(m.Machine.State())
}

// IsConnected reports whether the connection is fully up.
func (m *WebSocketMachine) IsConnected() bool {
	return m.Current() == WSConnected
}

// IsHealthy reports whether the connection is fully up. Any other state
// (including RECONNECTING) is degraded — used by the Reconciler to decide
// between NORMAL and FALLBACK cadence.
func (m *WebSocketMachine) IsHealthy() bool {
	return m.Current() == WSConnected
}
