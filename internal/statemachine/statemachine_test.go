package statemachine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/ledger-core/internal/errs"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

func TestMachine_LegalTransition(t *testing.T) {
	m := New("test", Transitions{"A": {"B"}, "B": {}}, "A")
	require.NoError(t, m.Transition("B"))
	assert.Equal(t, "B", m.State())
	assert.Equal(t, []string{"A", "B"}, m.History())
}

func TestMachine_IllegalTransitionRejected(t *testing.T) {
	m := New("test", Transitions{"A": {"B"}, "B": {}}, "A")
	err := m.Transition("C")
	require.Error(t, err)
	var smErr *errs.StateMachineError
	assert.True(t, errors.As(err, &smErr))
	assert.Equal(t, "A", m.State())
}

func TestMachine_ForceStateBypassesValidation(t *testing.T) {
	m := New("test", Transitions{"A": {"B"}}, "A")
	m.ForceState("Z")
	assert.Equal(t, "Z", m.State())
}

func TestOrderMachine_HappyPath(t *testing.T) {
	m := NewOrderMachine()
	require.NoError(t, m.Transition(OrderSubmitted))
	require.NoError(t, m.Transition(OrderAcknowledged))
	require.NoError(t, m.Transition(OrderPartiallyFilled))
	require.NoError(t, m.Transition(OrderFilled))
	assert.True(t, m.IsTerminal())
	assert.False(t, m.IsActive())
}

func TestOrderMachine_RejectsSkippedState(t *testing.T) {
	m := NewOrderMachine()
	err := m.Transition(OrderFilled)
	assert.Error(t, err)
}

func TestOrderMachine_FailedCanRecoverOrFail(t *testing.T) {
	m := NewOrderMachine()
	require.NoError(t, m.Transition(OrderSubmitted))
	require.NoError(t, m.Transition(OrderFailed))
	require.NoError(t, m.Transition(OrderAcknowledged))
}

func TestFromExchangeStatus(t *testing.T) {
	cases := map[string]OrderState{
		"NEW":             OrderAcknowledged,
		"PARTIALLY_FILLED": OrderPartiallyFilled,
		"FILLED":          OrderFilled,
		"CANCELED":        OrderCancelled,
		"REJECTED":        OrderRejected,
		"EXPIRED":         OrderExpired,
		"GARBAGE":         OrderAcknowledged,
	}
	for raw, want := range cases {
		assert.Equal(t, want, FromExchangeStatus(types.OrderStatus(raw)))
	}
}

func TestPositionMachine_Toggle(t *testing.T) {
	m := NewPositionMachine()
	assert.False(t, m.HasPosition())
	require.NoError(t, m.Transition(PositionOpen))
	assert.True(t, m.HasPosition())
	require.NoError(t, m.Transition(PositionFlat))
	assert.False(t, m.HasPosition())
}

func TestEngineMachine_Lifecycle(t *testing.T) {
	m := NewEngineMachine()
	assert.False(t, m.IsRunning())
	require.NoError(t, m.Transition(EngineRunning))
	assert.True(t, m.CanTrade())
	require.NoError(t, m.Transition(EngineSafe))
	assert.True(t, m.CanCloseOnly())
	assert.False(t, m.CanTrade())
	require.Error(t, m.Transition(EnginePaused))
}

func TestCommandMachine_Completion(t *testing.T) {
	m := NewCommandMachine()
	assert.False(t, m.IsComplete())
	require.NoError(t, m.Transition(CommandSent))
	require.NoError(t, m.Transition(CommandFailed))
	assert.True(t, m.IsComplete())
}

func TestWebSocketMachine_HealthyOnlyWhenConnected(t *testing.T) {
	m := NewWebSocketMachine()
	assert.False(t, m.IsHealthy())
	require.NoError(t, m.Transition(WSConnecting))
	require.NoError(t, m.Transition(WSConnected))
	assert.True(t, m.IsHealthy())
	require.NoError(t, m.Transition(WSReconnecting))
	assert.False(t, m.IsHealthy(), "reconnecting must count as degraded")
}
