package statemachine

import "github.com/klingon-exchange/ledger-core/internal/types"

// OrderState is the core's own order lifecycle, distinct from the raw
// exchange-reported types.OrderStatus.
type OrderState string

const (
	OrderNew            OrderState = "NEW"
	OrderSubmitted      OrderState = "SUBMITTED"
	OrderAcknowledged   OrderState = "ACKNOWLEDGED"
	OrderPartiallyFilled OrderState = "PARTIALLY_FILLED"
	OrderFilled         OrderState = "FILLED"
	OrderCancelled      OrderState = "CANCELLED"
	OrderRejected       OrderState = "REJECTED"
	OrderExpired        OrderState = "EXPIRED"
	OrderFailed         OrderState = "FAILED"
)

var orderTransitions = Transitions{
	string(OrderNew):             {string(OrderSubmitted)},
	string(OrderSubmitted):       {string(OrderAcknowledged), string(OrderFailed)},
	string(OrderAcknowledged):    {string(OrderPartiallyFilled), string(OrderFilled), string(OrderCancelled), string(OrderRejected), string(OrderExpired)},
	string(OrderPartiallyFilled): {string(OrderFilled), string(OrderCancelled)},
	string(OrderFailed):          {string(OrderAcknowledged), string(OrderRejected)},
}

var orderTerminalStates = map[OrderState]bool{
	OrderFilled:    true,
	OrderCancelled: true,
	OrderRejected:  true,
	OrderExpired:   true,
}

// OrderMachine wraps Machine with the order lifecycle's typed states.
type OrderMachine struct{ *Machine }

// NewOrderMachine constructs an OrderMachine starting in NEW.
func NewOrderMachine() *OrderMachine {
	return &OrderMachine{Machine: New("order", orderTransitions, string(OrderNew))}
}

// Transition moves to the given OrderState.
func (m *OrderMachine) Transition(to OrderState) error {
	return m.Machine.Transition(string(to))
}

// Current returns the current OrderState.
func (m *OrderMachine) Current() OrderState {
	return OrderState(m.Machine.State())
}

// IsTerminal reports whether the current state admits no further transitions.
func (m *OrderMachine) IsTerminal() bool {
	return orderTerminalStates[m.Current()]
}

// IsActive is the complement of IsTerminal.
func (m *OrderMachine) IsActive() bool {
	return !m.IsTerminal()
}

// FromExchangeStatus maps a raw exchange order status to the core's
// OrderState, the Go equivalent of get_order_state_from_binance: unmapped
// statuses default to ACKNOWLEDGED since an order report from the exchange
// implies the exchange has, at minimum, accepted it.
func FromExchangeStatus(status types.OrderStatus) OrderState {
	switch status {
	case types.OrderStatusNew:
		return OrderAcknowledged
	case types.OrderStatusPartiallyFilled:
		return OrderPartiallyFilled
	case types.OrderStatusFilled:
		return OrderFilled
	case types.OrderStatusCanceled:
		return OrderCancelled
	case types.OrderStatusRejected:
		return OrderRejected
	case types.OrderStatusExpired:
		return OrderExpired
	default:
		return OrderAcknowledged
	}
}
