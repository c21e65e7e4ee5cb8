package projector

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

// terminalOrderStates are the statuses that remove an order from the open
// orders projection: once an order lands here it never updates again.
var terminalOrderStates = map[string]bool{
	string(types.OrderStatusFilled):   true,
	string(types.OrderStatusCanceled): true,
	string(types.OrderStatusExpired):  true,
	string(types.OrderStatusRejected): true,
}

// OrderHandler folds order lifecycle events into projection_order, the open
// orders book. Terminal events delete the row rather than marking it closed,
// since the table exists only to answer "what is currently resting".
type OrderHandler struct{}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler() *OrderHandler { return &OrderHandler{} }

// HandledEventTypes implements Handler.
func (h *OrderHandler) HandledEventTypes() []eventlog.EventType {
	return []eventlog.EventType{
		eventlog.OrderPlaced,
		eventlog.OrderUpdated,
		eventlog.OrderCancelled,
		eventlog.OrderRejected,
	}
}

// Handle implements Handler.
func (h *OrderHandler) Handle(tx *sql.Tx, e *eventlog.Event) error {
	orderID, err := payloadString(e.Payload, "exchange_order_id")
	if err != nil {
		// OrderRejected fired before an exchange assigned an id carries no
		// row to project; there is nothing to do.
		if e.EventType == eventlog.OrderRejected {
			return nil
		}
		return fmt.Errorf("order projection: %w", err)
	}

	switch e.EventType {
	case eventlog.OrderPlaced:
		return h.placed(tx, e, orderID)
	case eventlog.OrderUpdated:
		return h.updated(tx, e, orderID)
	case eventlog.OrderCancelled, eventlog.OrderRejected:
		return h.delete(tx, e, orderID)
	default:
		return nil
	}
}

func (h *OrderHandler) placed(tx *sql.Tx, e *eventlog.Event, orderID string) error {
	symbol := e.Scope.Symbol
	if symbol == "" {
		symbol = payloadStringOr(e.Payload, "symbol", "")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := tx.Exec(
		`INSERT INTO projection_order
			(scope_exchange, scope_venue, scope_account, scope_mode, scope_symbol,
			 exchange_order_id, client_order_id, order_state, side, order_type,
			 original_qty, executed_qty, price, stop_price, last_event_seq, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(scope_exchange, scope_venue, scope_account, scope_mode, exchange_order_id)
		 DO UPDATE SET order_state = excluded.order_state, last_event_seq = excluded.last_event_seq,
			updated_at = excluded.updated_at`,
		string(e.Scope.Exchange), string(e.Scope.Venue), e.Scope.AccountID, string(e.Scope.Mode), symbol,
		orderID, payloadStringOr(e.Payload, "client_order_id", ""),
		payloadStringOr(e.Payload, "order_status", string(types.OrderStatusNew)),
		payloadStringOr(e.Payload, "side", ""), payloadStringOr(e.Payload, "order_type", ""),
		payloadStringOr(e.Payload, "original_qty", "0"), payloadStringOr(e.Payload, "executed_qty", "0"),
		nullableString(payloadStringOr(e.Payload, "price", "")), nullableString(payloadStringOr(e.Payload, "stop_price", "")),
		e.Seq, now, now,
	)
	return err
}

func (h *OrderHandler) updated(tx *sql.Tx, e *eventlog.Event, orderID string) error {
	status := payloadStringOr(e.Payload, "order_status", "")
	if terminalOrderStates[status] {
		return h.delete(tx, e, orderID)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := tx.Exec(
		`UPDATE projection_order
		 SET order_state = ?, executed_qty = ?, last_event_seq = ?, updated_at = ?
		 WHERE scope_exchange = ? AND scope_venue = ? AND scope_account = ? AND scope_mode = ? AND exchange_order_id = ?`,
		status, payloadStringOr(e.Payload, "executed_qty", "0"), e.Seq, now,
		string(e.Scope.Exchange), string(e.Scope.Venue), e.Scope.AccountID, string(e.Scope.Mode), orderID,
	)
	return err
}

func (h *OrderHandler) delete(tx *sql.Tx, e *eventlog.Event, orderID string) error {
	_, err := tx.Exec(
		`DELETE FROM projection_order
		 WHERE scope_exchange = ? AND scope_venue = ? AND scope_account = ? AND scope_mode = ? AND exchange_order_id = ?`,
		string(e.Scope.Exchange), string(e.Scope.Venue), e.Scope.AccountID, string(e.Scope.Mode), orderID,
	)
	return err
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
