package projector

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

// PositionHandler folds PositionChanged events into projection_position.
type PositionHandler struct{}

// NewPositionHandler constructs a PositionHandler.
func NewPositionHandler() *PositionHandler { return &PositionHandler{} }

// HandledEventTypes implements Handler.
func (h *PositionHandler) HandledEventTypes() []eventlog.EventType {
	return []eventlog.EventType{eventlog.PositionChanged}
}

// Handle implements Handler. A signed position_amount is normalized to an
// unsigned qty plus a LONG/SHORT/empty side; zero quantity is stored as a
// flat position (empty side) rather than deleted, preserving the row's
// leverage/margin-type history.
func (h *PositionHandler) Handle(tx *sql.Tx, e *eventlog.Event) error {
	symbol := e.Scope.Symbol
	if symbol == "" {
		symbol = payloadStringOr(e.Payload, "symbol", "")
	}
	if symbol == "" {
		return fmt.Errorf("position projection: missing symbol")
	}

	qty := payloadDecimalOr(e.Payload, "position_amount", decimal.Zero)
	entryPrice := payloadDecimalOr(e.Payload, "entry_price", decimal.Zero)
	unrealized := payloadDecimalOr(e.Payload, "unrealized_pnl", decimal.Zero)
	leverage := payloadIntOr(e.Payload, "leverage", 1)
	marginType := payloadStringOr(e.Payload, "margin_type", "CROSS")
	reportedSide := payloadStringOr(e.Payload, "position_side", payloadStringOr(e.Payload, "side", ""))

	var side string
	switch {
	case qty.IsPositive():
		if reportedSide == string(types.PositionLong) || reportedSide == string(types.PositionShort) {
			side = reportedSide
		} else {
			side = string(types.PositionLong)
		}
	case qty.IsNegative():
		side = string(types.PositionShort)
		qty = qty.Abs()
	default:
		side = ""
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := tx.Exec(
		`INSERT INTO projection_position
			(scope_exchange, scope_venue, scope_account, scope_mode, symbol,
			 side, qty, entry_price, unrealized_pnl, leverage, margin_type, last_event_seq, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(scope_exchange, scope_venue, scope_account, scope_mode, symbol)
		 DO UPDATE SET side = excluded.side, qty = excluded.qty, entry_price = excluded.entry_price,
			unrealized_pnl = excluded.unrealized_pnl, leverage = excluded.leverage,
			margin_type = excluded.margin_type, last_event_seq = excluded.last_event_seq,
			updated_at = excluded.updated_at`,
		string(e.Scope.Exchange), string(e.Scope.Venue), e.Scope.AccountID, string(e.Scope.Mode), symbol,
		nullableSide(side), qty.String(), entryPrice.String(), unrealized.String(), leverage, marginType, e.Seq, now,
	)
	return err
}

func nullableSide(side string) any {
	if side == "" {
		return nil
	}
	return side
}
