package projector

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

// PositionSessionHandler folds TradeExecuted events into position_session
// and position_trade, tracking a position's full entry-to-flat lifecycle so
// reporting can compute win rate and average win/loss without replaying
// journal lines.
type PositionSessionHandler struct{}

// NewPositionSessionHandler constructs a PositionSessionHandler.
func NewPositionSessionHandler() *PositionSessionHandler { return &PositionSessionHandler{} }

// HandledEventTypes implements Handler.
func (h *PositionSessionHandler) HandledEventTypes() []eventlog.EventType {
	return []eventlog.EventType{eventlog.TradeExecuted}
}

// Handle implements Handler.
func (h *PositionSessionHandler) Handle(tx *sql.Tx, e *eventlog.Event) error {
	symbol := e.Scope.Symbol
	if symbol == "" {
		symbol = payloadStringOr(e.Payload, "symbol", "")
	}
	if symbol == "" {
		return fmt.Errorf("position session: missing symbol")
	}

	side := payloadStringOr(e.Payload, "side", "")
	qty := payloadDecimalOr(e.Payload, "qty", decimal.Zero)
	price := payloadDecimalOr(e.Payload, "price", decimal.Zero)
	realizedPnL := payloadDecimalOr(e.Payload, "realized_pnl", decimal.Zero)
	commission := payloadDecimalOr(e.Payload, "commission", decimal.Zero)

	if !qty.IsPositive() {
		return nil
	}

	session, err := h.openSession(tx, string(e.Scope.Mode), string(e.Scope.Venue), symbol)
	if err != nil {
		return err
	}

	if session == nil {
		return h.createSession(tx, e, symbol, side, qty, price, realizedPnL, commission)
	}
	return h.updateSession(tx, e, session, side, qty, price, realizedPnL, commission)
}

type openSessionRow struct {
	sessionID        string
	side             string
	maxQty           decimal.Decimal
	realizedPnL      decimal.Decimal
	totalCommission  decimal.Decimal
	tradeCount       int
}

func (h *PositionSessionHandler) openSession(tx *sql.Tx, mode, venue, symbol string) (*openSessionRow, error) {
	row := tx.QueryRow(
		`SELECT session_id, side, max_qty, realized_pnl, total_commission, trade_count
		 FROM position_session
		 WHERE scope_mode = ? AND scope_venue = ? AND symbol = ? AND closed_at IS NULL
		 ORDER BY opened_at DESC LIMIT 1`,
		mode, venue, symbol,
	)

	var s openSessionRow
	var maxQty, pnl, commission string
	err := row.Scan(&s.sessionID, &s.side, &maxQty, &pnl, &commission, &s.tradeCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open session lookup: %w", err)
	}
	s.maxQty, _ = decimal.NewFromString(maxQty)
	s.realizedPnL, _ = decimal.NewFromString(pnl)
	s.totalCommission, _ = decimal.NewFromString(commission)
	return &s, nil
}

func (h *PositionSessionHandler) currentQty(tx *sql.Tx, sessionID string) (decimal.Decimal, error) {
	row := tx.QueryRow(
		`SELECT position_qty_after FROM position_trade
		 WHERE session_id = ? ORDER BY id DESC LIMIT 1`,
		sessionID,
	)
	var qtyStr string
	if err := row.Scan(&qtyStr); err == sql.ErrNoRows {
		return decimal.Zero, nil
	} else if err != nil {
		return decimal.Zero, fmt.Errorf("current qty: %w", err)
	}
	qty, _ := decimal.NewFromString(qtyStr)
	return qty, nil
}

func (h *PositionSessionHandler) createSession(tx *sql.Tx, e *eventlog.Event, symbol, side string, qty, price, realizedPnL, commission decimal.Decimal) error {
	sessionID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	positionSide := types.PositionLong
	if side == string(types.SideSell) {
		positionSide = types.PositionShort
	}

	_, err := tx.Exec(
		`INSERT INTO position_session
			(session_id, scope_exchange, scope_venue, scope_account, scope_mode, symbol, side,
			 opened_at, max_qty, realized_pnl, total_commission, trade_count, last_event_seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		sessionID, string(e.Scope.Exchange), string(e.Scope.Venue), e.Scope.AccountID, string(e.Scope.Mode),
		symbol, string(positionSide), now, qty.String(), realizedPnL.String(), commission.String(), e.Seq,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return h.recordTrade(tx, sessionID, e.EventID, "ENTRY", qty, price, realizedPnL, commission, qty)
}

func (h *PositionSessionHandler) updateSession(tx *sql.Tx, e *eventlog.Event, session *openSessionRow, tradeSide string, qty, price, realizedPnL, commission decimal.Decimal) error {
	currentQty, err := h.currentQty(tx, session.sessionID)
	if err != nil {
		return err
	}

	sameDirection := (session.side == string(types.PositionLong) && tradeSide == string(types.SideBuy)) ||
		(session.side == string(types.PositionShort) && tradeSide == string(types.SideSell))

	var newQty decimal.Decimal
	if sameDirection {
		newQty = currentQty.Add(qty)
	} else {
		newQty = currentQty.Sub(qty)
		if newQty.IsNegative() {
			newQty = decimal.Zero
		}
	}

	newMaxQty := session.maxQty
	if newQty.GreaterThan(newMaxQty) {
		newMaxQty = newQty
	}
	newRealizedPnL := session.realizedPnL.Add(realizedPnL)
	newCommission := session.totalCommission.Add(commission)
	newTradeCount := session.tradeCount + 1
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if newQty.IsZero() {
		_, err = tx.Exec(
			`UPDATE position_session
			 SET closed_at = ?, max_qty = ?, realized_pnl = ?, total_commission = ?, trade_count = ?, last_event_seq = ?
			 WHERE session_id = ?`,
			now, newMaxQty.String(), newRealizedPnL.String(), newCommission.String(), newTradeCount, e.Seq, session.sessionID,
		)
	} else {
		_, err = tx.Exec(
			`UPDATE position_session
			 SET max_qty = ?, realized_pnl = ?, total_commission = ?, trade_count = ?, last_event_seq = ?
			 WHERE session_id = ?`,
			newMaxQty.String(), newRealizedPnL.String(), newCommission.String(), newTradeCount, e.Seq, session.sessionID,
		)
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	action := "ADD"
	if !sameDirection {
		action = "REDUCE"
		if newQty.IsZero() {
			action = "EXIT"
		}
	}
	return h.recordTrade(tx, session.sessionID, e.EventID, action, qty, price, realizedPnL, commission, newQty)
}

func (h *PositionSessionHandler) recordTrade(tx *sql.Tx, sessionID, eventID, action string, qty, price, realizedPnL, commission, qtyAfter decimal.Decimal) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := tx.Exec(
		`INSERT INTO position_trade
			(session_id, trade_event_id, action, qty, price, realized_pnl, commission, position_qty_after, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, eventID, action, qty.String(), price.String(), realizedPnL.String(), commission.String(), qtyAfter.String(), now,
	)
	if err != nil {
		return fmt.Errorf("record trade: %w", err)
	}
	return nil
}
