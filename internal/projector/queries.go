package projector

import (
	"database/sql"
	"fmt"

	"github.com/klingon-exchange/ledger-core/internal/types"
)

// BalanceRow is one asset row from projection_balance.
type BalanceRow struct {
	Asset        string
	Free         string
	Locked       string
	LastEventSeq int64
	UpdatedAt    string
}

// GetBalance looks up one asset's current projected balance.
func (p *Projector) GetBalance(scope types.Scope, asset string) (*BalanceRow, error) {
	p.store.RLock()
	defer p.store.RUnlock()

	row := p.store.DB().QueryRow(
		`SELECT asset, free, locked, last_event_seq, updated_at
		 FROM projection_balance
		 WHERE scope_exchange = ? AND scope_venue = ? AND scope_account = ? AND scope_mode = ? AND asset = ?`,
		string(scope.Exchange), string(scope.Venue), scope.AccountID, string(scope.Mode), asset,
	)
	var b BalanceRow
	if err := row.Scan(&b.Asset, &b.Free, &b.Locked, &b.LastEventSeq, &b.UpdatedAt); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &b, nil
}

// GetAllBalances returns every projected balance for the account.
func (p *Projector) GetAllBalances(scope types.Scope) ([]BalanceRow, error) {
	p.store.RLock()
	defer p.store.RUnlock()

	rows, err := p.store.DB().Query(
		`SELECT asset, free, locked, last_event_seq, updated_at
		 FROM projection_balance
		 WHERE scope_exchange = ? AND scope_venue = ? AND scope_account = ? AND scope_mode = ?
		 ORDER BY asset`,
		string(scope.Exchange), string(scope.Venue), scope.AccountID, string(scope.Mode),
	)
	if err != nil {
		return nil, fmt.Errorf("get all balances: %w", err)
	}
	defer rows.Close()

	var out []BalanceRow
	for rows.Next() {
		var b BalanceRow
		if err := rows.Scan(&b.Asset, &b.Free, &b.Locked, &b.LastEventSeq, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// PositionRow is one symbol's current projected position.
type PositionRow struct {
	Symbol         string
	Side           sql.NullString
	Qty            string
	EntryPrice     string
	UnrealizedPnL  string
	Leverage       int
	MarginType     string
	LastEventSeq   int64
	UpdatedAt      string
}

// GetPosition looks up the current projected position for a symbol.
func (p *Projector) GetPosition(scope types.Scope, symbol string) (*PositionRow, error) {
	p.store.RLock()
	defer p.store.RUnlock()

	row := p.store.DB().QueryRow(
		`SELECT symbol, side, qty, entry_price, unrealized_pnl, leverage, margin_type, last_event_seq, updated_at
		 FROM projection_position
		 WHERE scope_exchange = ? AND scope_venue = ? AND scope_account = ? AND scope_mode = ? AND symbol = ?`,
		string(scope.Exchange), string(scope.Venue), scope.AccountID, string(scope.Mode), symbol,
	)
	var pos PositionRow
	err := row.Scan(&pos.Symbol, &pos.Side, &pos.Qty, &pos.EntryPrice, &pos.UnrealizedPnL, &pos.Leverage, &pos.MarginType, &pos.LastEventSeq, &pos.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return &pos, nil
}

// GetAllPositions returns every non-flat projected position for the account.
func (p *Projector) GetAllPositions(scope types.Scope) ([]PositionRow, error) {
	p.store.RLock()
	defer p.store.RUnlock()

	rows, err := p.store.DB().Query(
		`SELECT symbol, side, qty, entry_price, unrealized_pnl, leverage, margin_type, last_event_seq, updated_at
		 FROM projection_position
		 WHERE scope_exchange = ? AND scope_venue = ? AND scope_account = ? AND scope_mode = ? AND CAST(qty AS REAL) > 0
		 ORDER BY symbol`,
		string(scope.Exchange), string(scope.Venue), scope.AccountID, string(scope.Mode),
	)
	if err != nil {
		return nil, fmt.Errorf("get all positions: %w", err)
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var pos PositionRow
		if err := rows.Scan(&pos.Symbol, &pos.Side, &pos.Qty, &pos.EntryPrice, &pos.UnrealizedPnL, &pos.Leverage, &pos.MarginType, &pos.LastEventSeq, &pos.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

// OpenOrderRow is one resting order from projection_order.
type OpenOrderRow struct {
	Symbol          string
	ExchangeOrderID string
	ClientOrderID   sql.NullString
	OrderState      string
	Side            string
	OrderType       string
	OriginalQty     string
	ExecutedQty     string
	Price           sql.NullString
	StopPrice       sql.NullString
	CreatedAt       string
	UpdatedAt       string
}

// GetOpenOrders returns resting orders for the account, optionally filtered
// to one symbol.
func (p *Projector) GetOpenOrders(scope types.Scope, symbol string) ([]OpenOrderRow, error) {
	p.store.RLock()
	defer p.store.RUnlock()

	query := `SELECT scope_symbol, exchange_order_id, client_order_id, order_state, side, order_type,
			original_qty, executed_qty, price, stop_price, created_at, updated_at
		 FROM projection_order
		 WHERE scope_exchange = ? AND scope_venue = ? AND scope_account = ? AND scope_mode = ?`
	args := []any{string(scope.Exchange), string(scope.Venue), scope.AccountID, string(scope.Mode)}
	if symbol != "" {
		query += " AND scope_symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY created_at"

	rows, err := p.store.DB().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get open orders: %w", err)
	}
	defer rows.Close()

	var out []OpenOrderRow
	for rows.Next() {
		var o OpenOrderRow
		if err := rows.Scan(&o.Symbol, &o.ExchangeOrderID, &o.ClientOrderID, &o.OrderState, &o.Side, &o.OrderType,
			&o.OriginalQty, &o.ExecutedQty, &o.Price, &o.StopPrice, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
