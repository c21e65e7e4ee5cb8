package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/exchange"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

// scriptedExchange is an in-memory exchange.RestClient that replays a fixed
// sequence of fills against a single symbol, advancing its book and balance
// on each call to stepFill. It exists so the demo harness can exercise the
// full reconcile -> projector -> ledger pipeline without a network
// dependency, standing in for the "exchange collaborator" the core treats
// as external.
type scriptedExchange struct {
	mu sync.Mutex

	symbol     string
	walletUSDT decimal.Decimal
	position   exchange.Position
	trades     []exchange.Trade
	openOrders []exchange.Order

	nextTradeID int
	nextOrderID int
}

func newScriptedExchange(symbol string, startingBalance decimal.Decimal) *scriptedExchange {
	return &scriptedExchange{
		symbol:     symbol,
		walletUSDT: startingBalance,
		position:   exchange.Position{Symbol: symbol, Side: types.PositionLong, MarginType: "CROSSED"},
	}
}

// stepFill applies one simulated fill, updating the wallet, position, and
// trade history the way a real exchange would after an order executes.
func (s *scriptedExchange) stepFill(side types.OrderSide, qty, price decimal.Decimal) exchange.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTradeID++
	s.nextOrderID++
	commission := qty.Mul(price).Mul(decimal.NewFromFloat(0.0004))

	var realizedPnL decimal.Decimal
	prevQty := s.position.Quantity
	if side == types.SideBuy && s.position.Side == types.PositionShort && prevQty.IsPositive() {
		closeQty := decimal.Min(qty, prevQty)
		realizedPnL = s.position.EntryPrice.Sub(price).Mul(closeQty)
	} else if side == types.SideSell && s.position.Side == types.PositionLong && prevQty.IsPositive() {
		closeQty := decimal.Min(qty, prevQty)
		realizedPnL = price.Sub(s.position.EntryPrice).Mul(closeQty)
	}

	s.applyFillToPosition(side, qty, price)
	s.walletUSDT = s.walletUSDT.Add(realizedPnL).Sub(commission)

	trade := exchange.Trade{
		TradeID:         fmt.Sprintf("T%d", s.nextTradeID),
		OrderID:         fmt.Sprintf("O%d", s.nextOrderID),
		Symbol:          s.symbol,
		Side:            side,
		Quantity:        qty,
		Price:           price,
		QuoteQty:        qty.Mul(price),
		Commission:      commission,
		CommissionAsset: "USDT",
		RealizedPnL:     realizedPnL,
		IsMaker:         false,
		TradeTime:       time.Now(),
	}
	s.trades = append(s.trades, trade)
	return trade
}

func (s *scriptedExchange) applyFillToPosition(side types.OrderSide, qty, price decimal.Decimal) {
	pos := &s.position
	switch {
	case pos.Quantity.IsZero():
		pos.Side = sideToPositionSide(side)
		pos.Quantity = qty
		pos.EntryPrice = price
	case sideToPositionSide(side) == pos.Side:
		totalCost := pos.EntryPrice.Mul(pos.Quantity).Add(price.Mul(qty))
		pos.Quantity = pos.Quantity.Add(qty)
		pos.EntryPrice = totalCost.Div(pos.Quantity)
	default:
		remaining := pos.Quantity.Sub(qty)
		switch {
		case remaining.IsZero():
			pos.Quantity = decimal.Zero
			pos.EntryPrice = decimal.Zero
		case remaining.IsPositive():
			pos.Quantity = remaining
		default:
			pos.Side = sideToPositionSide(side)
			pos.Quantity = remaining.Abs()
			pos.EntryPrice = price
		}
	}
}

func sideToPositionSide(side types.OrderSide) types.PositionSide {
	if side == types.SideBuy {
		return types.PositionLong
	}
	return types.PositionShort
}

func (s *scriptedExchange) CreateListenKey(ctx context.Context) (string, error) { return "demo-key", nil }
func (s *scriptedExchange) ExtendListenKey(ctx context.Context) error          { return nil }
func (s *scriptedExchange) DeleteListenKey(ctx context.Context) error          { return nil }

func (s *scriptedExchange) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []exchange.Balance{
		{
			Asset:               "USDT",
			WalletBalance:       s.walletUSDT,
			AvailableBalance:    s.walletUSDT,
			CrossWalletBalance:  s.walletUSDT,
		},
	}, nil
}

func (s *scriptedExchange) GetPosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position.Quantity.IsZero() {
		return nil, nil
	}
	pos := s.position
	return &pos, nil
}

func (s *scriptedExchange) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]exchange.Order, len(s.openOrders))
	copy(out, s.openOrders)
	return out, nil
}

func (s *scriptedExchange) GetTrades(ctx context.Context, symbol string, limit int, startTimeMs int64) ([]exchange.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []exchange.Trade
	for _, t := range s.trades {
		if startTimeMs > 0 && t.TradeTime.UnixMilli() < startTimeMs {
			continue
		}
		out = append(out, t)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *scriptedExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	return nil, fmt.Errorf("scripted exchange: order placement not supported in demo harness")
}

func (s *scriptedExchange) CancelOrder(ctx context.Context, symbol, orderID, clientOrderID string) (*exchange.Order, error) {
	return nil, fmt.Errorf("scripted exchange: cancel not supported in demo harness")
}

func (s *scriptedExchange) CancelAllOrders(ctx context.Context, symbol string) (int, error) {
	return 0, nil
}

func (s *scriptedExchange) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}
