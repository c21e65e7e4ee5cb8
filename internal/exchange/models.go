// Package exchange defines the venue-agnostic collaborator surface the
// engine drives: REST and WebSocket client interfaces, their wire-neutral
// domain models, a notifier interface, and the Binance rate-limit tracker.
// A concrete Binance (or any other venue) implementation lives outside this
// package and is injected at wiring time.
package exchange

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/types"
)

// Balance is one asset's wallet snapshot from the exchange.
type Balance struct {
	Asset               string
	WalletBalance       decimal.Decimal
	AvailableBalance    decimal.Decimal
	CrossWalletBalance  decimal.Decimal
	UnrealizedPnL       decimal.Decimal
}

// Total returns the wallet balance plus unrealized P&L.
func (b Balance) Total() decimal.Decimal {
	return b.WalletBalance.Add(b.UnrealizedPnL)
}

// Position is one symbol's open futures position.
type Position struct {
	Symbol           string
	Side             types.PositionSide
	Quantity         decimal.Decimal
	EntryPrice       decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	Leverage         int
	MarginType       string
	LiquidationPrice *decimal.Decimal
	MarkPrice        *decimal.Decimal
}

// IsLong reports whether this position is long.
func (p Position) IsLong() bool { return p.Side == types.PositionLong }

// IsShort reports whether this position is short.
func (p Position) IsShort() bool { return p.Side == types.PositionShort }

// Notional returns quantity times entry price.
func (p Position) Notional() decimal.Decimal { return p.Quantity.Mul(p.EntryPrice) }

// Order is an exchange order report.
type Order struct {
	OrderID       string
	ClientOrderID string
	Symbol        string
	Side          types.OrderSide
	OrderType     types.OrderType
	Status        types.OrderStatus
	OriginalQty   decimal.Decimal
	ExecutedQty   decimal.Decimal
	Price         *decimal.Decimal
	AvgPrice      *decimal.Decimal
	StopPrice     *decimal.Decimal
	TimeInForce   types.TimeInForce
	ReduceOnly    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RemainingQty returns the unfilled quantity.
func (o Order) RemainingQty() decimal.Decimal { return o.OriginalQty.Sub(o.ExecutedQty) }

// IsFilled reports whether the order is fully filled.
func (o Order) IsFilled() bool { return o.Status == types.OrderStatusFilled }

// IsOpen reports whether the order is still resting (NEW or PARTIALLY_FILLED).
func (o Order) IsOpen() bool {
	return o.Status == types.OrderStatusNew || o.Status == types.OrderStatusPartiallyFilled
}

// IsCancelled reports whether the order was cancelled.
func (o Order) IsCancelled() bool { return o.Status == types.OrderStatusCanceled }

// Trade is one fill report.
type Trade struct {
	TradeID         string
	OrderID         string
	ClientOrderID   string
	Symbol          string
	Side            types.OrderSide
	Quantity        decimal.Decimal
	Price           decimal.Decimal
	QuoteQty        decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
	RealizedPnL     decimal.Decimal
	IsMaker         bool
	TradeTime       time.Time
}

// OrderRequest is the engine's order intent, validated before being handed
// to an ExchangeRestClient implementation.
type OrderRequest struct {
	Symbol        string
	Side          types.OrderSide
	OrderType     types.OrderType
	Quantity      decimal.Decimal
	Price         *decimal.Decimal
	StopPrice     *decimal.Decimal
	ClientOrderID string
	TimeInForce   types.TimeInForce
	ReduceOnly    bool
	PositionSide  *types.PositionSide
}

var stopOrderTypes = map[types.OrderType]bool{
	types.OrderTypeStopMarket:    true,
	types.OrderTypeTakeProfitMkt: true,
	types.OrderTypeStop:          true,
	types.OrderTypeTakeProfit:    true,
}

// Validate enforces the same invariants as the original request constructor:
// positive quantity, a price for LIMIT orders, a stop price for STOP-family
// orders.
func (r OrderRequest) Validate() error {
	if r.Quantity.Sign() <= 0 {
		return errQuantityNotPositive
	}
	if r.OrderType == types.OrderTypeLimit && r.Price == nil {
		return errLimitNeedsPrice
	}
	if stopOrderTypes[r.OrderType] && r.StopPrice == nil {
		return errStopNeedsStopPrice
	}
	return nil
}

// MarketOrder builds a MARKET OrderRequest.
func MarketOrder(symbol string, side types.OrderSide, qty decimal.Decimal, reduceOnly bool) OrderRequest {
	return OrderRequest{Symbol: symbol, Side: side, OrderType: types.OrderTypeMarket, Quantity: qty, ReduceOnly: reduceOnly, TimeInForce: types.TIFGoodTilCancel}
}

// LimitOrder builds a LIMIT OrderRequest.
func LimitOrder(symbol string, side types.OrderSide, qty, price decimal.Decimal, tif types.TimeInForce) OrderRequest {
	return OrderRequest{Symbol: symbol, Side: side, OrderType: types.OrderTypeLimit, Quantity: qty, Price: &price, TimeInForce: tif}
}

// StopMarketOrder builds a reduce-only STOP_MARKET OrderRequest (a stop-loss).
func StopMarketOrder(symbol string, side types.OrderSide, qty, stopPrice decimal.Decimal) OrderRequest {
	return OrderRequest{Symbol: symbol, Side: side, OrderType: types.OrderTypeStopMarket, Quantity: qty, StopPrice: &stopPrice, ReduceOnly: true, TimeInForce: types.TIFGoodTilCancel}
}
