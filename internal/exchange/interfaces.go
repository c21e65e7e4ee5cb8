package exchange

import (
	"context"

	"github.com/klingon-exchange/ledger-core/internal/statemachine"
)

// RestClient is the venue-agnostic REST surface the engine and reconciler
// drive. Every amount/quantity on the returned models is a decimal.Decimal;
// implementations must never round-trip through a binary float.
type RestClient interface {
	CreateListenKey(ctx context.Context) (string, error)
	ExtendListenKey(ctx context.Context) error
	DeleteListenKey(ctx context.Context) error

	GetBalances(ctx context.Context) ([]Balance, error)
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]Order, error)
	GetTrades(ctx context.Context, symbol string, limit int, startTimeMs int64) ([]Trade, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, symbol, orderID, clientOrderID string) (*Order, error)
	CancelAllOrders(ctx context.Context, symbol string) (int, error)

	SetLeverage(ctx context.Context, symbol string, leverage int) error
}

// WsClient is the venue-agnostic user-data-stream surface. OnMessage/
// OnStateChange register callbacks invoked from the client's own read loop;
// implementations own their own reconnect/backoff policy driven by
// config.DefaultWebSocketBackoff.
type WsClient interface {
	State() statemachine.WebSocketState
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	OnMessage(func(map[string]any))
	OnStateChange(func(statemachine.WebSocketState))
}

// Notifier sends operator-facing alerts to an external channel (chat
// webhook, email, pager). Failures are swallowed by callers — a notification
// delivery failure must never interrupt trading.
type Notifier interface {
	Send(ctx context.Context, message string, level string, extra map[string]any) error
	SendTradeAlert(ctx context.Context, symbol string, side, quantity, price string, pnl string) error
}
