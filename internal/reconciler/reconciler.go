package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/exchange"
	"github.com/klingon-exchange/ledger-core/internal/projector"
	"github.com/klingon-exchange/ledger-core/internal/statemachine"
	"github.com/klingon-exchange/ledger-core/internal/types"
	"github.com/klingon-exchange/ledger-core/pkg/logging"
)

// Reconciler cross-checks exchange state against this core's projections on
// an adaptive cadence: config.DefaultReconcileIntervals().Normal while the
// websocket feed is healthy, Fallback once it degrades, filling gaps a
// dropped message would otherwise leave and raising DriftDetected events
// when exchange and projection disagree.
type Reconciler struct {
	rest   exchange.RestClient
	log    *eventlog.Log
	proj   *projector.Projector
	scope  types.Scope
	symbol string
	drift  *DriftDetector

	intervals config.ReconcileIntervals
	logger    *logging.Logger

	mu             sync.Mutex
	wsState        statemachine.WebSocketState
	lastReconcile  time.Time
	lastTradeTime  int64
	reconcileCount int64
	driftCount     int64
	eventCount     int64
}

// New constructs a Reconciler for one (scope, symbol) pair.
func New(rest exchange.RestClient, log *eventlog.Log, proj *projector.Projector, scope types.Scope, symbol string) *Reconciler {
	return &Reconciler{
		rest:      rest,
		log:       log,
		proj:      proj,
		scope:     scope,
		symbol:    symbol,
		drift:     NewDriftDetector(scope),
		intervals: config.DefaultReconcileIntervals(),
		logger:    logging.GetDefault().Component("reconciler"),
		wsState:   statemachine.WSDisconnected,
	}
}

// SetWsState updates the websocket state that governs PollInterval. Called
// by the engine whenever its WebSocketMachine transitions.
func (r *Reconciler) SetWsState(state statemachine.WebSocketState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.wsState != state {
		r.logger.Info("websocket state changed", "from", r.wsState, "to", state, "poll_interval", r.pollIntervalLocked())
	}
	r.wsState = state
}

// PollInterval returns the current polling cadence: Normal while the
// websocket is CONNECTED, Fallback otherwise.
func (r *Reconciler) PollInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pollIntervalLocked()
}

func (r *Reconciler) pollIntervalLocked() time.Duration {
	if r.wsState == statemachine.WSConnected {
		return r.intervals.Normal
	}
	return r.intervals.Fallback
}

// Tick runs one reconcile pass if PollInterval has elapsed since the last
// one, otherwise it is a no-op. Intended to be called frequently (e.g. every
// second) from the engine's own loop; Tick itself enforces the cadence.
func (r *Reconciler) Tick(ctx context.Context) (int, error) {
	r.mu.Lock()
	interval := r.pollIntervalLocked()
	elapsed := time.Since(r.lastReconcile)
	if elapsed < interval {
		r.mu.Unlock()
		return 0, nil
	}
	r.lastReconcile = time.Now()
	r.reconcileCount++
	r.mu.Unlock()

	count := 0

	n, err := r.reconcileTrades(ctx)
	if err != nil {
		r.logger.Error("reconcile trades failed", "err", err)
	}
	count += n

	n, err = r.checkPositionDrift(ctx)
	if err != nil {
		r.logger.Error("position drift check failed", "err", err)
	}
	count += n

	n, err = r.checkBalanceDrift(ctx)
	if err != nil {
		r.logger.Error("balance drift check failed", "err", err)
	}
	count += n

	return count, nil
}

// FullReconcile synchronizes trade history, open orders, position, and
// balances in one pass, intended to run once at startup before the engine
// begins trading.
func (r *Reconciler) FullReconcile(ctx context.Context) (int, error) {
	r.logger.Info("starting full reconcile")
	count := 0

	if n, err := r.syncTrades(ctx); err != nil {
		r.logger.Error("trade sync failed", "err", err)
	} else {
		count += n
	}
	if n, err := r.syncOpenOrders(ctx); err != nil {
		r.logger.Error("order sync failed", "err", err)
	} else {
		count += n
	}
	if n, err := r.syncPosition(ctx); err != nil {
		r.logger.Error("position sync failed", "err", err)
	} else {
		count += n
	}
	if n, err := r.syncBalances(ctx); err != nil {
		r.logger.Error("balance sync failed", "err", err)
	} else {
		count += n
	}

	r.logger.Info("full reconcile complete", "events", count)
	return count, nil
}

func (r *Reconciler) reconcileTrades(ctx context.Context) (int, error) {
	r.mu.Lock()
	startAfter := r.lastTradeTime
	r.mu.Unlock()

	var startMs int64
	if startAfter > 0 {
		startMs = startAfter + 1
	}
	trades, err := r.rest.GetTrades(ctx, r.symbol, 100, startMs)
	if err != nil {
		return 0, fmt.Errorf("get trades: %w", err)
	}
	return r.appendTrades(trades)
}

func (r *Reconciler) syncTrades(ctx context.Context) (int, error) {
	trades, err := r.rest.GetTrades(ctx, r.symbol, 500, 0)
	if err != nil {
		return 0, fmt.Errorf("get trades: %w", err)
	}
	n, err := r.appendTrades(trades)
	r.logger.Info("synced trades from history", "count", n)
	return n, err
}

func (r *Reconciler) appendTrades(trades []exchange.Trade) (int, error) {
	count := 0
	for _, trade := range trades {
		e := r.tradeEvent(trade)
		saved, err := r.log.Append(e)
		if err != nil {
			return count, fmt.Errorf("append trade event: %w", err)
		}
		if saved {
			count++
			r.mu.Lock()
			r.eventCount++
			r.mu.Unlock()
		}

		tradeMs := trade.TradeTime.UnixMilli()
		r.mu.Lock()
		if tradeMs > r.lastTradeTime {
			r.lastTradeTime = tradeMs
		}
		r.mu.Unlock()
	}
	return count, nil
}

func (r *Reconciler) syncOpenOrders(ctx context.Context) (int, error) {
	orders, err := r.rest.GetOpenOrders(ctx, r.symbol)
	if err != nil {
		return 0, fmt.Errorf("get open orders: %w", err)
	}
	count := 0
	for _, o := range orders {
		saved, err := r.log.Append(r.orderEvent(o))
		if err != nil {
			return count, fmt.Errorf("append order event: %w", err)
		}
		if saved {
			count++
		}
	}
	r.logger.Info("synced open orders", "total", len(orders), "new_events", count)
	return count, nil
}

func (r *Reconciler) syncPosition(ctx context.Context) (int, error) {
	pos, err := r.rest.GetPosition(ctx, r.symbol)
	if err != nil {
		return 0, fmt.Errorf("get position: %w", err)
	}
	if pos == nil {
		return 0, nil
	}
	saved, err := r.log.Append(r.positionEvent(*pos))
	if err != nil {
		return 0, fmt.Errorf("append position event: %w", err)
	}
	if saved {
		r.logger.Info("synced position", "symbol", r.symbol, "side", pos.Side, "qty", pos.Quantity.String())
		return 1, nil
	}
	return 0, nil
}

func (r *Reconciler) syncBalances(ctx context.Context) (int, error) {
	balances, err := r.rest.GetBalances(ctx)
	if err != nil {
		return 0, fmt.Errorf("get balances: %w", err)
	}
	count := 0
	for _, b := range balances {
		saved, err := r.log.Append(r.balanceEvent(b))
		if err != nil {
			return count, fmt.Errorf("append balance event: %w", err)
		}
		if saved {
			count++
		}
	}
	r.logger.Info("synced balances", "total", len(balances), "new_events", count)
	return count, nil
}

func (r *Reconciler) checkPositionDrift(ctx context.Context) (int, error) {
	exchPos, err := r.rest.GetPosition(ctx, r.symbol)
	if err != nil {
		return 0, fmt.Errorf("get position: %w", err)
	}
	projPos, err := r.proj.GetPosition(r.scope.WithSymbol(r.symbol), r.symbol)
	if err != nil {
		return 0, fmt.Errorf("get projected position: %w", err)
	}

	drift := r.drift.DetectPositionDrift(exchPos, projPos, r.symbol)
	if drift == nil {
		return 0, nil
	}
	return r.recordDrift(*drift)
}

func (r *Reconciler) checkBalanceDrift(ctx context.Context) (int, error) {
	balances, err := r.rest.GetBalances(ctx)
	if err != nil {
		return 0, fmt.Errorf("get balances: %w", err)
	}
	var usdt *exchange.Balance
	for i := range balances {
		if balances[i].Asset == "USDT" {
			usdt = &balances[i]
			break
		}
	}
	if usdt == nil {
		return 0, nil
	}

	projBal, err := r.proj.GetBalance(r.scope, "USDT")
	if err != nil {
		return 0, fmt.Errorf("get projected balance: %w", err)
	}

	drift := r.drift.DetectBalanceDrift(*usdt, projBal)
	if drift == nil {
		return 0, nil
	}
	return r.recordDrift(*drift)
}

func (r *Reconciler) recordDrift(drift Drift) (int, error) {
	r.mu.Lock()
	r.driftCount++
	r.mu.Unlock()

	event := r.drift.NewDriftEvent(drift, time.Now())
	saved, err := r.log.Append(event)
	if err != nil {
		return 0, fmt.Errorf("append drift event: %w", err)
	}
	if saved {
		r.logger.Warn(fmt.Sprintf("%s drift detected", drift.Kind), "description", drift.Description)
		return 1, nil
	}
	return 0, nil
}

func (r *Reconciler) tradeEvent(trade exchange.Trade) *eventlog.Event {
	scope := r.scope.WithSymbol(r.symbol)
	return &eventlog.Event{
		TS:            trade.TradeTime,
		EventType:     eventlog.TradeExecuted,
		Source:        types.SourceREST,
		EntityKind:    types.EntityTrade,
		EntityID:      trade.TradeID,
		Scope:         scope,
		CorrelationID: trade.TradeID,
		DedupKey:      eventlog.TradeDedupKey(string(r.scope.Exchange), string(r.scope.Venue), r.symbol, trade.TradeID),
		Payload: map[string]any{
			"exchange_trade_id": trade.TradeID,
			"exchange_order_id": trade.OrderID,
			"symbol":            trade.Symbol,
			"side":              string(trade.Side),
			"qty":               trade.Quantity.String(),
			"price":             trade.Price.String(),
			"base_asset":        baseAsset(trade.Symbol),
			"quote_asset":       "USDT",
			"commission":        trade.Commission.String(),
			"commission_asset":  trade.CommissionAsset,
			"realized_pnl":      trade.RealizedPnL.String(),
			"maker":             trade.IsMaker,
		},
	}
}

func (r *Reconciler) orderEvent(o exchange.Order) *eventlog.Event {
	scope := r.scope.WithSymbol(r.symbol)
	nowMs := time.Now().UTC().UnixMilli()
	payload := map[string]any{
		"exchange_order_id": o.OrderID,
		"client_order_id":   o.ClientOrderID,
		"symbol":            o.Symbol,
		"side":              string(o.Side),
		"order_type":        string(o.OrderType),
		"order_status":      string(o.Status),
		"original_qty":      o.OriginalQty.String(),
		"executed_qty":      o.ExecutedQty.String(),
	}
	if o.Price != nil {
		payload["price"] = o.Price.String()
	}
	if o.StopPrice != nil {
		payload["stop_price"] = o.StopPrice.String()
	}

	return &eventlog.Event{
		TS:            time.Now(),
		EventType:     eventlog.OrderUpdated,
		Source:        types.SourceREST,
		EntityKind:    types.EntityOrder,
		EntityID:      o.OrderID,
		Scope:         scope,
		CorrelationID: o.OrderID,
		DedupKey:      eventlog.OrderPollDedupKey(string(r.scope.Exchange), string(r.scope.Venue), r.symbol, o.OrderID, nowMs),
		Payload:       payload,
	}
}

func (r *Reconciler) positionEvent(pos exchange.Position) *eventlog.Event {
	scope := r.scope.WithSymbol(r.symbol)
	nowMs := time.Now().UTC().UnixMilli()

	return &eventlog.Event{
		TS:            time.Now(),
		EventType:     eventlog.PositionChanged,
		Source:        types.SourceREST,
		EntityKind:    types.EntityPosition,
		EntityID:      r.symbol,
		Scope:         scope,
		CorrelationID: r.symbol,
		DedupKey:      fmt.Sprintf("%s:%s:%s:position:%d", r.scope.Exchange, r.scope.Venue, r.symbol, nowMs),
		Payload: map[string]any{
			"symbol":          pos.Symbol,
			"side":            string(pos.Side),
			"position_amount": pos.Quantity.String(),
			"entry_price":     pos.EntryPrice.String(),
			"unrealized_pnl":  pos.UnrealizedPnL.String(),
			"leverage":        pos.Leverage,
			"margin_type":     pos.MarginType,
		},
	}
}

func (r *Reconciler) balanceEvent(bal exchange.Balance) *eventlog.Event {
	nowMs := time.Now().UTC().UnixMilli()
	return &eventlog.Event{
		TS:            time.Now(),
		EventType:     eventlog.BalanceChanged,
		Source:        types.SourceREST,
		EntityKind:    types.EntityBalance,
		EntityID:      bal.Asset,
		Scope:         r.scope,
		CorrelationID: bal.Asset,
		DedupKey:      eventlog.BalanceRestDedupKey(string(r.scope.Exchange), string(r.scope.Venue), r.scope.AccountID, bal.Asset, nowMs),
		Payload: map[string]any{
			"asset":                bal.Asset,
			"wallet_balance":       bal.WalletBalance.String(),
			"available_balance":    bal.AvailableBalance.String(),
			"cross_wallet_balance": bal.CrossWalletBalance.String(),
		},
	}
}

// baseAsset strips a trailing USDT quote suffix from a futures symbol; every
// symbol this core trades is USDT-margined.
func baseAsset(symbol string) string {
	const quote = "USDT"
	if len(symbol) > len(quote) && symbol[len(symbol)-len(quote):] == quote {
		return symbol[:len(symbol)-len(quote)]
	}
	return symbol
}

// Stats is a point-in-time snapshot of reconciler counters.
type Stats struct {
	ReconcileCount int64
	DriftCount     int64
	EventCount     int64
	WsState        statemachine.WebSocketState
	PollInterval   time.Duration
	LastTradeTime  int64
}

// Stats returns the accumulated counters since construction.
func (r *Reconciler) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		ReconcileCount: r.reconcileCount,
		DriftCount:     r.driftCount,
		EventCount:     r.eventCount,
		WsState:        r.wsState,
		PollInterval:   r.pollIntervalLocked(),
		LastTradeTime:  r.lastTradeTime,
	}
}
