package projector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/storage"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

func newTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	st, err := storage.New(&storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testScope(symbol string) types.Scope {
	return types.NewScope(config.ExchangeBinance, config.VenueFutures, "acct-1", symbol, config.ModeTestnet)
}

func appendEvent(t *testing.T, log *eventlog.Log, eventType eventlog.EventType, scope types.Scope, dedupKey string, payload map[string]any) *eventlog.Event {
	t.Helper()
	e := &eventlog.Event{
		TS:            time.Now().UTC(),
		EventType:     eventType,
		Source:        types.SourceWebSocket,
		EntityKind:    types.EntityOrder,
		EntityID:      "entity-1",
		Scope:         scope,
		CorrelationID: "corr-1",
		DedupKey:      dedupKey,
		Payload:       payload,
	}
	ok, err := log.Append(e)
	require.NoError(t, err)
	require.True(t, ok)
	return e
}

func TestApplyPending_BalanceChanged(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	scope := testScope("")

	appendEvent(t, log, eventlog.BalanceChanged, scope, "dedup-1", map[string]any{
		"asset":          "USDT",
		"wallet_balance": "1000",
		"available_balance": "900",
	})

	p := New(st)
	n, err := p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	bal, err := p.GetBalance(scope, "USDT")
	require.NoError(t, err)
	require.NotNil(t, bal)
	assert.Equal(t, "900", bal.Free)
	assert.Equal(t, "100", bal.Locked)
}

func TestApplyPending_PositionChanged_FlatAndLong(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	scope := testScope("BTCUSDT")

	appendEvent(t, log, eventlog.PositionChanged, scope, "dedup-pos-1", map[string]any{
		"symbol":          "BTCUSDT",
		"position_amount": "1.5",
		"entry_price":     "50000",
		"unrealized_pnl":  "100",
		"leverage":        float64(10),
	})

	p := New(st)
	_, err := p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	pos, err := p.GetPosition(scope, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, "LONG", pos.Side.String)
	assert.Equal(t, "1.5", pos.Qty)

	appendEvent(t, log, eventlog.PositionChanged, scope, "dedup-pos-2", map[string]any{
		"symbol":          "BTCUSDT",
		"position_amount": "-2",
		"entry_price":     "51000",
	})
	_, err = p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	pos, err = p.GetPosition(scope, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "SHORT", pos.Side.String)
	assert.Equal(t, "2", pos.Qty)
}

func TestApplyPending_OrderLifecycle(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	scope := testScope("BTCUSDT")

	appendEvent(t, log, eventlog.OrderPlaced, scope, "dedup-order-1", map[string]any{
		"exchange_order_id": "1001",
		"side":              "BUY",
		"order_type":        "LIMIT",
		"original_qty":      "1",
		"price":             "50000",
		"order_status":      "NEW",
	})

	p := New(st)
	_, err := p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	open, err := p.GetOpenOrders(scope, "")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "1001", open[0].ExchangeOrderID)

	appendEvent(t, log, eventlog.OrderUpdated, scope, "dedup-order-2", map[string]any{
		"exchange_order_id": "1001",
		"order_status":      "FILLED",
		"executed_qty":      "1",
	})
	_, err = p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	open, err = p.GetOpenOrders(scope, "")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestApplyPending_NoHandlerStillAdvancesCheckpoint(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	scope := testScope("")

	appendEvent(t, log, eventlog.EngineStarted, scope, "dedup-engine-1", map[string]any{})

	p := New(st)
	n, err := p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)
	assert.Equal(t, 0, n) // no handler matched, so nothing counted as processed

	seq, err := p.getCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq) // but the checkpoint still advanced past it
}

func TestApplyPending_HandlerFailureDoesNotAdvanceCheckpoint(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	scope := testScope("")

	// PositionChanged with no symbol anywhere fails the handler.
	appendEvent(t, log, eventlog.PositionChanged, scope, "dedup-bad-1", map[string]any{})

	p := New(st)
	n, err := p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	seq, err := p.getCheckpoint()
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq) // checkpoint must not advance past a handler failure

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.ErrorCount)
}

func TestRebuild_ReplaysFromScratch(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	scope := testScope("")

	appendEvent(t, log, eventlog.BalanceChanged, scope, "dedup-r1", map[string]any{
		"asset": "USDT", "wallet_balance": "500",
	})

	p := New(st)
	_, err := p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	n, err := p.Rebuild(config.DefaultProjectorBatchSize)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	bal, err := p.GetBalance(scope, "USDT")
	require.NoError(t, err)
	require.NotNil(t, bal)
	assert.Equal(t, "500", bal.Free)
}
