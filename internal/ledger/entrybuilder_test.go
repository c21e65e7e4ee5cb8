package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/storage"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := storage.New(&storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ls, err := New(st)
	require.NoError(t, err)
	return ls
}

func tradeEvent(t *testing.T, payload map[string]any) *eventlog.Event {
	t.Helper()
	return &eventlog.Event{
		EventID:   "evt-1",
		TS:        time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		EventType: eventlog.TradeExecuted,
		Scope:     types.Default("BTCUSDT"),
		Payload:   payload,
	}
}

// TestBuildTrade_BuyWithCommission matches the four-line fixture: qty 0.001
// BTC @ 45000 with a 0.045 USDT commission nets 45.045 USDT on each side.
func TestBuildTrade_BuyWithCommission(t *testing.T) {
	store := newTestStore(t)
	rates := NewRateSource(nil)
	rates.SetLiveRate("BTC", decimal.RequireFromString("45000"))
	builder := NewBuilder(store, time.Time{}, rates)

	e := tradeEvent(t, map[string]any{
		"side":              "BUY",
		"qty":               "0.001",
		"price":             "45000",
		"base_asset":        "BTC",
		"quote_asset":       "USDT",
		"commission":        "0.045",
		"commission_asset":  "USDT",
		"maker":             false,
	})

	entry, err := builder.Build(e)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.IsBalanced())
	assert.Len(t, entry.Lines, 4)

	debitTotal := entry.DebitTotal()
	creditTotal := entry.CreditTotal()
	assert.True(t, debitTotal.Equal(decimal.RequireFromString("45.045")), "debit total: %s", debitTotal)
	assert.True(t, creditTotal.Equal(decimal.RequireFromString("45.045")), "credit total: %s", creditTotal)
}

func TestBuildTrade_SellNoCommission(t *testing.T) {
	store := newTestStore(t)
	rates := NewRateSource(nil)
	rates.SetLiveRate("ETH", decimal.RequireFromString("100"))
	builder := NewBuilder(store, time.Time{}, rates)

	e := tradeEvent(t, map[string]any{
		"side":       "SELL",
		"qty":        "0.5",
		"price":      "100",
		"base_asset": "ETH",
	})

	entry, err := builder.Build(e)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Len(t, entry.Lines, 2)
	assert.True(t, entry.IsBalanced())
}

// TestBuildBalanceChanged_NoDelta confirms that a BalanceChanged with no
// delta field produces no journal entry.
func TestBuildBalanceChanged_NoDelta(t *testing.T) {
	store := newTestStore(t)
	builder := NewBuilder(store, time.Time{}, NewRateSource(nil))

	e := &eventlog.Event{
		EventID:   "evt-2",
		TS:        time.Now().UTC(),
		EventType: eventlog.BalanceChanged,
		Scope:     types.Default(""),
		Payload:   map[string]any{"asset": "USDT"},
	}

	entry, err := builder.Build(e)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestBuildBalanceChanged_ZeroDelta(t *testing.T) {
	store := newTestStore(t)
	builder := NewBuilder(store, time.Time{}, NewRateSource(nil))

	e := &eventlog.Event{
		EventID:   "evt-3",
		TS:        time.Now().UTC(),
		EventType: eventlog.BalanceChanged,
		Scope:     types.Default(""),
		Payload:   map[string]any{"asset": "USDT", "delta": "0"},
	}

	entry, err := builder.Build(e)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestBuildBalanceChanged_WithDelta(t *testing.T) {
	store := newTestStore(t)
	builder := NewBuilder(store, time.Time{}, NewRateSource(nil))

	e := &eventlog.Event{
		EventID:   "evt-4",
		TS:        time.Now().UTC(),
		EventType: eventlog.BalanceChanged,
		Scope:     types.Default(""),
		Payload:   map[string]any{"asset": "USDT", "delta": "10.5"},
	}

	entry, err := builder.Build(e)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.IsBalanced())
	assert.Equal(t, TxAdjustment, entry.TransactionType)
}

func TestBuild_NonFinancialEventSkipped(t *testing.T) {
	store := newTestStore(t)
	builder := NewBuilder(store, time.Time{}, NewRateSource(nil))

	e := &eventlog.Event{
		EventID:   "evt-5",
		TS:        time.Now().UTC(),
		EventType: eventlog.EngineStarted,
		Scope:     types.Default(""),
		Payload:   map[string]any{},
	}

	entry, err := builder.Build(e)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestBuild_EpochFiltersPreEpochEvents(t *testing.T) {
	store := newTestStore(t)
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	builder := NewBuilder(store, epoch, NewRateSource(nil))

	e := tradeEvent(t, map[string]any{
		"side":       "BUY",
		"qty":        "1",
		"price":      "1",
		"base_asset": "BTC",
	})
	e.TS = epoch.Add(-time.Hour)

	entry, err := builder.Build(e)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestBuild_InitialCapitalIgnoresEpoch(t *testing.T) {
	store := newTestStore(t)
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	builder := NewBuilder(store, epoch, NewRateSource(nil))

	e := &eventlog.Event{
		EventID:   "evt-6",
		TS:        epoch.Add(-time.Hour),
		EventType: eventlog.InitialCapitalEstablished,
		Scope:     types.Default(""),
		Payload: map[string]any{
			"balances": map[string]any{"USDT": "1000", "BTC": "0.01"},
		},
	}

	entry, err := builder.Build(e)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.IsBalanced())
}

func TestBuild_UnknownEventTypeGoesToSuspense(t *testing.T) {
	store := newTestStore(t)
	builder := NewBuilder(store, time.Time{}, NewRateSource(nil))

	e := &eventlog.Event{
		EventID:   "evt-7",
		TS:        time.Now().UTC(),
		EventType: eventlog.PositionChanged,
		Scope:     types.Default("BTCUSDT"),
		Payload:   map[string]any{},
	}

	entry, err := builder.Build(e)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, TxUnknown, entry.TransactionType)
	assert.True(t, entry.IsBalanced())
}

func TestRateSource_FixedThenLiveThenHistoricalThenFallback(t *testing.T) {
	calledHistorical := false
	historical := func(asset string, at time.Time) (decimal.Decimal, error) {
		calledHistorical = true
		return decimal.RequireFromString("2"), nil
	}
	rs := NewRateSource(historical)

	usdt := rs.Resolve("USDT", time.Now())
	assert.Equal(t, "fixed", usdt.source)
	assert.True(t, usdt.rate.Equal(decimal.NewFromInt(1)))

	btc := rs.Resolve("BTC", time.Now())
	assert.Equal(t, "historical", btc.source)
	assert.True(t, calledHistorical)

	rs.SetLiveRate("BTC", decimal.RequireFromString("50000"))
	btcLive := rs.Resolve("BTC", time.Now())
	assert.Equal(t, "live", btcLive.source)
	assert.True(t, btcLive.rate.Equal(decimal.RequireFromString("50000")))

	rsNoHistorical := NewRateSource(nil)
	eth := rsNoHistorical.Resolve("ETH", time.Now())
	assert.Equal(t, "fallback", eth.source)
	assert.True(t, eth.rate.Equal(decimal.NewFromInt(1)))

	_ = config.ExchangeBinance
}
