package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/exchange"
	"github.com/klingon-exchange/ledger-core/internal/projector"
	"github.com/klingon-exchange/ledger-core/internal/statemachine"
	"github.com/klingon-exchange/ledger-core/internal/storage"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

// fakeRest is a scripted exchange.RestClient used only to drive the
// reconciler's polling paths; it never touches the network.
type fakeRest struct {
	balances   []exchange.Balance
	position   *exchange.Position
	openOrders []exchange.Order
	trades     []exchange.Trade
}

func (f *fakeRest) CreateListenKey(ctx context.Context) (string, error) { return "key", nil }
func (f *fakeRest) ExtendListenKey(ctx context.Context) error          { return nil }
func (f *fakeRest) DeleteListenKey(ctx context.Context) error          { return nil }

func (f *fakeRest) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	return f.balances, nil
}
func (f *fakeRest) GetPosition(ctx context.Context, symbol string) (*exchange.Position, error) {
	return f.position, nil
}
func (f *fakeRest) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	return f.openOrders, nil
}
func (f *fakeRest) GetTrades(ctx context.Context, symbol string, limit int, startTimeMs int64) ([]exchange.Trade, error) {
	return f.trades, nil
}
func (f *fakeRest) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	return nil, nil
}
func (f *fakeRest) CancelOrder(ctx context.Context, symbol, orderID, clientOrderID string) (*exchange.Order, error) {
	return nil, nil
}
func (f *fakeRest) CancelAllOrders(ctx context.Context, symbol string) (int, error) { return 0, nil }
func (f *fakeRest) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return nil
}

func newTestStore(t *testing.T) *storage.Storage {
	t.Helper()
	st, err := storage.New(&storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func testScope() types.Scope {
	return types.NewScope(config.ExchangeBinance, config.VenueFutures, "acct-1", "BTCUSDT", config.ModeTestnet)
}

func TestFullReconcile_SyncsTradesOrdersPositionBalances(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	proj := projector.New(st)
	scope := testScope()

	rest := &fakeRest{
		balances: []exchange.Balance{
			{Asset: "USDT", WalletBalance: decimal.NewFromInt(1000), AvailableBalance: decimal.NewFromInt(900)},
		},
		position: &exchange.Position{
			Symbol: "BTCUSDT", Side: types.PositionLong, Quantity: decimal.NewFromFloat(1.5),
			EntryPrice: decimal.NewFromInt(50000),
		},
		openOrders: []exchange.Order{
			{OrderID: "o1", Symbol: "BTCUSDT", Side: types.SideBuy, OrderType: types.OrderTypeLimit,
				Status: types.OrderStatusNew, OriginalQty: decimal.NewFromInt(1)},
		},
		trades: []exchange.Trade{
			{TradeID: "t1", OrderID: "o1", Symbol: "BTCUSDT", Side: types.SideBuy,
				Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(50000), TradeTime: time.Now()},
		},
	}

	r := New(rest, log, proj, scope, "BTCUSDT")
	n, err := r.FullReconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = proj.ApplyAllPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	bal, err := proj.GetBalance(scope, "USDT")
	require.NoError(t, err)
	require.NotNil(t, bal)
	assert.Equal(t, "900", bal.Free)

	pos, err := proj.GetPosition(scope, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, "LONG", pos.Side.String)

	open, err := proj.GetOpenOrders(scope, "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestTick_NoOpBeforeIntervalElapses(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	proj := projector.New(st)
	scope := testScope()

	rest := &fakeRest{}
	r := New(rest, log, proj, scope, "BTCUSDT")
	r.SetWsState(statemachine.WSConnected)

	n, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)

	// Second call immediately after should be a no-op: interval hasn't elapsed.
	n2, err := r.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n2)

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.ReconcileCount)
	assert.Equal(t, config.DefaultReconcileIntervals().Normal, stats.PollInterval)
}

func TestTick_DetectsBalanceDrift(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	proj := projector.New(st)
	scope := testScope()

	rest := &fakeRest{
		balances: []exchange.Balance{
			{Asset: "USDT", WalletBalance: decimal.NewFromInt(1000), AvailableBalance: decimal.NewFromInt(800)},
		},
	}
	r := New(rest, log, proj, scope, "BTCUSDT")
	r.SetWsState(statemachine.WSDisconnected)

	_, err := r.Tick(context.Background())
	require.NoError(t, err)

	n, err := proj.ApplyAllPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 0)

	events, err := log.GetByType(eventlog.DriftDetected, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "balance", events[0].Payload["drift_kind"])

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.DriftCount)
	assert.Equal(t, config.DefaultReconcileIntervals().Fallback, stats.PollInterval)
}

func TestPollInterval_SwitchesOnWsState(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	proj := projector.New(st)
	scope := testScope()

	r := New(&fakeRest{}, log, proj, scope, "BTCUSDT")
	assert.Equal(t, config.DefaultReconcileIntervals().Fallback, r.PollInterval())

	r.SetWsState(statemachine.WSConnected)
	assert.Equal(t, config.DefaultReconcileIntervals().Normal, r.PollInterval())

	r.SetWsState(statemachine.WSReconnecting)
	assert.Equal(t, config.DefaultReconcileIntervals().Fallback, r.PollInterval())
}
