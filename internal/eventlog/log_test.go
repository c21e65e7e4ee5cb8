package eventlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/ledger-core/internal/storage"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	st, err := storage.New(&storage.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st)
}

func sampleEvent(dedupKey string) *Event {
	return &Event{
		EventType:     TradeExecuted,
		Source:        types.SourceWebSocket,
		EntityKind:    types.EntityTrade,
		EntityID:      "12345",
		Scope:         types.Default("BTCUSDT"),
		CorrelationID: "corr-1",
		DedupKey:      dedupKey,
		Payload:       map[string]any{"qty": "1.0"},
	}
}

// TestAppend_DeduplicatesByKey confirms the append-once invariant: a second
// event with the same dedup key is silently rejected, not an error, and the
// first event's seq is unaffected.
func TestAppend_DeduplicatesByKey(t *testing.T) {
	log := newTestLog(t)

	first := sampleEvent("exch:venue:sym:trade:1")
	stored, err := log.Append(first)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.NotZero(t, first.Seq)

	second := sampleEvent("exch:venue:sym:trade:1")
	stored, err = log.Append(second)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Zero(t, second.Seq)

	count, err := log.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAppend_AssignsMonotonicSeq(t *testing.T) {
	log := newTestLog(t)

	e1 := sampleEvent("k1")
	e2 := sampleEvent("k2")
	_, err := log.Append(e1)
	require.NoError(t, err)
	_, err = log.Append(e2)
	require.NoError(t, err)

	assert.Equal(t, e1.Seq+1, e2.Seq)
}

func TestGetSince_ReturnsAscendingOrder(t *testing.T) {
	log := newTestLog(t)
	for i := 0; i < 3; i++ {
		_, err := log.Append(sampleEvent(string(rune('a' + i))))
		require.NoError(t, err)
	}

	events, err := log.GetSince(0, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].Seq, events[i].Seq)
	}
}

func TestGetByType_FiltersByEventType(t *testing.T) {
	log := newTestLog(t)
	trade := sampleEvent("trade-key")
	_, err := log.Append(trade)
	require.NoError(t, err)

	other := sampleEvent("engine-key")
	other.EventType = EngineStarted
	_, err = log.Append(other)
	require.NoError(t, err)

	events, err := log.GetByType(TradeExecuted, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TradeExecuted, events[0].EventType)
}

func TestAppend_RoundTripsPayload(t *testing.T) {
	log := newTestLog(t)
	e := sampleEvent("payload-key")
	_, err := log.Append(e)
	require.NoError(t, err)

	fetched, err := log.GetSince(0, 10)
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, "1.0", fetched[0].Payload["qty"])
	assert.Equal(t, e.Scope.Symbol, fetched[0].Scope.Symbol)
	assert.WithinDuration(t, e.TS, fetched[0].TS, time.Millisecond)
}

func TestIsNonFinancial(t *testing.T) {
	assert.True(t, IsNonFinancial(EngineStarted))
	assert.True(t, IsNonFinancial(OrderPlaced))
	assert.True(t, IsNonFinancial(DepositInitiated))
	assert.False(t, IsNonFinancial(DepositCompleted))
	assert.False(t, IsNonFinancial(TradeExecuted))
	assert.False(t, IsNonFinancial(BalanceChanged))
}
