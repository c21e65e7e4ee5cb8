package projector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/eventlog"
)

func tradeExecutedPayload(side, qty, price, realizedPnL, commission string) map[string]any {
	return map[string]any{
		"symbol":       "BTCUSDT",
		"side":         side,
		"qty":          qty,
		"price":        price,
		"realized_pnl": realizedPnL,
		"commission":   commission,
	}
}

func TestPositionSession_EntryAddThenFullExit(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	scope := testScope("BTCUSDT")
	p := New(st)

	appendEvent(t, log, eventlog.TradeExecuted, scope, "dedup-t1", tradeExecutedPayload("BUY", "1", "50000", "0", "5"))
	_, err := p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	var sessionID, tradeCount string
	row := st.DB().QueryRow(`SELECT session_id, closed_at, trade_count FROM position_session WHERE symbol = 'BTCUSDT'`)
	var closedAt *string
	require.NoError(t, row.Scan(&sessionID, &closedAt, &tradeCount))
	assert.Nil(t, closedAt)
	assert.Equal(t, "1", tradeCount)

	// Add to the long position.
	appendEvent(t, log, eventlog.TradeExecuted, scope, "dedup-t2", tradeExecutedPayload("BUY", "0.5", "51000", "0", "2"))
	_, err = p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	var qtyAfter string
	row = st.DB().QueryRow(`SELECT position_qty_after FROM position_trade WHERE session_id = ? ORDER BY id DESC LIMIT 1`, sessionID)
	require.NoError(t, row.Scan(&qtyAfter))
	assert.Equal(t, "1.5", qtyAfter)

	// Fully exit: sell the whole 1.5.
	appendEvent(t, log, eventlog.TradeExecuted, scope, "dedup-t3", tradeExecutedPayload("SELL", "1.5", "52000", "1000", "3"))
	_, err = p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	row = st.DB().QueryRow(`SELECT closed_at, realized_pnl, trade_count FROM position_session WHERE session_id = ?`, sessionID)
	var realizedPnL string
	var closedAtFinal *string
	require.NoError(t, row.Scan(&closedAtFinal, &realizedPnL, &tradeCount))
	require.NotNil(t, closedAtFinal)
	assert.Equal(t, "1000", realizedPnL)
	assert.Equal(t, "3", tradeCount)

	// A subsequent trade opens a brand new session rather than reusing the closed one.
	appendEvent(t, log, eventlog.TradeExecuted, scope, "dedup-t4", tradeExecutedPayload("SELL", "1", "53000", "0", "1"))
	_, err = p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	var count int
	row = st.DB().QueryRow(`SELECT COUNT(*) FROM position_session WHERE symbol = 'BTCUSDT'`)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 2, count)
}

func TestPositionSession_PartialReduceKeepsSessionOpen(t *testing.T) {
	st := newTestStore(t)
	log := eventlog.New(st)
	scope := testScope("ETHUSDT")
	p := New(st)

	appendEvent(t, log, eventlog.TradeExecuted, scope, "dedup-e1", tradeExecutedPayload("SELL", "3", "2000", "0", "1"))
	_, err := p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	appendEvent(t, log, eventlog.TradeExecuted, scope, "dedup-e2", tradeExecutedPayload("BUY", "1", "1900", "150", "1"))
	_, err = p.ApplyPending(config.DefaultProjectorBatchSize)
	require.NoError(t, err)

	var closedAt *string
	var qtyAfter string
	row := st.DB().QueryRow(`SELECT closed_at FROM position_session WHERE symbol = 'ETHUSDT'`)
	require.NoError(t, row.Scan(&closedAt))
	assert.Nil(t, closedAt)

	row = st.DB().QueryRow(`SELECT position_qty_after FROM position_trade WHERE action = 'REDUCE'`)
	require.NoError(t, row.Scan(&qtyAfter))
	assert.Equal(t, "2", qtyAfter)
}
