package eventlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTradeDedupKey(t *testing.T) {
	assert.Equal(t, "BINANCE:FUTURES:BTCUSDT:trade:999", TradeDedupKey("BINANCE", "FUTURES", "BTCUSDT", "999"))
}

func TestOrderStateDedupKey(t *testing.T) {
	assert.Equal(t, "BINANCE:FUTURES:BTCUSDT:order:42", OrderStateDedupKey("BINANCE", "FUTURES", "BTCUSDT", "42"))
}

func TestOrderPollDedupKey(t *testing.T) {
	assert.Equal(t, "BINANCE:FUTURES:BTCUSDT:order:42:state:1700000000000",
		OrderPollDedupKey("BINANCE", "FUTURES", "BTCUSDT", "42", 1700000000000))
}

func TestBalanceWsDedupKey(t *testing.T) {
	assert.Equal(t, "BINANCE:FUTURES:acct1:USDT:balance:1700000000000",
		BalanceWsDedupKey("BINANCE", "FUTURES", "acct1", "USDT", 1700000000000))
}

func TestBalanceRestDedupKey(t *testing.T) {
	assert.Equal(t, "BINANCE:FUTURES:acct1:USDT:balance:1700000000000",
		BalanceRestDedupKey("BINANCE", "FUTURES", "acct1", "USDT", 1700000000000))
}

// TestDriftDedupKey_BucketsToMinute confirms two timestamps within the same
// minute collapse to an identical key, and a timestamp a minute later does
// not.
func TestDriftDedupKey_BucketsToMinute(t *testing.T) {
	t1 := time.Date(2026, 1, 15, 12, 30, 5, 0, time.UTC)
	t2 := time.Date(2026, 1, 15, 12, 30, 55, 0, time.UTC)
	t3 := time.Date(2026, 1, 15, 12, 31, 5, 0, time.UTC)

	k1 := DriftDedupKey("BINANCE", "FUTURES", "BTCUSDT", "balance", t1)
	k2 := DriftDedupKey("BINANCE", "FUTURES", "BTCUSDT", "balance", t2)
	k3 := DriftDedupKey("BINANCE", "FUTURES", "BTCUSDT", "balance", t3)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Equal(t, "BINANCE:FUTURES:BTCUSDT:balance:2026-01-15T12:30", k1)
}
