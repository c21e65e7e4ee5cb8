package exchange

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/ledger-core/internal/types"
)

func TestRateLimitTracker_Thresholds(t *testing.T) {
	tr := NewRateLimitTracker()
	now := time.Now()

	tr.UpdateFromHeaders(map[string]string{"X-MBX-USED-WEIGHT-1M": "500"}, now)
	assert.False(t, tr.ShouldWarn())

	tr.UpdateFromHeaders(map[string]string{"X-MBX-USED-WEIGHT-1M": "850"}, now)
	assert.True(t, tr.ShouldWarn())
	assert.False(t, tr.ShouldSlowDown())

	tr.UpdateFromHeaders(map[string]string{"X-MBX-USED-WEIGHT-1M": "1050"}, now)
	assert.True(t, tr.ShouldSlowDown())
	assert.False(t, tr.ShouldStop())

	tr.UpdateFromHeaders(map[string]string{"X-MBX-USED-WEIGHT-1M": "1160"}, now)
	assert.True(t, tr.ShouldStop())
	assert.Equal(t, 0, tr.RemainingWeight())
}

func TestRateLimitTracker_CaseInsensitiveHeaders(t *testing.T) {
	tr := NewRateLimitTracker()
	tr.UpdateFromHeaders(map[string]string{"retry-after": "7"}, time.Now())
	assert.Equal(t, 7*time.Second, tr.RetryAfter())
}

func TestRateLimitTracker_Reset(t *testing.T) {
	tr := NewRateLimitTracker()
	tr.UpdateFromHeaders(map[string]string{"X-MBX-USED-WEIGHT-1M": "900"}, time.Now())
	tr.Reset(time.Now())
	assert.Equal(t, 0, tr.UsedWeight1m())
}

func TestOrderRequest_Validate(t *testing.T) {
	ok := MarketOrder("BTCUSDT", types.SideBuy, decimal.RequireFromString("1"), false)
	require.NoError(t, ok.Validate())

	bad := MarketOrder("BTCUSDT", types.SideBuy, decimal.Zero, false)
	assert.Error(t, bad.Validate())

	limitMissingPrice := OrderRequest{Symbol: "BTCUSDT", Side: types.SideBuy, OrderType: types.OrderTypeLimit, Quantity: decimal.RequireFromString("1")}
	assert.Error(t, limitMissingPrice.Validate())

	stopMissingPrice := OrderRequest{Symbol: "BTCUSDT", Side: types.SideSell, OrderType: types.OrderTypeStopMarket, Quantity: decimal.RequireFromString("1")}
	assert.Error(t, stopMissingPrice.Validate())
}
