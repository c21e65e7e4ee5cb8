package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// HistoricalRateFunc looks up an asset's USDT close price from the
// exchange's 1-minute candle ending at or before at. Implementations live
// outside the ledger core (the exchange collaborator); nil is a valid value
// meaning no historical source is wired.
type HistoricalRateFunc func(asset string, at time.Time) (decimal.Decimal, error)

// RateSource resolves an asset's USDT-equivalent rate at a point in time,
// following the four-tier priority from the entry builder's valuation step:
// USDT is always 1; then an in-process live-ticker cache; then a historical
// candle lookup; then a logged fallback to 1.
type RateSource struct {
	mu         sync.RWMutex
	liveRates  map[string]decimal.Decimal
	historical HistoricalRateFunc
}

// NewRateSource constructs a RateSource. historical may be nil.
func NewRateSource(historical HistoricalRateFunc) *RateSource {
	return &RateSource{
		liveRates:  make(map[string]decimal.Decimal),
		historical: historical,
	}
}

// SetLiveRate populates the in-process cache from a live ticker feed.
func (r *RateSource) SetLiveRate(asset string, rate decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveRates[asset] = rate
}

// rateResult names which tier produced a rate, purely for logging.
type rateResult struct {
	rate   decimal.Decimal
	source string
}

// Resolve returns the asset's USDT rate at the given time, and the tier
// that produced it (for warning logs on fallback).
func (r *RateSource) Resolve(asset string, at time.Time) rateResult {
	if asset == "USDT" {
		return rateResult{rate: decimal.NewFromInt(1), source: "fixed"}
	}

	r.mu.RLock()
	live, ok := r.liveRates[asset]
	r.mu.RUnlock()
	if ok {
		return rateResult{rate: live, source: "live"}
	}

	if r.historical != nil {
		if rate, err := r.historical(asset, at); err == nil {
			return rateResult{rate: rate, source: "historical"}
		}
	}

	return rateResult{rate: decimal.NewFromInt(1), source: "fallback"}
}
