package exchange

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klingon-exchange/ledger-core/internal/config"
)

// RateLimitTracker tracks Binance's used-weight and order-count headers and
// evaluates them against config.DefaultRateLimitThresholds to decide whether
// the REST client should warn, slow down, or stop issuing new requests.
type RateLimitTracker struct {
	mu           sync.RWMutex
	usedWeight1m int
	orderCount1m int
	retryAfter   int
	lastUpdated  time.Time
	thresholds   config.RateLimitThresholds
}

// NewRateLimitTracker constructs a tracker against the standard thresholds.
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{thresholds: config.DefaultRateLimitThresholds()}
}

// UpdateFromHeaders extracts Binance's X-MBX-USED-WEIGHT-1M,
// X-MBX-ORDER-COUNT-1M, and Retry-After headers (case-insensitive keys).
// Unparseable or absent values leave the corresponding field unchanged.
func (t *RateLimitTracker) UpdateFromHeaders(headers map[string]string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for k, v := range headers {
		switch strings.ToLower(k) {
		case "x-mbx-used-weight-1m":
			if n, err := strconv.Atoi(v); err == nil {
				t.usedWeight1m = n
			}
		case "x-mbx-order-count-1m":
			if n, err := strconv.Atoi(v); err == nil {
				t.orderCount1m = n
			}
		case "retry-after":
			if n, err := strconv.Atoi(v); err == nil {
				t.retryAfter = n
			}
		}
	}
	t.lastUpdated = now
}

// UsedWeight1m returns the most recently observed 1-minute used weight.
func (t *RateLimitTracker) UsedWeight1m() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usedWeight1m
}

// ShouldWarn reports whether used weight has crossed the warn threshold.
func (t *RateLimitTracker) ShouldWarn() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usedWeight1m >= t.thresholds.WeightWarn
}

// ShouldSlowDown reports whether the client should throttle its own request
// rate to avoid a 429.
func (t *RateLimitTracker) ShouldSlowDown() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usedWeight1m >= t.thresholds.WeightSlow
}

// ShouldStop reports whether the client must stop issuing new requests
// outright until the next minute window.
func (t *RateLimitTracker) ShouldStop() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.usedWeight1m >= t.thresholds.WeightStop
}

// RemainingWeight returns the budget left before ShouldStop trips.
func (t *RateLimitTracker) RemainingWeight() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	remaining := t.thresholds.WeightStop - t.usedWeight1m
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter returns the most recently observed Retry-After duration, zero
// if none has been reported.
func (t *RateLimitTracker) RetryAfter() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return time.Duration(t.retryAfter) * time.Second
}

// Reset clears the counters, used when the client detects the minute window
// has rolled over without a fresh header update.
func (t *RateLimitTracker) Reset(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usedWeight1m = 0
	t.orderCount1m = 0
	t.retryAfter = 0
	t.lastUpdated = now
}

// Snapshot is a point-in-time copy of the tracker state, for logging.
type Snapshot struct {
	UsedWeight1m   int
	OrderCount1m   int
	RetryAfter     int
	ShouldWarn     bool
	ShouldSlowDown bool
	ShouldStop     bool
}

// Snapshot returns the current tracker state.
func (t *RateLimitTracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		UsedWeight1m:   t.usedWeight1m,
		OrderCount1m:   t.orderCount1m,
		RetryAfter:     t.retryAfter,
		ShouldWarn:     t.usedWeight1m >= t.thresholds.WeightWarn,
		ShouldSlowDown: t.usedWeight1m >= t.thresholds.WeightSlow,
		ShouldStop:     t.usedWeight1m >= t.thresholds.WeightStop,
	}
}
