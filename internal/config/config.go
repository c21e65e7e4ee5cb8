// Package config provides centralized configuration for the ledger engine.
// ALL tunable parameters (scope defaults, rate-limit thresholds, reconcile
// intervals, the seed chart of accounts) MUST be defined here. No hardcoded
// values should exist elsewhere in the codebase.
package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Trading Scope Defaults
// =============================================================================

// TradingMode distinguishes production trading from a dry-run/testnet account.
type TradingMode string

const (
	ModeProduction TradingMode = "PRODUCTION"
	ModeTestnet    TradingMode = "TESTNET"
)

// Exchange identifies the upstream venue adapter.
type Exchange string

const (
	ExchangeBinance Exchange = "BINANCE"
)

// Venue identifies spot vs. derivatives trading within an exchange.
type Venue string

const (
	VenueFutures Venue = "FUTURES"
	VenueSpot    Venue = "SPOT"
)

// DefaultScope holds the (exchange, venue, account, mode) tuple new scopes
// are constructed against absent an explicit override.
type DefaultScope struct {
	Exchange  Exchange
	Venue     Venue
	AccountID string
	Mode      TradingMode
}

// DefaultScopeConfig returns the scope defaults used when a command or test
// fixture does not specify one explicitly.
func DefaultScopeConfig() DefaultScope {
	return DefaultScope{
		Exchange:  ExchangeBinance,
		Venue:     VenueFutures,
		AccountID: "default",
		Mode:      ModeProduction,
	}
}

// =============================================================================
// Epoch
// =============================================================================

// LedgerEpoch is the earliest event timestamp the ledger entry builder will
// post journal entries for. Events with ts before this are accepted into the
// event log (for audit completeness) but skipped by the entry builder.
var LedgerEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// =============================================================================
// Reconciliation Intervals
// =============================================================================

// PollMode selects the reconciler's adaptive polling cadence.
type PollMode string

const (
	PollNormal   PollMode = "NORMAL"
	PollFallback PollMode = "FALLBACK"
)

// ReconcileIntervals holds the polling cadence for each mode.
type ReconcileIntervals struct {
	Normal   time.Duration
	Fallback time.Duration
}

// DefaultReconcileIntervals returns the standard NORMAL/FALLBACK cadence:
// NORMAL applies while the websocket feed is healthy (CONNECTED), FALLBACK
// applies as soon as it is in any other state and REST becomes the primary
// source.
func DefaultReconcileIntervals() ReconcileIntervals {
	return ReconcileIntervals{
		Normal:   30 * time.Second,
		Fallback: 5 * time.Second,
	}
}

// DriftEpsilon is the absolute tolerance below which a balance/position/order
// discrepancy between the websocket-derived projection and a REST snapshot is
// considered noise rather than drift.
var DriftEpsilon = decimal.RequireFromString("0.00000001")

// =============================================================================
// Reconnect / Retry Backoff
// =============================================================================

// BackoffConfig controls the websocket reconnect backoff curve.
type BackoffConfig struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// DefaultWebSocketBackoff returns the exponential backoff used between
// reconnect attempts, resetting to Initial after a successful connection.
func DefaultWebSocketBackoff() BackoffConfig {
	return BackoffConfig{
		Initial: 1 * time.Second,
		Max:     30 * time.Second,
		Factor:  2.0,
	}
}

// RestRetryBackoff returns the linear backoff (1x, 2x, 3x seconds) applied
// between retries of a failed REST call.
func RestRetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * time.Second
}

// =============================================================================
// Rate Limit Thresholds
// =============================================================================

// RateLimitThresholds define the used-weight bands at which the client warns,
// slows its request rate, and stops issuing new requests outright.
type RateLimitThresholds struct {
	WeightWarn int
	WeightSlow int
	WeightStop int
}

// DefaultRateLimitThresholds returns the thresholds evaluated against
// Binance's X-MBX-USED-WEIGHT-1M header (out of a 1200/minute budget).
func DefaultRateLimitThresholds() RateLimitThresholds {
	return RateLimitThresholds{
		WeightWarn: 800,
		WeightSlow: 1000,
		WeightStop: 1150,
	}
}

// =============================================================================
// Projector / Checkpoint
// =============================================================================

// DefaultProjectorBatchSize is the number of events pulled per
// apply_pending_events-style sweep of the projector and ledger entry builder.
const DefaultProjectorBatchSize = 100

// =============================================================================
// Seed Chart of Accounts
// =============================================================================

// AccountType classifies an account for trial-balance purposes.
type AccountType string

const (
	AccountTypeAsset   AccountType = "ASSET"
	AccountTypeExpense AccountType = "EXPENSE"
	AccountTypeIncome  AccountType = "INCOME"
	AccountTypeEquity  AccountType = "EQUITY"
)

// LedgerVenue scopes an account to the exchange surface (or SYSTEM/EXTERNAL
// for accounts that aren't exchange-balance-backed) it represents.
type LedgerVenue string

const (
	LedgerVenueBinanceSpot    LedgerVenue = "BINANCE_SPOT"
	LedgerVenueBinanceFutures LedgerVenue = "BINANCE_FUTURES"
	LedgerVenueExternal       LedgerVenue = "EXTERNAL"
	LedgerVenueSystem         LedgerVenue = "SYSTEM"
)

// SeedAccount is one row of the chart of accounts the ledger store bootstraps
// on first run. Asset-class accounts beyond this seed set (e.g. a newly
// observed BNB balance) are created on demand by the ledger entry builder.
type SeedAccount struct {
	AccountID string
	Type      AccountType
	Venue     LedgerVenue
	Asset     string
	Name      string
}

// SeedChartOfAccounts returns the fixed accounts that exist before any event
// is ever processed: the suspense account, equity accounts, and the expense/
// income accounts that every transaction type maps onto. Account ids here
// must match the fixed account-id constants in internal/ledger verbatim —
// config cannot import ledger (ledger imports config), so the two sides are
// kept in sync by hand.
func SeedChartOfAccounts() []SeedAccount {
	return []SeedAccount{
		{"EQUITY:SUSPENSE", AccountTypeEquity, LedgerVenueSystem, "", "Suspense"},
		{"EQUITY:INITIAL_CAPITAL", AccountTypeEquity, LedgerVenueSystem, "", "Initial Capital"},
		{"EQUITY:OPENING_ADJUSTMENT", AccountTypeEquity, LedgerVenueSystem, "", "Opening Balance Adjustment"},
		{"EQUITY:ADJUSTMENT", AccountTypeEquity, LedgerVenueSystem, "", "Manual Adjustment"},
		{"EXPENSE:FEE:TRADING:MAKER", AccountTypeExpense, LedgerVenueSystem, "", "Maker Trading Fees"},
		{"EXPENSE:FEE:TRADING:TAKER", AccountTypeExpense, LedgerVenueSystem, "", "Taker Trading Fees"},
		{"EXPENSE:FEE:FUNDING:PAID", AccountTypeExpense, LedgerVenueSystem, "", "Funding Fees Paid"},
		{"EXPENSE:FEE:WITHDRAWAL", AccountTypeExpense, LedgerVenueSystem, "", "Withdrawal Fees"},
		{"EXPENSE:FEE:NETWORK", AccountTypeExpense, LedgerVenueSystem, "", "Network Fees"},
		{"EXPENSE:FEE:DUST_CONVERSION", AccountTypeExpense, LedgerVenueSystem, "", "Dust Conversion Fees"},
		{"EXPENSE:CONVERSION_LOSS", AccountTypeExpense, LedgerVenueSystem, "", "Conversion Loss"},
		{"INCOME:CONVERSION_GAIN", AccountTypeIncome, LedgerVenueSystem, "", "Conversion Gain"},
		{"INCOME:FUNDING:RECEIVED", AccountTypeIncome, LedgerVenueSystem, "", "Funding Received"},
		{"INCOME:TRADING:REALIZED_PNL", AccountTypeIncome, LedgerVenueSystem, "", "Realized PnL"},
		{"INCOME:REBATE", AccountTypeIncome, LedgerVenueSystem, "", "Commission Rebates"},
	}
}
