package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/pkg/logging"
)

// Builder translates an Event into at most one JournalEntry, following the
// six-step pipeline: epoch filtering, dispatch, non-financial skip,
// on-the-fly asset account creation, dual native/USDT valuation, and return
// for the Store to validate and persist.
type Builder struct {
	store *Store
	epoch time.Time
	rates *RateSource
	log   *logging.Logger
}

// NewBuilder constructs a Builder. epoch is the LedgerEpoch boundary below
// which events are skipped (except InitialCapitalEstablished, which sets
// it). rates resolves USDT valuation; pass NewRateSource(nil) for a
// fallback-only source.
func NewBuilder(store *Store, epoch time.Time, rates *RateSource) *Builder {
	return &Builder{
		store: store,
		epoch: epoch,
		rates: rates,
		log:   logging.GetDefault().Component("ledger-entry-builder"),
	}
}

// Build returns the JournalEntry for e, or nil if e should produce no entry
// (epoch-filtered, non-financial, or a sub-builder decided nothing should
// post — e.g. a BalanceChanged with no delta).
func (b *Builder) Build(e *eventlog.Event) (*JournalEntry, error) {
	if !b.epoch.IsZero() && e.TS.Before(b.epoch) && e.EventType != eventlog.InitialCapitalEstablished {
		return nil, nil
	}

	if eventlog.IsNonFinancial(e.EventType) {
		return nil, nil
	}

	var (
		lines       []JournalLine
		txType      TransactionType
		description string
		err         error
	)

	switch e.EventType {
	case eventlog.TradeExecuted:
		lines, txType, description, err = b.buildTrade(e)
	case eventlog.FundingApplied:
		lines, txType, description, err = b.buildFunding(e)
	case eventlog.FeeCharged:
		lines, txType, description, err = b.buildFee(e)
	case eventlog.DepositCompleted:
		lines, txType, description, err = b.buildDeposit(e)
	case eventlog.WithdrawCompleted:
		lines, txType, description, err = b.buildWithdraw(e)
	case eventlog.InternalTransferCompleted:
		lines, txType, description, err = b.buildInternalTransfer(e)
	case eventlog.BalanceChanged:
		lines, txType, description, err = b.buildBalanceChanged(e)
	case eventlog.DustConverted:
		lines, txType, description, err = b.buildDustConversion(e)
	case eventlog.InitialCapitalEstablished:
		lines, txType, description, err = b.buildInitialCapital(e)
	case eventlog.OpeningBalanceAdjusted:
		lines, txType, description, err = b.buildOpeningBalanceAdjustment(e)
	case eventlog.CommissionRebateReceived:
		lines, txType, description, err = b.buildCommissionRebate(e)
	case eventlog.ConvertExecuted:
		lines, txType, description, err = b.buildConvert(e)
	default:
		lines, txType, description = b.buildSuspenseFallback(e)
	}
	if err != nil {
		return nil, fmt.Errorf("build entry for %s: %w", e.EventType, err)
	}
	if lines == nil {
		return nil, nil
	}

	entry := &JournalEntry{
		TS:              e.TS,
		TransactionType: txType,
		Mode:            e.Scope.Mode,
		Symbol:          e.Scope.Symbol,
		SourceEventID:   e.EventID,
		Description:     description,
		Lines:           lines,
		RawPayload:      e.Payload,
	}
	if v, ok := e.Payload["trade_id"].(string); ok {
		entry.TradeID = v
	}
	if v, ok := e.Payload["order_id"].(string); ok {
		entry.OrderID = v
	}
	if v, ok := e.Payload["position_id"].(string); ok {
		entry.PositionID = v
	}
	return entry, nil
}

// newLine builds a JournalLine, resolving its USDT valuation via the rate
// source and warning when the rate fell through to the fallback tier.
func (b *Builder) newLine(accountID string, side JournalSide, amount decimal.Decimal, asset string, at time.Time, memo string) JournalLine {
	result := b.rates.Resolve(asset, at)
	if result.source == "fallback" {
		b.log.Warn("usdt rate fallback to 1.0", "asset", asset, "ts", at)
	}
	return JournalLine{
		AccountID: accountID,
		Side:      side,
		Amount:    amount,
		Asset:     asset,
		UsdtValue: amount.Mul(result.rate).Round(8),
		UsdtRate:  result.rate,
		Memo:      memo,
	}
}

func (b *Builder) venue(e *eventlog.Event) config.LedgerVenue {
	switch e.Scope.Venue {
	case config.VenueSpot:
		return config.LedgerVenueBinanceSpot
	default:
		return config.LedgerVenueBinanceFutures
	}
}

func (b *Builder) ensureAsset(e *eventlog.Event, asset string) (string, error) {
	return b.store.EnsureAssetAccount(b.venue(e), asset)
}

// buildSuspenseFallback handles a financial event type with no dedicated
// sub-builder: two zero-amount lines both against EQUITY:SUSPENSE, tagged
// UNKNOWN, preserving the raw payload for later investigation.
func (b *Builder) buildSuspenseFallback(e *eventlog.Event) ([]JournalLine, TransactionType, string) {
	zero := decimal.Zero
	lines := []JournalLine{
		b.newLine(AccountSuspense, Debit, zero, "USDT", e.TS, string(e.EventType)),
		b.newLine(AccountSuspense, Credit, zero, "USDT", e.TS, string(e.EventType)),
	}
	return lines, TxUnknown, fmt.Sprintf("unrecognized event type %s", e.EventType)
}
