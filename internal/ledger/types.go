// Package ledger implements the double-entry journal: translating
// finance-affecting events into balanced journal entries with
// USDT-equivalent valuation, and persisting them with trial-balance and
// reporting queries.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/config"
)

// TransactionType is the closed enum tagging a journal entry's origin,
// wider than a minimal trade/transfer/fee set — it includes FEE_NETWORK,
// LIQUIDATION, REALIZED_PNL, and CORRECTION recovered from the
// pre-distillation ledger types, none of which any Non-goal excludes.
type TransactionType string

const (
	TxTrade              TransactionType = "TRADE"
	TxDeposit            TransactionType = "DEPOSIT"
	TxWithdrawal         TransactionType = "WITHDRAWAL"
	TxInternalTransfer   TransactionType = "INTERNAL_TRANSFER"
	TxFeeTrading         TransactionType = "FEE_TRADING"
	TxFeeFunding         TransactionType = "FEE_FUNDING"
	TxFeeWithdrawal      TransactionType = "FEE_WITHDRAWAL"
	TxFeeNetwork         TransactionType = "FEE_NETWORK"
	TxFundingReceived    TransactionType = "FUNDING_RECEIVED"
	TxRebate             TransactionType = "REBATE"
	TxLiquidation        TransactionType = "LIQUIDATION"
	TxRealizedPnL        TransactionType = "REALIZED_PNL"
	TxAdjustment         TransactionType = "ADJUSTMENT"
	TxUnknown            TransactionType = "UNKNOWN"
	TxCorrection         TransactionType = "CORRECTION"
	TxOther              TransactionType = "OTHER"
)

// JournalSide is DEBIT or CREDIT.
type JournalSide string

const (
	Debit  JournalSide = "DEBIT"
	Credit JournalSide = "CREDIT"
)

// JournalLine is one posting within a JournalEntry. Amount is always
// positive; Side determines its direction. UsdtValue is the same quantity
// valued in USDT via UsdtRate (1 USDT always rates to 1).
type JournalLine struct {
	LineOrder int
	AccountID string
	Side      JournalSide
	Amount    decimal.Decimal
	Asset     string
	UsdtValue decimal.Decimal
	UsdtRate  decimal.Decimal
	Memo      string
}

// SignedAmount returns Amount for DEBIT and its negation for CREDIT — the
// uniform DEBIT-positive sign convention downstream presentation layers
// re-interpret per account type.
func (l JournalLine) SignedAmount() decimal.Decimal {
	if l.Side == Credit {
		return l.Amount.Neg()
	}
	return l.Amount
}

// JournalEntry is one balanced double-entry transaction.
type JournalEntry struct {
	EntryID         string
	TS              time.Time
	TransactionType TransactionType
	Mode            config.TradingMode
	TradeID         string
	OrderID         string
	PositionID      string
	Symbol          string
	SourceEventID   string
	Description     string
	Memo            string
	Lines           []JournalLine
	RawPayload      map[string]any
}

// DebitTotal sums the USDT value of every DEBIT line.
func (e *JournalEntry) DebitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		if l.Side == Debit {
			total = total.Add(l.UsdtValue)
		}
	}
	return total
}

// CreditTotal sums the USDT value of every CREDIT line.
func (e *JournalEntry) CreditTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		if l.Side == Credit {
			total = total.Add(l.UsdtValue)
		}
	}
	return total
}

// BalanceTolerance is the fixed 1e-2 USDT tolerance within which a journal
// entry's debit and credit totals are considered balanced.
var BalanceTolerance = decimal.RequireFromString("0.01")

// IsBalanced reports whether the entry's debit and credit totals agree
// within BalanceTolerance — the defining invariant of double-entry.
func (e *JournalEntry) IsBalanced() bool {
	return e.DebitTotal().Sub(e.CreditTotal()).Abs().LessThanOrEqual(BalanceTolerance)
}

// Account is one row of the chart of accounts.
type Account struct {
	AccountID   string
	AccountType config.AccountType
	Venue       config.LedgerVenue
	Asset       string
	Name        string
	Active      bool
}

// AccountBalance is the running per-(account, mode) balance maintained
// inside the same transaction that persists an entry referencing it.
type AccountBalance struct {
	AccountID   string
	Mode        config.TradingMode
	Balance     decimal.Decimal
	LastEntryID string
	LastEntryTS time.Time
}
