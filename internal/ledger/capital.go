package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/eventlog"
)

func (b *Builder) buildInitialCapital(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	balancesRaw, ok := e.Payload["balances"].(map[string]any)
	if !ok {
		return nil, "", "", fmt.Errorf("initial capital payload missing balances map")
	}

	var lines []JournalLine
	total := decimal.Zero
	for asset, v := range balancesRaw {
		amount, err := toDecimal(v)
		if err != nil {
			return nil, "", "", fmt.Errorf("initial balance %s: %w", asset, err)
		}
		account, err := b.ensureAsset(e, asset)
		if err != nil {
			return nil, "", "", err
		}
		line := b.newLine(account, Debit, amount, asset, e.TS, "initial capital")
		lines = append(lines, line)
		total = total.Add(line.UsdtValue)
	}

	lines = append(lines, b.newLine(AccountInitialCapital, Credit, total, "USDT", e.TS, "initial capital"))
	return lines, TxAdjustment, "initial capital established", nil
}

func (b *Builder) buildOpeningBalanceAdjustment(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	asset, err := payloadString(e.Payload, "asset")
	if err != nil {
		return nil, "", "", err
	}
	delta, err := payloadDecimal(e.Payload, "delta")
	if err != nil {
		return nil, "", "", err
	}
	account, err := b.ensureAsset(e, asset)
	if err != nil {
		return nil, "", "", err
	}

	var lines []JournalLine
	if delta.IsPositive() {
		lines = []JournalLine{
			b.newLine(account, Debit, delta, asset, e.TS, "opening balance adjustment"),
			b.newLine(AccountOpeningAdjustment, Credit, delta, asset, e.TS, "opening balance adjustment"),
		}
	} else {
		abs := delta.Abs()
		lines = []JournalLine{
			b.newLine(AccountOpeningAdjustment, Debit, abs, asset, e.TS, "opening balance adjustment"),
			b.newLine(account, Credit, abs, asset, e.TS, "opening balance adjustment"),
		}
	}
	return lines, TxAdjustment, "opening balance adjustment", nil
}

// buildBalanceChanged posts the generic residual path: a signed delta
// against EQUITY:SUSPENSE. A BalanceChanged with no delta cannot be
// represented and is skipped (lines == nil).
func (b *Builder) buildBalanceChanged(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	if !hasPayloadKey(e.Payload, "delta") {
		return nil, "", "", nil
	}
	delta, err := payloadDecimal(e.Payload, "delta")
	if err != nil {
		return nil, "", "", err
	}
	if delta.IsZero() {
		return nil, "", "", nil
	}
	asset, err := payloadString(e.Payload, "asset")
	if err != nil {
		return nil, "", "", err
	}
	account, err := b.ensureAsset(e, asset)
	if err != nil {
		return nil, "", "", err
	}

	var lines []JournalLine
	if delta.IsPositive() {
		lines = []JournalLine{
			b.newLine(account, Debit, delta, asset, e.TS, "balance changed"),
			b.newLine(AccountSuspense, Credit, delta, asset, e.TS, "balance changed"),
		}
	} else {
		abs := delta.Abs()
		lines = []JournalLine{
			b.newLine(AccountSuspense, Debit, abs, asset, e.TS, "balance changed"),
			b.newLine(account, Credit, abs, asset, e.TS, "balance changed"),
		}
	}
	return lines, TxAdjustment, "balance changed (suspense)", nil
}

// dustResidueThreshold is the USDT-value tolerance below which the dust
// conversion's exchange-rate residue is absorbed by rounding rather than an
// explicit conversion-gain/loss line.
var dustResidueThreshold = decimal.RequireFromString("0.001")

// buildDustConversion matches many small-asset CREDITs against a BNB DEBIT
// and a service-charge DEBIT, closing the entry with a conversion-loss DEBIT
// or conversion-gain CREDIT for whatever USDT-value residue remains.
func (b *Builder) buildDustConversion(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	conversionsRaw, ok := e.Payload["conversions"].([]any)
	if !ok {
		return nil, "", "", fmt.Errorf("dust conversion payload missing conversions list")
	}

	var lines []JournalLine
	creditUsdt := decimal.Zero
	for _, item := range conversionsRaw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, "", "", fmt.Errorf("dust conversion item is not an object")
		}
		asset, err := payloadString(m, "asset")
		if err != nil {
			return nil, "", "", err
		}
		amount, err := payloadDecimal(m, "amount")
		if err != nil {
			return nil, "", "", err
		}
		account, err := b.ensureAsset(e, asset)
		if err != nil {
			return nil, "", "", err
		}
		line := b.newLine(account, Credit, amount, asset, e.TS, "dust conversion")
		lines = append(lines, line)
		creditUsdt = creditUsdt.Add(line.UsdtValue)
	}

	bnbAmount, err := payloadDecimal(e.Payload, "bnb_amount")
	if err != nil {
		return nil, "", "", err
	}
	bnbAccount, err := b.ensureAsset(e, "BNB")
	if err != nil {
		return nil, "", "", err
	}
	bnbLine := b.newLine(bnbAccount, Debit, bnbAmount, "BNB", e.TS, "dust conversion proceeds")
	lines = append(lines, bnbLine)
	debitUsdt := bnbLine.UsdtValue

	fee := payloadDecimalOr(e.Payload, "fee", decimal.Zero)
	if fee.IsPositive() {
		feeLine := b.newLine(AccountFeeDustConversion, Debit, fee, "BNB", e.TS, "dust conversion fee")
		lines = append(lines, feeLine)
		debitUsdt = debitUsdt.Add(feeLine.UsdtValue)
	}

	residue := creditUsdt.Sub(debitUsdt)
	if residue.Abs().GreaterThan(dustResidueThreshold) {
		if residue.IsPositive() {
			lines = append(lines, b.newLine(AccountConversionLoss, Debit, residue, "USDT", e.TS, "dust conversion residue"))
		} else {
			lines = append(lines, b.newLine(AccountConversionGain, Credit, residue.Abs(), "USDT", e.TS, "dust conversion residue"))
		}
	}

	return lines, TxOther, "dust conversion", nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case string:
		return decimal.NewFromString(t)
	case float64:
		return decimal.NewFromFloat(t), nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", v)
	}
}
