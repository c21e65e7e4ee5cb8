package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

func (b *Builder) buildTrade(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	side := types.OrderSide(payloadStringOr(e.Payload, "side", string(types.SideBuy)))
	qty, err := payloadDecimal(e.Payload, "qty")
	if err != nil {
		return nil, "", "", err
	}
	price, err := payloadDecimal(e.Payload, "price")
	if err != nil {
		return nil, "", "", err
	}
	baseAsset, err := payloadString(e.Payload, "base_asset")
	if err != nil {
		return nil, "", "", err
	}
	quoteAsset := payloadStringOr(e.Payload, "quote_asset", "USDT")

	baseAccount, err := b.ensureAsset(e, baseAsset)
	if err != nil {
		return nil, "", "", err
	}
	quoteAccount, err := b.ensureAsset(e, quoteAsset)
	if err != nil {
		return nil, "", "", err
	}

	notional := qty.Mul(price)
	var lines []JournalLine
	if side == types.SideBuy {
		lines = append(lines,
			b.newLine(baseAccount, Debit, qty, baseAsset, e.TS, "trade buy"),
			b.newLine(quoteAccount, Credit, notional, quoteAsset, e.TS, "trade buy"),
		)
	} else {
		lines = append(lines,
			b.newLine(baseAccount, Credit, qty, baseAsset, e.TS, "trade sell"),
			b.newLine(quoteAccount, Debit, notional, quoteAsset, e.TS, "trade sell"),
		)
	}

	commission := payloadDecimalOr(e.Payload, "commission", decimal.Zero)
	if commission.IsPositive() {
		commissionAsset := payloadStringOr(e.Payload, "commission_asset", quoteAsset)
		commissionAccount, err := b.ensureAsset(e, commissionAsset)
		if err != nil {
			return nil, "", "", err
		}
		feeAccount := AccountFeeTradingTaker
		if payloadBool(e.Payload, "maker") {
			feeAccount = AccountFeeTradingMaker
		}
		lines = append(lines,
			b.newLine(feeAccount, Debit, commission, commissionAsset, e.TS, "trading fee"),
			b.newLine(commissionAccount, Credit, commission, commissionAsset, e.TS, "trading fee"),
		)
	}

	realizedPnL := payloadDecimalOr(e.Payload, "realized_pnl", decimal.Zero)
	if !realizedPnL.IsZero() {
		futuresUsdtAccount, err := b.ensureAsset(e, "USDT")
		if err != nil {
			return nil, "", "", err
		}
		abs := realizedPnL.Abs()
		if realizedPnL.IsPositive() {
			lines = append(lines,
				b.newLine(futuresUsdtAccount, Debit, abs, "USDT", e.TS, "realized pnl"),
				b.newLine(AccountIncomeRealizedPnL, Credit, abs, "USDT", e.TS, "realized pnl"),
			)
		} else {
			lines = append(lines,
				b.newLine(AccountIncomeRealizedPnL, Debit, abs, "USDT", e.TS, "realized pnl"),
				b.newLine(futuresUsdtAccount, Credit, abs, "USDT", e.TS, "realized pnl"),
			)
		}
	}

	return lines, TxTrade, fmt.Sprintf("%s %s %s @ %s", side, qty, baseAsset, price), nil
}

func (b *Builder) buildFunding(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	fee, err := payloadDecimal(e.Payload, "fee")
	if err != nil {
		return nil, "", "", err
	}
	asset := payloadStringOr(e.Payload, "asset", "USDT")
	account, err := b.ensureAsset(e, asset)
	if err != nil {
		return nil, "", "", err
	}

	var lines []JournalLine
	if fee.IsPositive() {
		lines = []JournalLine{
			b.newLine(AccountFeeFundingPaid, Debit, fee, asset, e.TS, "funding paid"),
			b.newLine(account, Credit, fee, asset, e.TS, "funding paid"),
		}
	} else {
		abs := fee.Abs()
		lines = []JournalLine{
			b.newLine(account, Debit, abs, asset, e.TS, "funding received"),
			b.newLine(AccountIncomeFundingRecv, Credit, abs, asset, e.TS, "funding received"),
		}
	}
	return lines, TxFeeFunding, "funding settlement", nil
}

func (b *Builder) buildFee(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	amount, err := payloadDecimal(e.Payload, "amount")
	if err != nil {
		return nil, "", "", err
	}
	asset := payloadStringOr(e.Payload, "asset", "USDT")
	account, err := b.ensureAsset(e, asset)
	if err != nil {
		return nil, "", "", err
	}

	feeType := payloadStringOr(e.Payload, "fee_type", "TRADING")
	var expenseAccount string
	var txType TransactionType
	switch feeType {
	case "FUNDING":
		expenseAccount, txType = AccountFeeFundingPaid, TxFeeFunding
	case "WITHDRAWAL":
		expenseAccount, txType = AccountFeeWithdrawal, TxFeeWithdrawal
	case "NETWORK":
		expenseAccount, txType = AccountFeeNetwork, TxFeeNetwork
	default:
		expenseAccount, txType = AccountFeeTradingTaker, TxFeeTrading
	}

	lines := []JournalLine{
		b.newLine(expenseAccount, Debit, amount, asset, e.TS, "fee charged"),
		b.newLine(account, Credit, amount, asset, e.TS, "fee charged"),
	}
	return lines, txType, fmt.Sprintf("%s fee", feeType), nil
}

func (b *Builder) buildCommissionRebate(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	amount, err := payloadDecimal(e.Payload, "amount")
	if err != nil {
		return nil, "", "", err
	}
	asset := payloadStringOr(e.Payload, "asset", "USDT")
	account, err := b.ensureAsset(e, asset)
	if err != nil {
		return nil, "", "", err
	}
	lines := []JournalLine{
		b.newLine(account, Debit, amount, asset, e.TS, "commission rebate"),
		b.newLine(AccountIncomeRebate, Credit, amount, asset, e.TS, "commission rebate"),
	}
	return lines, TxRebate, "commission rebate", nil
}
