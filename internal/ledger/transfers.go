package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/eventlog"
)

func (b *Builder) buildDeposit(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	amount, err := payloadDecimal(e.Payload, "amount")
	if err != nil {
		return nil, "", "", err
	}
	asset, err := payloadString(e.Payload, "asset")
	if err != nil {
		return nil, "", "", err
	}

	account, err := b.ensureAsset(e, asset)
	if err != nil {
		return nil, "", "", err
	}
	externalAccount, err := b.store.EnsureAssetAccount(ExternalVenue, asset)
	if err != nil {
		return nil, "", "", err
	}

	lines := []JournalLine{
		b.newLine(account, Debit, amount, asset, e.TS, "deposit"),
		b.newLine(externalAccount, Credit, amount, asset, e.TS, "deposit"),
	}
	return lines, TxDeposit, fmt.Sprintf("deposit %s %s", amount, asset), nil
}

func (b *Builder) buildWithdraw(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	amount, err := payloadDecimal(e.Payload, "amount")
	if err != nil {
		return nil, "", "", err
	}
	asset, err := payloadString(e.Payload, "asset")
	if err != nil {
		return nil, "", "", err
	}
	fee := payloadDecimalOr(e.Payload, "fee", decimal.Zero)

	account, err := b.ensureAsset(e, asset)
	if err != nil {
		return nil, "", "", err
	}
	externalAccount, err := b.store.EnsureAssetAccount(ExternalVenue, asset)
	if err != nil {
		return nil, "", "", err
	}

	net := amount.Sub(fee)
	lines := []JournalLine{
		b.newLine(account, Credit, amount, asset, e.TS, "withdrawal"),
		b.newLine(externalAccount, Debit, net, asset, e.TS, "withdrawal"),
	}
	if fee.IsPositive() {
		lines = append(lines, b.newLine(AccountFeeWithdrawal, Debit, fee, asset, e.TS, "withdrawal fee"))
	}
	return lines, TxWithdrawal, fmt.Sprintf("withdraw %s %s", amount, asset), nil
}

func (b *Builder) buildInternalTransfer(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	amount, err := payloadDecimal(e.Payload, "amount")
	if err != nil {
		return nil, "", "", err
	}
	asset, err := payloadString(e.Payload, "asset")
	if err != nil {
		return nil, "", "", err
	}
	fromVenue := config.LedgerVenue(payloadStringOr(e.Payload, "from_venue", string(b.venue(e))))
	toVenue := config.LedgerVenue(payloadStringOr(e.Payload, "to_venue", string(b.venue(e))))

	fromAccount, err := b.store.EnsureAssetAccount(fromVenue, asset)
	if err != nil {
		return nil, "", "", err
	}
	toAccount, err := b.store.EnsureAssetAccount(toVenue, asset)
	if err != nil {
		return nil, "", "", err
	}

	lines := []JournalLine{
		b.newLine(toAccount, Debit, amount, asset, e.TS, "internal transfer"),
		b.newLine(fromAccount, Credit, amount, asset, e.TS, "internal transfer"),
	}
	return lines, TxInternalTransfer, fmt.Sprintf("transfer %s %s: %s -> %s", amount, asset, fromVenue, toVenue), nil
}

func (b *Builder) buildConvert(e *eventlog.Event) ([]JournalLine, TransactionType, string, error) {
	fromAsset, err := payloadString(e.Payload, "from_asset")
	if err != nil {
		return nil, "", "", err
	}
	toAsset, err := payloadString(e.Payload, "to_asset")
	if err != nil {
		return nil, "", "", err
	}
	fromAmount, err := payloadDecimal(e.Payload, "from_amount")
	if err != nil {
		return nil, "", "", err
	}
	toAmount, err := payloadDecimal(e.Payload, "to_amount")
	if err != nil {
		return nil, "", "", err
	}

	fromAccount, err := b.ensureAsset(e, fromAsset)
	if err != nil {
		return nil, "", "", err
	}
	toAccount, err := b.ensureAsset(e, toAsset)
	if err != nil {
		return nil, "", "", err
	}

	lines := []JournalLine{
		b.newLine(toAccount, Debit, toAmount, toAsset, e.TS, "convert"),
		b.newLine(fromAccount, Credit, fromAmount, fromAsset, e.TS, "convert"),
	}
	return lines, TxOther, fmt.Sprintf("convert %s %s -> %s %s", fromAmount, fromAsset, toAmount, toAsset), nil
}
