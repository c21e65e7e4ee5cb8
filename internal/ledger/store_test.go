package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klingon-exchange/ledger-core/internal/config"
)

func balancedEntry(t *testing.T, assetAccount string) *JournalEntry {
	t.Helper()
	amt := decimal.RequireFromString("10")
	return &JournalEntry{
		TS:              time.Now().UTC(),
		TransactionType: TxAdjustment,
		Mode:            config.ModeTestnet,
		SourceEventID:   "evt-src",
		Description:     "test entry",
		Lines: []JournalLine{
			{AccountID: assetAccount, Side: Debit, Amount: amt, Asset: "USDT", UsdtValue: amt, UsdtRate: decimal.NewFromInt(1)},
			{AccountID: AccountSuspense, Side: Credit, Amount: amt, Asset: "USDT", UsdtValue: amt, UsdtRate: decimal.NewFromInt(1)},
		},
	}
}

func TestSaveEntry_RejectsImbalance(t *testing.T) {
	store := newTestStore(t)
	account, err := store.EnsureAssetAccount(config.LedgerVenueBinanceFutures, "USDT")
	require.NoError(t, err)

	amt := decimal.RequireFromString("10")
	other := decimal.RequireFromString("5")
	entry := &JournalEntry{
		TS:              time.Now().UTC(),
		TransactionType: TxAdjustment,
		Mode:            config.ModeTestnet,
		SourceEventID:   "evt-bad",
		Lines: []JournalLine{
			{AccountID: account, Side: Debit, Amount: amt, Asset: "USDT", UsdtValue: amt, UsdtRate: decimal.NewFromInt(1)},
			{AccountID: AccountSuspense, Side: Credit, Amount: other, Asset: "USDT", UsdtValue: other, UsdtRate: decimal.NewFromInt(1)},
		},
	}

	err = store.SaveEntry(entry)
	assert.Error(t, err)
}

func TestSaveEntry_UpdatesRunningBalance(t *testing.T) {
	store := newTestStore(t)
	account, err := store.EnsureAssetAccount(config.LedgerVenueBinanceFutures, "USDT")
	require.NoError(t, err)

	entry := balancedEntry(t, account)
	require.NoError(t, store.SaveEntry(entry))
	require.NotEmpty(t, entry.EntryID)

	balance, err := store.GetAccountBalance(account, config.ModeTestnet)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10")), "balance: %s", balance)

	entry2 := balancedEntry(t, account)
	require.NoError(t, store.SaveEntry(entry2))

	balance2, err := store.GetAccountBalance(account, config.ModeTestnet)
	require.NoError(t, err)
	assert.True(t, balance2.Equal(decimal.RequireFromString("20")), "balance: %s", balance2)
}

func TestGetAccountBalance_MissingRowIsZero(t *testing.T) {
	store := newTestStore(t)
	balance, err := store.GetAccountBalance("ASSET:BINANCE_FUTURES:NOPE", config.ModeTestnet)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestEnsureAssetAccount_Idempotent(t *testing.T) {
	store := newTestStore(t)
	a1, err := store.EnsureAssetAccount(config.LedgerVenueBinanceFutures, "BTC")
	require.NoError(t, err)
	a2, err := store.EnsureAssetAccount(config.LedgerVenueBinanceFutures, "BTC")
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
}

func TestGetEntry_RoundTrips(t *testing.T) {
	store := newTestStore(t)
	account, err := store.EnsureAssetAccount(config.LedgerVenueBinanceFutures, "USDT")
	require.NoError(t, err)

	entry := balancedEntry(t, account)
	require.NoError(t, store.SaveEntry(entry))

	fetched, err := store.GetEntry(entry.EntryID)
	require.NoError(t, err)
	assert.Equal(t, entry.EntryID, fetched.EntryID)
	assert.Len(t, fetched.Lines, 2)
	assert.True(t, fetched.IsBalanced())
}

func TestGetTrialBalance_OnlyNonZero(t *testing.T) {
	store := newTestStore(t)
	account, err := store.EnsureAssetAccount(config.LedgerVenueBinanceFutures, "USDT")
	require.NoError(t, err)
	require.NoError(t, store.SaveEntry(balancedEntry(t, account)))

	rows, err := store.GetTrialBalance(config.ModeTestnet)
	require.NoError(t, err)
	found := false
	for _, r := range rows {
		if r.AccountID == account {
			found = true
			assert.True(t, r.Balance.Equal(decimal.RequireFromString("10")))
		}
		assert.False(t, r.Balance.IsZero())
	}
	assert.True(t, found)
}

func TestGetEntriesByType(t *testing.T) {
	store := newTestStore(t)
	account, err := store.EnsureAssetAccount(config.LedgerVenueBinanceFutures, "USDT")
	require.NoError(t, err)
	require.NoError(t, store.SaveEntry(balancedEntry(t, account)))

	entries, err := store.GetEntriesByType(TxAdjustment, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
