package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/config"
)

// TradeSummary aggregates trade count, volume, and fees over a window.
type TradeSummary struct {
	TradeCount int64
	VolumeUSDT decimal.Decimal
	FeesUSDT   decimal.Decimal
}

// GetTradeSummary aggregates TRADE entries within [since, until).
func (s *Store) GetTradeSummary(mode config.TradingMode, since, until time.Time) (*TradeSummary, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	summary := &TradeSummary{VolumeUSDT: decimal.Zero, FeesUSDT: decimal.Zero}

	row := s.store.DB().QueryRow(
		`SELECT COUNT(*) FROM journal_entry WHERE scope_mode = ? AND transaction_type = ? AND ts >= ? AND ts < ?`,
		string(mode), string(TxTrade), since.Format(time.RFC3339Nano), until.Format(time.RFC3339Nano),
	)
	if err := row.Scan(&summary.TradeCount); err != nil {
		return nil, fmt.Errorf("trade summary count: %w", err)
	}

	rows, err := s.store.DB().Query(
		`SELECT jl.usdt_value FROM journal_line jl
		 JOIN journal_entry je ON je.entry_id = jl.entry_id
		 WHERE je.scope_mode = ? AND je.transaction_type = ? AND je.ts >= ? AND je.ts < ?
		   AND jl.asset != 'USDT' AND jl.side = 'DEBIT'`,
		string(mode), string(TxTrade), since.Format(time.RFC3339Nano), until.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("trade summary volume: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		d, _ := decimal.NewFromString(v)
		summary.VolumeUSDT = summary.VolumeUSDT.Add(d)
	}

	feeRows, err := s.store.DB().Query(
		`SELECT jl.usdt_value FROM journal_line jl
		 JOIN journal_entry je ON je.entry_id = jl.entry_id
		 WHERE je.scope_mode = ? AND je.transaction_type IN (?, ?) AND je.ts >= ? AND je.ts < ?
		   AND jl.account_id IN (?, ?)`,
		string(mode), string(TxTrade), string(TxFeeTrading), since.Format(time.RFC3339Nano), until.Format(time.RFC3339Nano),
		AccountFeeTradingMaker, AccountFeeTradingTaker,
	)
	if err != nil {
		return nil, fmt.Errorf("trade summary fees: %w", err)
	}
	defer feeRows.Close()
	for feeRows.Next() {
		var v string
		if err := feeRows.Scan(&v); err != nil {
			return nil, err
		}
		d, _ := decimal.NewFromString(v)
		summary.FeesUSDT = summary.FeesUSDT.Add(d)
	}

	return summary, nil
}

// DailyPnL is one day's realized P&L plus the cumulative total through
// that day.
type DailyPnL struct {
	Date       string
	RealizedPnL decimal.Decimal
	Cumulative decimal.Decimal
}

// GetDailyPnLSeries returns per-day realized P&L for mode with a running
// cumulative column, ordered by date ascending.
func (s *Store) GetDailyPnLSeries(mode config.TradingMode) ([]DailyPnL, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	rows, err := s.store.DB().Query(
		`SELECT substr(je.ts, 1, 10) AS day,
			SUM(CASE WHEN jl.side = 'CREDIT' THEN jl.usdt_value ELSE -jl.usdt_value END) AS pnl
		 FROM journal_line jl
		 JOIN journal_entry je ON je.entry_id = jl.entry_id
		 WHERE je.scope_mode = ? AND jl.account_id = ?
		 GROUP BY day ORDER BY day ASC`,
		string(mode), AccountIncomeRealizedPnL,
	)
	if err != nil {
		return nil, fmt.Errorf("daily pnl series: %w", err)
	}
	defer rows.Close()

	var out []DailyPnL
	cumulative := decimal.Zero
	for rows.Next() {
		var day, pnl string
		if err := rows.Scan(&day, &pnl); err != nil {
			return nil, err
		}
		d, _ := decimal.NewFromString(pnl)
		cumulative = cumulative.Add(d)
		out = append(out, DailyPnL{Date: day, RealizedPnL: d, Cumulative: cumulative})
	}
	return out, rows.Err()
}

// FeeSummary groups fee totals by transaction type.
type FeeSummary struct {
	TransactionType TransactionType
	TotalUSDT       decimal.Decimal
}

// GetFeeSummary groups fee entries by transaction type within [since, until).
func (s *Store) GetFeeSummary(mode config.TradingMode, since, until time.Time) ([]FeeSummary, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	feeTypes := []TransactionType{TxFeeTrading, TxFeeFunding, TxFeeWithdrawal, TxFeeNetwork}
	placeholders := "?, ?, ?, ?"
	args := []any{string(mode)}
	for _, t := range feeTypes {
		args = append(args, string(t))
	}
	args = append(args, since.Format(time.RFC3339Nano), until.Format(time.RFC3339Nano))

	rows, err := s.store.DB().Query(
		fmt.Sprintf(`SELECT je.transaction_type, SUM(jl.usdt_value) FROM journal_line jl
		 JOIN journal_entry je ON je.entry_id = jl.entry_id
		 WHERE je.scope_mode = ? AND je.transaction_type IN (%s) AND jl.side = 'DEBIT'
		   AND je.ts >= ? AND je.ts < ?
		 GROUP BY je.transaction_type`, placeholders),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("fee summary: %w", err)
	}
	defer rows.Close()

	var out []FeeSummary
	for rows.Next() {
		var txType, total string
		if err := rows.Scan(&txType, &total); err != nil {
			return nil, err
		}
		d, _ := decimal.NewFromString(total)
		out = append(out, FeeSummary{TransactionType: TransactionType(txType), TotalUSDT: d})
	}
	return out, rows.Err()
}

// AccountLedgerRow is one line of an account's history, with a
// presentation-facing signed amount (positive DEBIT, negative CREDIT).
type AccountLedgerRow struct {
	EntryID      string
	TS           time.Time
	SignedAmount decimal.Decimal
	Asset        string
	Memo         string
}

// GetAccountLedger returns accountID's lines in time order, most recent
// limit.
func (s *Store) GetAccountLedger(accountID string, mode config.TradingMode, limit int) ([]AccountLedgerRow, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	rows, err := s.store.DB().Query(
		`SELECT je.entry_id, je.ts, jl.side, jl.amount, jl.asset, jl.memo
		 FROM journal_line jl JOIN journal_entry je ON je.entry_id = jl.entry_id
		 WHERE jl.account_id = ? AND je.scope_mode = ?
		 ORDER BY je.ts DESC LIMIT ?`,
		accountID, string(mode), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("account ledger: %w", err)
	}
	defer rows.Close()

	var out []AccountLedgerRow
	for rows.Next() {
		var entryID, ts, side, amount, asset string
		var memo *string
		if err := rows.Scan(&entryID, &ts, &side, &amount, &asset, &memo); err != nil {
			return nil, err
		}
		parsedTS, _ := time.Parse(time.RFC3339Nano, ts)
		d, _ := decimal.NewFromString(amount)
		signed := d
		if JournalSide(side) == Credit {
			signed = d.Neg()
		}
		row := AccountLedgerRow{EntryID: entryID, TS: parsedTS, SignedAmount: signed, Asset: asset}
		if memo != nil {
			row.Memo = *memo
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// PortfolioRow is one non-zero asset account balance.
type PortfolioRow struct {
	AccountID string
	Asset     string
	Balance   decimal.Decimal
}

// GetPortfolio returns current non-zero ASSET account balances for mode.
func (s *Store) GetPortfolio(mode config.TradingMode) ([]PortfolioRow, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	rows, err := s.store.DB().Query(
		`SELECT ab.account_id, a.asset, ab.balance
		 FROM account_balance ab JOIN account a ON a.account_id = ab.account_id
		 WHERE ab.scope_mode = ? AND a.account_type = 'ASSET' AND ab.balance != '0'
		 ORDER BY ab.account_id`,
		string(mode),
	)
	if err != nil {
		return nil, fmt.Errorf("portfolio: %w", err)
	}
	defer rows.Close()

	var out []PortfolioRow
	for rows.Next() {
		var accountID string
		var asset *string
		var balance string
		if err := rows.Scan(&accountID, &asset, &balance); err != nil {
			return nil, err
		}
		d, _ := decimal.NewFromString(balance)
		row := PortfolioRow{AccountID: accountID, Balance: d}
		if asset != nil {
			row.Asset = *asset
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetRecentTrades returns the most recent N TRADE-tagged entries for mode.
func (s *Store) GetRecentTrades(mode config.TradingMode, n int) ([]*JournalEntry, error) {
	s.store.RLock()
	rows, err := s.store.DB().Query(
		`SELECT entry_id FROM journal_entry WHERE transaction_type = ? AND scope_mode = ? ORDER BY ts DESC LIMIT ?`,
		string(TxTrade), string(mode), n,
	)
	s.store.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("recent trades: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.store.RLock()
	defer s.store.RUnlock()
	var out []*JournalEntry
	for _, id := range ids {
		e, err := s.getEntryLocked(id)
		if err != nil {
			return nil, fmt.Errorf("load entry %s: %w", id, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// SymbolPnL aggregates realized P&L and win/loss statistics for one symbol,
// fed by the position_session lifecycle table since win-rate cannot be
// derived from journal_line alone.
type SymbolPnL struct {
	Symbol       string
	RealizedPnL  decimal.Decimal
	Wins         int64
	Losses       int64
	AvgWin       decimal.Decimal
	AvgLoss      decimal.Decimal
}

// GetSymbolPnL aggregates closed position_session rows for symbol under mode.
func (s *Store) GetSymbolPnL(symbol string, mode config.TradingMode) (*SymbolPnL, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	rows, err := s.store.DB().Query(
		`SELECT realized_pnl FROM position_session
		 WHERE symbol = ? AND scope_mode = ? AND closed_at IS NOT NULL`,
		symbol, string(mode),
	)
	if err != nil {
		return nil, fmt.Errorf("symbol pnl: %w", err)
	}
	defer rows.Close()

	result := &SymbolPnL{Symbol: symbol, RealizedPnL: decimal.Zero, AvgWin: decimal.Zero, AvgLoss: decimal.Zero}
	winTotal, lossTotal := decimal.Zero, decimal.Zero
	for rows.Next() {
		var pnlStr string
		if err := rows.Scan(&pnlStr); err != nil {
			return nil, err
		}
		pnl, _ := decimal.NewFromString(pnlStr)
		result.RealizedPnL = result.RealizedPnL.Add(pnl)
		if pnl.IsPositive() {
			result.Wins++
			winTotal = winTotal.Add(pnl)
		} else if pnl.IsNegative() {
			result.Losses++
			lossTotal = lossTotal.Add(pnl)
		}
	}
	if result.Wins > 0 {
		result.AvgWin = winTotal.Div(decimal.NewFromInt(result.Wins))
	}
	if result.Losses > 0 {
		result.AvgLoss = lossTotal.Div(decimal.NewFromInt(result.Losses))
	}
	return result, rows.Err()
}

// GetFundingHistory returns funding-fee entries within [since, until).
func (s *Store) GetFundingHistory(mode config.TradingMode, since, until time.Time) ([]*JournalEntry, error) {
	s.store.RLock()
	rows, err := s.store.DB().Query(
		`SELECT entry_id FROM journal_entry
		 WHERE scope_mode = ? AND transaction_type = ? AND ts >= ? AND ts < ?
		 ORDER BY ts DESC`,
		string(mode), string(TxFeeFunding), since.Format(time.RFC3339Nano), until.Format(time.RFC3339Nano),
	)
	s.store.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("funding history: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	s.store.RLock()
	defer s.store.RUnlock()
	var out []*JournalEntry
	for _, id := range ids {
		e, err := s.getEntryLocked(id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// PnLStatistics rolls up daily/weekly/monthly/total realized P&L plus an
// overall win rate.
type PnLStatistics struct {
	Daily   decimal.Decimal
	Weekly  decimal.Decimal
	Monthly decimal.Decimal
	Total   decimal.Decimal
	WinRate decimal.Decimal
}

// GetPnLStatistics computes rollups as of now for mode.
func (s *Store) GetPnLStatistics(mode config.TradingMode, now time.Time) (*PnLStatistics, error) {
	series, err := s.GetDailyPnLSeries(mode)
	if err != nil {
		return nil, err
	}

	stats := &PnLStatistics{Daily: decimal.Zero, Weekly: decimal.Zero, Monthly: decimal.Zero, Total: decimal.Zero, WinRate: decimal.Zero}
	today := now.UTC().Format("2006-01-02")
	weekAgo := now.UTC().AddDate(0, 0, -7).Format("2006-01-02")
	monthAgo := now.UTC().AddDate(0, -1, 0).Format("2006-01-02")

	for _, d := range series {
		stats.Total = stats.Total.Add(d.RealizedPnL)
		if d.Date == today {
			stats.Daily = stats.Daily.Add(d.RealizedPnL)
		}
		if d.Date >= weekAgo {
			stats.Weekly = stats.Weekly.Add(d.RealizedPnL)
		}
		if d.Date >= monthAgo {
			stats.Monthly = stats.Monthly.Add(d.RealizedPnL)
		}
	}

	s.store.RLock()
	var wins, total int64
	row := s.store.DB().QueryRow(
		`SELECT COUNT(CASE WHEN realized_pnl > '0' THEN 1 END), COUNT(*)
		 FROM position_session WHERE scope_mode = ? AND closed_at IS NOT NULL`,
		string(mode),
	)
	err = row.Scan(&wins, &total)
	s.store.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("win rate: %w", err)
	}
	if total > 0 {
		stats.WinRate = decimal.NewFromInt(wins).Div(decimal.NewFromInt(total))
	}
	return stats, nil
}
