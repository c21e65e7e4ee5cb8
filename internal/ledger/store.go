package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/errs"
	"github.com/klingon-exchange/ledger-core/internal/storage"
	"github.com/klingon-exchange/ledger-core/pkg/logging"
)

// Store persists journal entries and maintains per-account running
// balances. save_entry is all-or-nothing: a failure during line insertion
// or balance update rolls back the header.
type Store struct {
	store *storage.Storage
	log   *logging.Logger
}

// New constructs a Store over the given shared storage and seeds the fixed
// chart of accounts if not already present.
func New(store *storage.Storage) (*Store, error) {
	s := &Store{store: store, log: logging.GetDefault().Component("ledger")}
	if err := s.seedChartOfAccounts(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) seedChartOfAccounts() error {
	s.store.Lock()
	defer s.store.Unlock()

	for _, a := range config.SeedChartOfAccounts() {
		_, err := s.store.DB().Exec(
			`INSERT OR IGNORE INTO account (account_id, account_type, venue, asset, name, active)
			 VALUES (?, ?, ?, ?, ?, 1)`,
			a.AccountID, string(a.Type), string(a.Venue), nullable(a.Asset), a.Name,
		)
		if err != nil {
			return fmt.Errorf("seed account %s: %w", a.AccountID, err)
		}
	}
	return nil
}

// EnsureAssetAccount creates an ASSET:venue:asset account if it does not
// already exist. Idempotent and safe under concurrent invocation since the
// underlying insert uses INSERT OR IGNORE.
func (s *Store) EnsureAssetAccount(venue config.LedgerVenue, asset string) (string, error) {
	accountID := AssetAccountID(venue, asset)

	s.store.Lock()
	defer s.store.Unlock()

	_, err := s.store.DB().Exec(
		`INSERT OR IGNORE INTO account (account_id, account_type, venue, asset, name, active)
		 VALUES (?, 'ASSET', ?, ?, ?, 1)`,
		accountID, string(venue), asset, fmt.Sprintf("%s %s", venue, asset),
	)
	if err != nil {
		return "", fmt.Errorf("ensure_asset_account %s: %w", accountID, err)
	}
	return accountID, nil
}

// SaveEntry validates the entry balances, then persists the header, lines,
// and per-account running balances inside one transaction.
func (s *Store) SaveEntry(entry *JournalEntry) error {
	if !entry.IsBalanced() {
		return &errs.LedgerImbalanceError{
			EntryID:     entry.EntryID,
			DebitTotal:  entry.DebitTotal().String(),
			CreditTotal: entry.CreditTotal().String(),
		}
	}

	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.TS.IsZero() {
		entry.TS = time.Now().UTC()
	}

	s.store.Lock()
	defer s.store.Unlock()

	tx, err := s.store.DB().Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rawJSON, err := json.Marshal(entry.RawPayload)
	if err != nil {
		return fmt.Errorf("marshal raw payload: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO journal_entry
			(entry_id, ts, transaction_type, scope_mode, trade_id, order_id, position_id,
			 symbol, source_event_id, description, memo, is_balanced, raw_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		entry.EntryID, entry.TS.Format(time.RFC3339Nano), string(entry.TransactionType), string(entry.Mode),
		nullable(entry.TradeID), nullable(entry.OrderID), nullable(entry.PositionID),
		nullable(entry.Symbol), entry.SourceEventID, nullable(entry.Description), nullable(entry.Memo),
		string(rawJSON),
	)
	if err != nil {
		return fmt.Errorf("insert journal_entry: %w", err)
	}

	for i, line := range entry.Lines {
		line.LineOrder = i
		_, err = tx.Exec(
			`INSERT INTO journal_line
				(entry_id, line_order, account_id, side, amount, asset, usdt_value, usdt_rate, memo)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.EntryID, line.LineOrder, line.AccountID, string(line.Side),
			line.Amount.String(), line.Asset, line.UsdtValue.String(), line.UsdtRate.String(),
			nullable(line.Memo),
		)
		if err != nil {
			return fmt.Errorf("insert journal_line %d: %w", i, err)
		}

		if err := upsertAccountBalance(tx, line.AccountID, entry.Mode, line.SignedAmount(), entry.EntryID, entry.TS); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func upsertAccountBalance(tx *sql.Tx, accountID string, mode config.TradingMode, delta decimal.Decimal, entryID string, ts time.Time) error {
	var current string
	err := tx.QueryRow(
		`SELECT balance FROM account_balance WHERE account_id = ? AND scope_mode = ?`,
		accountID, string(mode),
	).Scan(&current)

	var newBalance decimal.Decimal
	switch {
	case err == sql.ErrNoRows:
		newBalance = delta
	case err != nil:
		return fmt.Errorf("read account_balance %s: %w", accountID, err)
	default:
		existing, perr := decimal.NewFromString(current)
		if perr != nil {
			return fmt.Errorf("parse existing balance %s: %w", accountID, perr)
		}
		newBalance = existing.Add(delta)
	}

	_, err = tx.Exec(
		`INSERT INTO account_balance (account_id, scope_mode, balance, last_entry_id, last_entry_ts, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(account_id, scope_mode) DO UPDATE SET
			balance = excluded.balance,
			last_entry_id = excluded.last_entry_id,
			last_entry_ts = excluded.last_entry_ts,
			updated_at = excluded.updated_at`,
		accountID, string(mode), newBalance.String(), entryID, ts.Format(time.RFC3339Nano), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert account_balance %s: %w", accountID, err)
	}
	return nil
}

// GetAccountBalance returns the current balance of account_id under mode.
// A missing row is reported as zero, not an error — an account with no
// postings yet has an implicit zero balance.
func (s *Store) GetAccountBalance(accountID string, mode config.TradingMode) (decimal.Decimal, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	var balance string
	err := s.store.DB().QueryRow(
		`SELECT balance FROM account_balance WHERE account_id = ? AND scope_mode = ?`,
		accountID, string(mode),
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("get_account_balance: %w", err)
	}
	return decimal.NewFromString(balance)
}

// TrialBalanceRow is one line of the trial balance: an account and its
// current running balance.
type TrialBalanceRow struct {
	AccountID   string
	AccountType config.AccountType
	Balance     decimal.Decimal
}

// GetTrialBalance returns every account with a non-zero balance under mode.
func (s *Store) GetTrialBalance(mode config.TradingMode) ([]TrialBalanceRow, error) {
	s.store.RLock()
	defer s.store.RUnlock()

	rows, err := s.store.DB().Query(
		`SELECT ab.account_id, a.account_type, ab.balance
		 FROM account_balance ab
		 JOIN account a ON a.account_id = ab.account_id
		 WHERE ab.scope_mode = ? AND ab.balance != '0'
		 ORDER BY ab.account_id`,
		string(mode),
	)
	if err != nil {
		return nil, fmt.Errorf("get_trial_balance: %w", err)
	}
	defer rows.Close()

	var out []TrialBalanceRow
	for rows.Next() {
		var r TrialBalanceRow
		var accountType, balance string
		if err := rows.Scan(&r.AccountID, &accountType, &balance); err != nil {
			return nil, fmt.Errorf("scan trial balance row: %w", err)
		}
		r.AccountType = config.AccountType(accountType)
		r.Balance, err = decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("parse balance: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetEntry returns a single journal entry by id with its lines, or
// sql.ErrNoRows if not found.
func (s *Store) GetEntry(entryID string) (*JournalEntry, error) {
	s.store.RLock()
	defer s.store.RUnlock()
	return s.getEntryLocked(entryID)
}

func (s *Store) getEntryLocked(entryID string) (*JournalEntry, error) {
	entry := &JournalEntry{}
	var ts, txType, mode, tradeID, orderID, positionID, symbol, description, memo, rawJSON sql.NullString
	err := s.store.DB().QueryRow(
		`SELECT entry_id, ts, transaction_type, scope_mode, trade_id, order_id, position_id,
			symbol, source_event_id, description, memo, raw_data
		 FROM journal_entry WHERE entry_id = ?`,
		entryID,
	).Scan(&entry.EntryID, &ts, &txType, &mode, &tradeID, &orderID, &positionID,
		&symbol, &entry.SourceEventID, &description, &memo, &rawJSON)
	if err != nil {
		return nil, err
	}
	entry.TS, _ = time.Parse(time.RFC3339Nano, ts.String)
	entry.TransactionType = TransactionType(txType.String)
	entry.Mode = config.TradingMode(mode.String)
	entry.TradeID = tradeID.String
	entry.OrderID = orderID.String
	entry.PositionID = positionID.String
	entry.Symbol = symbol.String
	entry.Description = description.String
	entry.Memo = memo.String
	if rawJSON.Valid {
		_ = json.Unmarshal([]byte(rawJSON.String), &entry.RawPayload)
	}

	lineRows, err := s.store.DB().Query(
		`SELECT line_order, account_id, side, amount, asset, usdt_value, usdt_rate, memo
		 FROM journal_line WHERE entry_id = ? ORDER BY line_order`,
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var l JournalLine
		var side, amount, usdtValue, usdtRate string
		var memo sql.NullString
		if err := lineRows.Scan(&l.LineOrder, &l.AccountID, &side, &amount, &l.Asset, &usdtValue, &usdtRate, &memo); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		l.Side = JournalSide(side)
		l.Amount, _ = decimal.NewFromString(amount)
		l.UsdtValue, _ = decimal.NewFromString(usdtValue)
		l.UsdtRate, _ = decimal.NewFromString(usdtRate)
		l.Memo = memo.String
		entry.Lines = append(entry.Lines, l)
	}
	return entry, lineRows.Err()
}

// GetEntriesByAccount returns up to limit entries, most recent first, that
// post at least one line against accountID.
func (s *Store) GetEntriesByAccount(accountID string, limit int) ([]*JournalEntry, error) {
	return s.entriesByFilter("journal_line jl JOIN journal_entry je ON je.entry_id = jl.entry_id WHERE jl.account_id = ?", accountID, limit)
}

// GetEntriesByType returns up to limit entries of the given transaction
// type, most recent first.
func (s *Store) GetEntriesByType(txType TransactionType, limit int) ([]*JournalEntry, error) {
	return s.entriesByFilter("journal_entry je WHERE je.transaction_type = ?", string(txType), limit)
}

// GetEntriesBySuspense returns up to limit entries posted against the
// suspense account, most recent first.
func (s *Store) GetEntriesBySuspense(limit int) ([]*JournalEntry, error) {
	return s.GetEntriesByAccount(AccountSuspense, limit)
}

func (s *Store) entriesByFilter(fromWhere string, arg any, limit int) ([]*JournalEntry, error) {
	s.store.RLock()
	rows, err := s.store.DB().Query(
		fmt.Sprintf(`SELECT DISTINCT je.entry_id, je.ts FROM %s ORDER BY je.ts DESC LIMIT ?`, fromWhere),
		arg, limit,
	)
	s.store.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, ts string
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, fmt.Errorf("scan entry id: %w", err)
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

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
