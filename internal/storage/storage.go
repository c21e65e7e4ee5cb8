// Package storage provides the single SQLite-backed persistence layer shared
// by the event log, projections, and ledger. All writes serialize through
// one connection, matching SQLite's single-writer model.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage wraps the shared database connection.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// New opens (creating if necessary) the SQLite database under cfg.DataDir
// and initializes the schema.
func New(cfg *Config) (*Storage, error) {
	dataDir := expandPath(cfg.DataDir)

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ledger.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite only supports one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection, for packages that need to
// run their own statements against the shared connection.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Lock acquires the write lock guarding multi-statement transactions.
// SQLite serializes writes at the connection level already; this additionally
// protects read-modify-write sequences (e.g. upsert-then-read-back) that span
// more than one statement.
func (s *Storage) Lock() {
	s.mu.Lock()
}

// Unlock releases the write lock.
func (s *Storage) Unlock() {
	s.mu.Unlock()
}

// RLock acquires the read lock.
func (s *Storage) RLock() {
	s.mu.RLock()
}

// RUnlock releases the read lock.
func (s *Storage) RUnlock() {
	s.mu.RUnlock()
}

func (s *Storage) initSchema() error {
	schema := `
	-- =========================================================================
	-- Event Log
	-- =========================================================================

	CREATE TABLE IF NOT EXISTS event_log (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id        TEXT NOT NULL UNIQUE,
		dedup_key       TEXT NOT NULL UNIQUE,
		ts              TEXT NOT NULL,
		event_type      TEXT NOT NULL,
		source          TEXT NOT NULL,
		entity_kind     TEXT NOT NULL,
		entity_id       TEXT NOT NULL,
		scope_exchange  TEXT NOT NULL,
		scope_venue     TEXT NOT NULL,
		scope_account   TEXT NOT NULL,
		scope_symbol    TEXT,
		scope_mode      TEXT NOT NULL,
		correlation_id  TEXT NOT NULL,
		causation_id    TEXT,
		command_id      TEXT,
		payload_json    TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_event_log_type ON event_log(event_type);
	CREATE INDEX IF NOT EXISTS idx_event_log_entity ON event_log(entity_kind, entity_id);
	CREATE INDEX IF NOT EXISTS idx_event_log_scope ON event_log(scope_exchange, scope_venue, scope_account, scope_mode);

	-- =========================================================================
	-- Checkpoints (one per independent consumer: projector, ledger builder)
	-- =========================================================================

	CREATE TABLE IF NOT EXISTS checkpoint_store (
		name       TEXT PRIMARY KEY,
		last_seq   INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);

	-- =========================================================================
	-- Projections
	-- =========================================================================

	CREATE TABLE IF NOT EXISTS projection_balance (
		scope_exchange   TEXT NOT NULL,
		scope_venue      TEXT NOT NULL,
		scope_account    TEXT NOT NULL,
		scope_mode       TEXT NOT NULL,
		asset            TEXT NOT NULL,
		free             TEXT NOT NULL DEFAULT '0',
		locked           TEXT NOT NULL DEFAULT '0',
		last_event_seq   INTEGER NOT NULL,
		updated_at       TEXT NOT NULL,
		PRIMARY KEY (scope_exchange, scope_venue, scope_account, scope_mode, asset)
	);

	CREATE TABLE IF NOT EXISTS projection_position (
		scope_exchange   TEXT NOT NULL,
		scope_venue      TEXT NOT NULL,
		scope_account    TEXT NOT NULL,
		scope_mode       TEXT NOT NULL,
		symbol           TEXT NOT NULL,
		side             TEXT,
		qty              TEXT NOT NULL DEFAULT '0',
		entry_price      TEXT NOT NULL DEFAULT '0',
		unrealized_pnl   TEXT NOT NULL DEFAULT '0',
		leverage         INTEGER NOT NULL DEFAULT 1,
		margin_type      TEXT NOT NULL DEFAULT 'CROSS',
		last_event_seq   INTEGER NOT NULL,
		updated_at       TEXT NOT NULL,
		PRIMARY KEY (scope_exchange, scope_venue, scope_account, scope_mode, symbol)
	);

	CREATE TABLE IF NOT EXISTS projection_order (
		scope_exchange    TEXT NOT NULL,
		scope_venue       TEXT NOT NULL,
		scope_account     TEXT NOT NULL,
		scope_mode        TEXT NOT NULL,
		scope_symbol      TEXT NOT NULL,
		exchange_order_id TEXT NOT NULL,
		client_order_id   TEXT,
		order_state       TEXT NOT NULL,
		side              TEXT NOT NULL,
		order_type        TEXT NOT NULL,
		original_qty      TEXT NOT NULL,
		executed_qty      TEXT NOT NULL DEFAULT '0',
		price             TEXT,
		stop_price        TEXT,
		last_event_seq    INTEGER NOT NULL,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL,
		PRIMARY KEY (scope_exchange, scope_venue, scope_account, scope_mode, exchange_order_id)
	);

	-- Position-lifecycle rows, opened on entry and closed on flatten, feeding
	-- win-rate / avg-win / avg-loss reporting that cannot be derived from
	-- journal lines alone.
	CREATE TABLE IF NOT EXISTS position_session (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id       TEXT NOT NULL UNIQUE,
		scope_exchange   TEXT NOT NULL,
		scope_venue      TEXT NOT NULL,
		scope_account    TEXT NOT NULL,
		scope_mode       TEXT NOT NULL,
		symbol           TEXT NOT NULL,
		side             TEXT NOT NULL,
		opened_at        TEXT NOT NULL,
		closed_at        TEXT,
		max_qty          TEXT NOT NULL DEFAULT '0',
		realized_pnl     TEXT NOT NULL DEFAULT '0',
		total_commission TEXT NOT NULL DEFAULT '0',
		trade_count      INTEGER NOT NULL DEFAULT 0,
		last_event_seq   INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_position_session_open
		ON position_session(scope_exchange, scope_venue, scope_account, scope_mode, symbol)
		WHERE closed_at IS NULL;

	-- Per-fill ledger within a position session, used to derive the running
	-- position quantity without replaying journal lines.
	CREATE TABLE IF NOT EXISTS position_trade (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id          TEXT NOT NULL,
		trade_event_id      TEXT NOT NULL,
		action              TEXT NOT NULL,
		qty                 TEXT NOT NULL,
		price               TEXT NOT NULL,
		realized_pnl        TEXT NOT NULL DEFAULT '0',
		commission          TEXT NOT NULL DEFAULT '0',
		position_qty_after  TEXT NOT NULL,
		created_at          TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES position_session(session_id)
	);

	CREATE INDEX IF NOT EXISTS idx_position_trade_session ON position_trade(session_id);

	-- =========================================================================
	-- Ledger
	-- =========================================================================

	CREATE TABLE IF NOT EXISTS account (
		account_id   TEXT PRIMARY KEY,
		account_type TEXT NOT NULL,
		venue        TEXT NOT NULL,
		asset        TEXT,
		name         TEXT NOT NULL,
		active       INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS journal_entry (
		entry_id         TEXT PRIMARY KEY,
		ts               TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		scope_mode       TEXT NOT NULL,
		trade_id         TEXT,
		order_id         TEXT,
		position_id      TEXT,
		symbol           TEXT,
		source_event_id  TEXT NOT NULL,
		description      TEXT,
		memo             TEXT,
		is_balanced      INTEGER NOT NULL,
		raw_data         TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_journal_entry_type ON journal_entry(transaction_type);
	CREATE INDEX IF NOT EXISTS idx_journal_entry_source ON journal_entry(source_event_id);
	CREATE INDEX IF NOT EXISTS idx_journal_entry_trade ON journal_entry(trade_id);
	CREATE INDEX IF NOT EXISTS idx_journal_entry_symbol ON journal_entry(symbol, ts);

	CREATE TABLE IF NOT EXISTS journal_line (
		entry_id    TEXT NOT NULL,
		line_order  INTEGER NOT NULL,
		account_id  TEXT NOT NULL,
		side        TEXT NOT NULL,
		amount      TEXT NOT NULL,
		asset       TEXT NOT NULL,
		usdt_value  TEXT NOT NULL,
		usdt_rate   TEXT NOT NULL,
		memo        TEXT,
		PRIMARY KEY (entry_id, line_order),
		FOREIGN KEY (entry_id) REFERENCES journal_entry(entry_id)
	);

	CREATE INDEX IF NOT EXISTS idx_journal_line_account ON journal_line(account_id);

	CREATE TABLE IF NOT EXISTS account_balance (
		account_id     TEXT NOT NULL,
		scope_mode     TEXT NOT NULL,
		balance        TEXT NOT NULL DEFAULT '0',
		last_entry_id  TEXT,
		last_entry_ts  TEXT,
		updated_at     TEXT NOT NULL,
		PRIMARY KEY (account_id, scope_mode)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
