package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/klingon-exchange/ledger-core/internal/storage"
	"github.com/klingon-exchange/ledger-core/internal/types"
	"github.com/klingon-exchange/ledger-core/pkg/logging"
)

// Log is the append-only, deduplicated, strictly sequenced event store.
// All writes serialize through the shared storage connection, which gives
// append its gap-free monotonic seq assignment for free.
type Log struct {
	store *storage.Storage
	log   *logging.Logger
}

// New constructs a Log over the given shared storage.
func New(store *storage.Storage) *Log {
	return &Log{store: store, log: logging.GetDefault().Component("eventlog")}
}

// Append inserts e, assigning EventID and Seq if unset. Returns (true, nil)
// if the event was newly stored, (false, nil) if an event with the same
// DedupKey was already persisted — never an error for that case, since
// deduplication rejection is never fatal (logged at debug level).
func (l *Log) Append(e *Event) (bool, error) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.TS.IsZero() {
		e.TS = time.Now().UTC()
	}

	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return false, fmt.Errorf("marshal payload: %w", err)
	}

	l.store.Lock()
	defer l.store.Unlock()

	res, err := l.store.DB().Exec(
		`INSERT OR IGNORE INTO event_log
			(event_id, dedup_key, ts, event_type, source, entity_kind, entity_id,
			 scope_exchange, scope_venue, scope_account, scope_symbol, scope_mode,
			 correlation_id, causation_id, command_id, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.DedupKey, e.TS.Format(time.RFC3339Nano), string(e.EventType), string(e.Source),
		string(e.EntityKind), e.EntityID, string(e.Scope.Exchange), string(e.Scope.Venue),
		e.Scope.AccountID, nullable(e.Scope.Symbol), string(e.Scope.Mode),
		e.CorrelationID, nullable(e.CausationID), nullable(e.CommandID), string(payloadJSON),
	)
	if err != nil {
		return false, fmt.Errorf("append event: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		l.log.Debug("duplicate event rejected", "dedup_key", e.DedupKey)
		return false, nil
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	e.Seq = seq
	return true, nil
}

// GetSince returns up to limit events with seq > afterSeq in ascending seq
// order.
func (l *Log) GetSince(afterSeq int64, limit int) ([]*Event, error) {
	l.store.RLock()
	defer l.store.RUnlock()

	rows, err := l.store.DB().Query(
		`SELECT seq, event_id, dedup_key, ts, event_type, source, entity_kind, entity_id,
			scope_exchange, scope_venue, scope_account, scope_symbol, scope_mode,
			correlation_id, causation_id, command_id, payload_json
		 FROM event_log WHERE seq > ? ORDER BY seq ASC LIMIT ?`,
		afterSeq, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get_since: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetByType returns up to limit most-recent events of the given type, in
// ascending seq order.
func (l *Log) GetByType(t EventType, limit int) ([]*Event, error) {
	l.store.RLock()
	defer l.store.RUnlock()

	rows, err := l.store.DB().Query(
		`SELECT seq, event_id, dedup_key, ts, event_type, source, entity_kind, entity_id,
			scope_exchange, scope_venue, scope_account, scope_symbol, scope_mode,
			correlation_id, causation_id, command_id, payload_json
		 FROM (SELECT * FROM event_log WHERE event_type = ? ORDER BY seq DESC LIMIT ?)
		 ORDER BY seq ASC`,
		string(t), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get_by_type: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Count returns the total number of events persisted.
func (l *Log) Count() (int64, error) {
	l.store.RLock()
	defer l.store.RUnlock()

	var n int64
	err := l.store.DB().QueryRow(`SELECT COUNT(*) FROM event_log`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e := &Event{}
		var ts, exchange, venue, account, mode, payloadJSON string
		var symbol, causationID, commandID sql.NullString
		if err := rows.Scan(
			&e.Seq, &e.EventID, &e.DedupKey, &ts, &e.EventType, &e.Source, &e.EntityKind, &e.EntityID,
			&exchange, &venue, &account, &symbol, &mode,
			&e.CorrelationID, &causationID, &commandID, &payloadJSON,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		parsedTS, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse ts: %w", err)
		}
		e.TS = parsedTS
		e.CausationID = causationID.String
		e.CommandID = commandID.String
		e.Scope = types.Scope{
			Exchange:  typedExchange(exchange),
			Venue:     typedVenue(venue),
			AccountID: account,
			Symbol:    symbol.String,
			Mode:      typedMode(mode),
		}

		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		e.Payload = payload

		events = append(events, e)
	}
	return events, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
