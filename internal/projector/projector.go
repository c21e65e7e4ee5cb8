// Package projector reads the event log from a checkpoint and folds events
// into read-optimized projection tables (balance, position, open orders,
// position sessions) so the engine and reporting layer never have to replay
// the full event log to answer "what is my current state" questions.
package projector

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/storage"
	"github.com/klingon-exchange/ledger-core/pkg/logging"
)

// DefaultCheckpointName is the checkpoint row this projector advances. A
// second consumer (the ledger entry builder) advances its own checkpoint
// under a different name against the same event_log table.
const DefaultCheckpointName = "projector"

// Handler updates one or more projection tables from a single event. Handler
// failure is swallowed by Projector.ApplyPending (logged, counted) but does
// NOT advance the checkpoint past that event's seq — the next call retries
// it, unlike a handler miss (no registered handler for the event type),
// which does advance the checkpoint since there is nothing to retry.
type Handler interface {
	HandledEventTypes() []eventlog.EventType
	Handle(tx *sql.Tx, e *eventlog.Event) error
}

// Projector drives handler dispatch from a checkpointed position in the
// event log.
type Projector struct {
	store          *storage.Storage
	checkpointName string
	handlers       map[eventlog.EventType]Handler
	log            *logging.Logger

	processedCount int64
	errorCount     int64
}

// New constructs a Projector with the default balance/position/order/
// position-session handlers registered.
func New(store *storage.Storage) *Projector {
	p := &Projector{
		store:          store,
		checkpointName: DefaultCheckpointName,
		handlers:       make(map[eventlog.EventType]Handler),
		log:            logging.GetDefault().Component("projector"),
	}
	p.Register(NewBalanceHandler())
	p.Register(NewPositionHandler())
	p.Register(NewOrderHandler())
	p.Register(NewPositionSessionHandler())
	return p
}

// Register adds (or replaces) the handler for every event type it declares.
func (p *Projector) Register(h Handler) {
	for _, t := range h.HandledEventTypes() {
		p.handlers[t] = h
	}
}

// ApplyPending processes up to batchSize events past the checkpoint and
// returns the number successfully handled. A handler failure is logged and
// counted and stops the batch there: the checkpoint is not advanced past that
// event, so it (and everything after it) is retried on the next call. Events with no registered
// handler still advance the checkpoint, since there is nothing to retry.
func (p *Projector) ApplyPending(batchSize int) (int, error) {
	lastSeq, err := p.getCheckpoint()
	if err != nil {
		return 0, fmt.Errorf("get checkpoint: %w", err)
	}

	log := eventlog.New(p.store)
	events, err := log.GetSince(lastSeq, batchSize)
	if err != nil {
		return 0, fmt.Errorf("get since: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	processed := 0
	advanceTo := lastSeq

	for _, e := range events {
		handler, ok := p.handlers[e.EventType]
		if !ok {
			advanceTo = e.Seq
			continue
		}

		if err := p.applyOne(handler, e); err != nil {
			p.errorCount++
			p.log.Error("projection handler failed", "event_id", e.EventID, "event_type", e.EventType, "err", err)
			// Stop advancing the checkpoint here; this event (and anything
			// after it) is retried on the next call.
			break
		}

		processed++
		p.processedCount++
		advanceTo = e.Seq
	}

	if advanceTo > lastSeq {
		if err := p.setCheckpoint(advanceTo); err != nil {
			return processed, fmt.Errorf("set checkpoint: %w", err)
		}
	}

	if processed > 0 {
		p.log.Debug("projected events", "count", processed, "checkpoint", advanceTo)
	}
	return processed, nil
}

func (p *Projector) applyOne(h Handler, e *eventlog.Event) error {
	p.store.Lock()
	defer p.store.Unlock()

	tx, err := p.store.DB().Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := h.Handle(tx, e); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ApplyAllPending drains the event log, calling ApplyPending repeatedly
// until a batch processes zero events and leaves the checkpoint unchanged.
func (p *Projector) ApplyAllPending(batchSize int) (int, error) {
	total := 0
	for {
		before, err := p.getCheckpoint()
		if err != nil {
			return total, fmt.Errorf("get checkpoint: %w", err)
		}
		n, err := p.ApplyPending(batchSize)
		if err != nil {
			return total, err
		}
		total += n
		after, err := p.getCheckpoint()
		if err != nil {
			return total, fmt.Errorf("get checkpoint: %w", err)
		}
		if n == 0 && after == before {
			return total, nil
		}
	}
}

// Rebuild resets the checkpoint to zero, truncates every projection table,
// and replays the full event log from scratch.
func (p *Projector) Rebuild(batchSize int) (int, error) {
	p.log.Info("starting projection rebuild")

	if err := p.setCheckpoint(0); err != nil {
		return 0, fmt.Errorf("reset checkpoint: %w", err)
	}
	if err := p.clearProjections(); err != nil {
		return 0, fmt.Errorf("clear projections: %w", err)
	}

	total, err := p.ApplyAllPending(batchSize)
	if err != nil {
		return total, err
	}
	p.log.Info("projection rebuild complete", "events", total)
	return total, nil
}

func (p *Projector) clearProjections() error {
	p.store.Lock()
	defer p.store.Unlock()

	for _, table := range []string{
		"projection_balance", "projection_position", "projection_order",
		"position_trade", "position_session",
	} {
		if _, err := p.store.DB().Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

func (p *Projector) getCheckpoint() (int64, error) {
	p.store.RLock()
	defer p.store.RUnlock()

	var seq int64
	err := p.store.DB().QueryRow(
		`SELECT last_seq FROM checkpoint_store WHERE name = ?`, p.checkpointName,
	).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (p *Projector) setCheckpoint(seq int64) error {
	p.store.Lock()
	defer p.store.Unlock()

	_, err := p.store.DB().Exec(
		`INSERT INTO checkpoint_store (name, last_seq, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET last_seq = excluded.last_seq, updated_at = excluded.updated_at`,
		p.checkpointName, seq, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Stats is a point-in-time snapshot of processing counters.
type Stats struct {
	ProcessedCount int64
	ErrorCount     int64
}

// Stats returns the accumulated processed/error counters since construction
// or the last ResetStats call.
func (p *Projector) Stats() Stats {
	return Stats{ProcessedCount: p.processedCount, ErrorCount: p.errorCount}
}

// ResetStats zeroes the processed/error counters.
func (p *Projector) ResetStats() {
	p.processedCount = 0
	p.errorCount = 0
}
