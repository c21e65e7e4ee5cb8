package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/storage"
	"github.com/klingon-exchange/ledger-core/pkg/logging"
)

// RunnerCheckpointName is the checkpoint row the Runner advances, distinct
// from projector.DefaultCheckpointName so the two consumers of event_log
// replay independently and a failure in one never blocks the other.
const RunnerCheckpointName = "ledger-entry-builder"

// Runner drives the entry builder from a checkpointed position in the event
// log, mirroring the projector's apply-pending loop: a build failure halts
// the batch without advancing the checkpoint past the failing event, so the
// next call retries it.
type Runner struct {
	store          *storage.Storage
	ledgerStore    *Store
	builder        *Builder
	checkpointName string
	log            *logging.Logger

	processedCount int64
	errorCount     int64
}

// NewRunner constructs a Runner over store's shared storage.
func NewRunner(store *storage.Storage, ledgerStore *Store, builder *Builder) *Runner {
	return &Runner{
		store:          store,
		ledgerStore:    ledgerStore,
		builder:        builder,
		checkpointName: RunnerCheckpointName,
		log:            logging.GetDefault().Component("ledger-runner"),
	}
}

// ApplyPending builds and saves journal entries for up to batchSize events
// past the checkpoint, returning the number of entries saved. Events that
// produce no entry (epoch-filtered, non-financial, or the sub-builder
// decided nothing should post) still advance the checkpoint.
func (r *Runner) ApplyPending(batchSize int) (int, error) {
	lastSeq, err := r.getCheckpoint()
	if err != nil {
		return 0, fmt.Errorf("get checkpoint: %w", err)
	}

	log := eventlog.New(r.store)
	events, err := log.GetSince(lastSeq, batchSize)
	if err != nil {
		return 0, fmt.Errorf("get since: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	saved := 0
	advanceTo := lastSeq

	for _, e := range events {
		entry, err := r.builder.Build(e)
		if err != nil {
			r.errorCount++
			r.log.Error("entry build failed", "event_id", e.EventID, "event_type", e.EventType, "err", err)
			break
		}

		if entry != nil {
			if err := r.ledgerStore.SaveEntry(entry); err != nil {
				r.errorCount++
				r.log.Error("entry save failed", "event_id", e.EventID, "event_type", e.EventType, "err", err)
				break
			}
			saved++
			r.processedCount++
		}

		advanceTo = e.Seq
	}

	if advanceTo > lastSeq {
		if err := r.setCheckpoint(advanceTo); err != nil {
			return saved, fmt.Errorf("set checkpoint: %w", err)
		}
	}

	if saved > 0 {
		r.log.Debug("built ledger entries", "count", saved, "checkpoint", advanceTo)
	}
	return saved, nil
}

// ApplyAllPending drains the event log, calling ApplyPending repeatedly
// until a batch saves zero entries and leaves the checkpoint unchanged.
func (r *Runner) ApplyAllPending(batchSize int) (int, error) {
	total := 0
	for {
		before, err := r.getCheckpoint()
		if err != nil {
			return total, fmt.Errorf("get checkpoint: %w", err)
		}
		n, err := r.ApplyPending(batchSize)
		if err != nil {
			return total, err
		}
		total += n
		after, err := r.getCheckpoint()
		if err != nil {
			return total, fmt.Errorf("get checkpoint: %w", err)
		}
		if n == 0 && after == before {
			return total, nil
		}
	}
}

func (r *Runner) getCheckpoint() (int64, error) {
	r.store.RLock()
	defer r.store.RUnlock()

	var seq int64
	err := r.store.DB().QueryRow(
		`SELECT last_seq FROM checkpoint_store WHERE name = ?`, r.checkpointName,
	).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *Runner) setCheckpoint(seq int64) error {
	r.store.Lock()
	defer r.store.Unlock()

	_, err := r.store.DB().Exec(
		`INSERT INTO checkpoint_store (name, last_seq, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET last_seq = excluded.last_seq, updated_at = excluded.updated_at`,
		r.checkpointName, seq, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// RunnerStats is a point-in-time snapshot of Runner processing counters.
type RunnerStats struct {
	ProcessedCount int64
	ErrorCount     int64
}

// Stats returns the accumulated processed/error counters since construction.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{ProcessedCount: r.processedCount, ErrorCount: r.errorCount}
}
