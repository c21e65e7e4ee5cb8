// Package reconciler cross-checks live exchange state against this core's
// projections, filling gaps a dropped websocket message would otherwise
// leave, and emits DriftDetected events when the two disagree beyond
// config.DriftEpsilon.
package reconciler

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/config"
	"github.com/klingon-exchange/ledger-core/internal/eventlog"
	"github.com/klingon-exchange/ledger-core/internal/exchange"
	"github.com/klingon-exchange/ledger-core/internal/projector"
	"github.com/klingon-exchange/ledger-core/internal/types"
)

// DriftKind names which projection a Drift describes.
type DriftKind string

const (
	DriftPosition DriftKind = "position"
	DriftBalance  DriftKind = "balance"
	DriftOrder    DriftKind = "order"
)

// Drift is a detected disagreement between exchange-reported state and this
// core's projection of it.
type Drift struct {
	Kind        DriftKind
	Symbol      string // empty for account-level (balance) drift
	Asset       string // empty for symbol-level (position/order) drift
	Expected    map[string]any
	Actual      map[string]any
	Description string
}

// DriftDetector compares exchange snapshots against projector rows.
type DriftDetector struct {
	scope   types.Scope
	epsilon decimal.Decimal
}

// NewDriftDetector constructs a DriftDetector using config.DriftEpsilon.
func NewDriftDetector(scope types.Scope) *DriftDetector {
	return &DriftDetector{scope: scope, epsilon: config.DriftEpsilon}
}

// DetectPositionDrift compares an exchange position snapshot (nil if flat)
// against the projected row (nil if the projection has no row at all).
func (d *DriftDetector) DetectPositionDrift(exch *exchange.Position, proj *projector.PositionRow, symbol string) *Drift {
	switch {
	case exch != nil && proj == nil:
		return &Drift{
			Kind:        DriftPosition,
			Symbol:      symbol,
			Expected:    map[string]any{"qty": "0"},
			Actual:      map[string]any{"side": string(exch.Side), "qty": exch.Quantity.String(), "entry_price": exch.EntryPrice.String()},
			Description: fmt.Sprintf("exchange has a position, projection is empty: %s", exch.Quantity.String()),
		}

	case exch == nil && proj != nil:
		projQty, _ := decimal.NewFromString(proj.Qty)
		if projQty.IsZero() {
			return nil
		}
		return &Drift{
			Kind:        DriftPosition,
			Symbol:      symbol,
			Expected:    map[string]any{"side": proj.Side.String, "qty": projQty.String()},
			Actual:      map[string]any{"qty": "0"},
			Description: fmt.Sprintf("projection has a position, exchange is empty: %s", projQty.String()),
		}

	case exch != nil && proj != nil:
		projQty, _ := decimal.NewFromString(proj.Qty)
		if exch.Quantity.Sub(projQty).Abs().GreaterThan(d.epsilon) {
			return &Drift{
				Kind:        DriftPosition,
				Symbol:      symbol,
				Expected:    map[string]any{"side": proj.Side.String, "qty": projQty.String()},
				Actual:      map[string]any{"side": string(exch.Side), "qty": exch.Quantity.String()},
				Description: fmt.Sprintf("position qty mismatch: expected %s, actual %s", projQty.String(), exch.Quantity.String()),
			}
		}
	}
	return nil
}

// DetectBalanceDrift compares an exchange balance snapshot against the
// projected free/locked row (nil if the projection has no row at all).
func (d *DriftDetector) DetectBalanceDrift(exch exchange.Balance, proj *projector.BalanceRow) *Drift {
	exchFree := exch.AvailableBalance
	exchLocked := exch.WalletBalance.Sub(exch.AvailableBalance)
	if exchLocked.IsNegative() {
		exchLocked = decimal.Zero
	}

	if proj == nil {
		if exchFree.IsPositive() || exchLocked.IsPositive() {
			return &Drift{
				Kind:        DriftBalance,
				Asset:       exch.Asset,
				Expected:    map[string]any{"free": "0", "locked": "0"},
				Actual:      map[string]any{"free": exchFree.String(), "locked": exchLocked.String()},
				Description: fmt.Sprintf("balance not in projection: %s", exch.Asset),
			}
		}
		return nil
	}

	projFree, _ := decimal.NewFromString(proj.Free)
	projLocked, _ := decimal.NewFromString(proj.Locked)

	freeDiff := exchFree.Sub(projFree).Abs()
	lockedDiff := exchLocked.Sub(projLocked).Abs()
	if freeDiff.GreaterThan(d.epsilon) || lockedDiff.GreaterThan(d.epsilon) {
		return &Drift{
			Kind:        DriftBalance,
			Asset:       exch.Asset,
			Expected:    map[string]any{"free": projFree.String(), "locked": projLocked.String()},
			Actual:      map[string]any{"free": exchFree.String(), "locked": exchLocked.String()},
			Description: fmt.Sprintf("balance mismatch for %s: free diff=%s, locked diff=%s", exch.Asset, freeDiff.String(), lockedDiff.String()),
		}
	}
	return nil
}

// DetectOrderDrift diffs the exchange's open order ids against the
// projection's, reporting an order on one side but not the other.
func (d *DriftDetector) DetectOrderDrift(exch []exchange.Order, proj []projector.OpenOrderRow, symbol string) []Drift {
	exchIDs := make(map[string]exchange.Order, len(exch))
	for _, o := range exch {
		exchIDs[o.OrderID] = o
	}
	projIDs := make(map[string]projector.OpenOrderRow, len(proj))
	for _, o := range proj {
		if o.ExchangeOrderID != "" {
			projIDs[o.ExchangeOrderID] = o
		}
	}

	var drifts []Drift
	for id, o := range exchIDs {
		if _, ok := projIDs[id]; !ok {
			drifts = append(drifts, Drift{
				Kind:        DriftOrder,
				Symbol:      symbol,
				Expected:    map[string]any{"order_id": nil},
				Actual:      map[string]any{"order_id": id, "side": string(o.Side), "type": string(o.OrderType), "qty": o.OriginalQty.String()},
				Description: fmt.Sprintf("order %s exists on exchange but not in projection", id),
			})
		}
	}
	for id, o := range projIDs {
		if _, ok := exchIDs[id]; !ok {
			drifts = append(drifts, Drift{
				Kind:        DriftOrder,
				Symbol:      symbol,
				Expected:    map[string]any{"order_id": id, "status": o.OrderState},
				Actual:      map[string]any{"order_id": nil},
				Description: fmt.Sprintf("order %s in projection but not on exchange (may be filled/cancelled)", id),
			})
		}
	}
	return drifts
}

// NewDriftEvent builds the DriftDetected event for drift, minute-bucketed by
// eventlog.DriftDedupKey so identical flapping within one clock minute
// collapses to a single persisted event.
func (d *DriftDetector) NewDriftEvent(drift Drift, now time.Time) *eventlog.Event {
	symbol := drift.Symbol
	if symbol == "" {
		symbol = "GLOBAL"
	}
	scope := d.scope.WithSymbol(drift.Symbol)

	return &eventlog.Event{
		TS:            now,
		EventType:     eventlog.DriftDetected,
		Source:        types.SourceBot,
		EntityKind:    types.EntityEngine,
		EntityID:      fmt.Sprintf("%s:%s", drift.Kind, symbol),
		Scope:         scope,
		CorrelationID: fmt.Sprintf("drift-%s-%s", drift.Kind, symbol),
		DedupKey:      eventlog.DriftDedupKey(string(d.scope.Exchange), string(d.scope.Venue), symbol, string(drift.Kind), now),
		Payload: map[string]any{
			"drift_kind":  string(drift.Kind),
			"symbol":      drift.Symbol,
			"asset":       drift.Asset,
			"expected":    drift.Expected,
			"actual":      drift.Actual,
			"description": drift.Description,
			"detected_at": now.UTC().Format(time.RFC3339Nano),
		},
	}
}
