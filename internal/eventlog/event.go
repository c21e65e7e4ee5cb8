// Package eventlog implements the append-only, deduplicated, strictly
// sequenced event store at the base of the ledger core, plus the dedup-key
// grammars every producer must use.
package eventlog

import (
	"time"

	"github.com/klingon-exchange/ledger-core/internal/types"
)

// EventType is drawn from the closed enumeration the core consumes and
// emits. Families: engine lifecycle, connection, orders/trades,
// balance/position/fee, movement, integrity, capital — plus the
// BNB-fee-management and convert/rebate supplements recovered from the
// pre-distillation source. The fiat-rail bridge's multi-step events are
// deliberately not represented here.
type EventType string

const (
	// Engine lifecycle
	EngineStarted           EventType = "EngineStarted"
	EngineStopped           EventType = "EngineStopped"
	EnginePaused            EventType = "EnginePaused"
	EngineResumed           EventType = "EngineResumed"
	EngineModeChanged       EventType = "EngineModeChanged"
	ManualOverrideExecuted  EventType = "ManualOverrideExecuted"
	RiskGuardRejected       EventType = "RiskGuardRejected"
	ConfigChanged           EventType = "ConfigChanged"

	// Connection
	WebSocketConnected    EventType = "WebSocketConnected"
	WebSocketDisconnected EventType = "WebSocketDisconnected"
	WebSocketReconnected  EventType = "WebSocketReconnected"

	// Orders / trades
	OrderPlaced    EventType = "OrderPlaced"
	OrderRejected  EventType = "OrderRejected"
	OrderCancelled EventType = "OrderCancelled"
	OrderUpdated   EventType = "OrderUpdated"
	TradeExecuted  EventType = "TradeExecuted"

	// Balance / position / fee
	PositionChanged EventType = "PositionChanged"
	BalanceChanged  EventType = "BalanceChanged"
	FeeCharged      EventType = "FeeCharged"
	FundingApplied  EventType = "FundingApplied"

	// Movement
	InternalTransferRequested EventType = "InternalTransferRequested"
	InternalTransferCompleted EventType = "InternalTransferCompleted"
	InternalTransferFailed    EventType = "InternalTransferFailed"
	DepositInitiated          EventType = "DepositInitiated"
	DepositCompleted          EventType = "DepositCompleted"
	WithdrawInitiated         EventType = "WithdrawInitiated"
	WithdrawCompleted         EventType = "WithdrawCompleted"
	DustConverted             EventType = "DustConverted"
	ConvertExecuted           EventType = "ConvertExecuted"

	// Integrity
	DriftDetected            EventType = "DriftDetected"
	ReconciliationPerformed  EventType = "ReconciliationPerformed"
	QuarantineStarted        EventType = "QuarantineStarted"
	QuarantineCompleted      EventType = "QuarantineCompleted"

	// Capital
	InitialCapitalEstablished EventType = "InitialCapitalEstablished"
	OpeningBalanceAdjusted    EventType = "OpeningBalanceAdjusted"

	// BNB fee management (lifecycle only; resulting balance changes flow
	// through BalanceChanged)
	BnbBalanceLow          EventType = "BnbBalanceLow"
	BnbReplenishStarted    EventType = "BnbReplenishStarted"
	BnbReplenishCompleted  EventType = "BnbReplenishCompleted"
	BnbReplenishFailed     EventType = "BnbReplenishFailed"

	// Commission rebate
	CommissionRebateReceived EventType = "CommissionRebateReceived"
)

// nonFinancialEventTypes is the denylist the Ledger Entry Builder's step 3
// consults: engine lifecycle, connection, integrity, and config-changed
// events never produce a journal entry, reproduced in meaning from the
// pre-distillation source's NON_FINANCIAL_EVENT_TYPES set.
var nonFinancialEventTypes = map[EventType]bool{
	EngineStarted:             true,
	EngineStopped:             true,
	EnginePaused:              true,
	EngineResumed:             true,
	EngineModeChanged:         true,
	ManualOverrideExecuted:    true,
	RiskGuardRejected:         true,
	ConfigChanged:             true,
	WebSocketConnected:        true,
	WebSocketDisconnected:     true,
	WebSocketReconnected:      true,
	DriftDetected:             true,
	ReconciliationPerformed:   true,
	QuarantineStarted:         true,
	QuarantineCompleted:       true,
	OrderPlaced:               true,
	OrderUpdated:              true,
	DepositInitiated:          true,
	WithdrawInitiated:         true,
	InternalTransferRequested: true,
	InternalTransferFailed:    true,
	BnbBalanceLow:             true,
	BnbReplenishStarted:       true,
	BnbReplenishCompleted:     true,
	BnbReplenishFailed:        true,
}

// IsNonFinancial reports whether t is on the Ledger Entry Builder's denylist.
func IsNonFinancial(t EventType) bool {
	return nonFinancialEventTypes[t]
}

// Event is the immutable record persisted by the log. Once appended, seq is
// assigned and the event is never mutated, updated, or deleted.
type Event struct {
	EventID       string
	Seq           int64 // 0 before persistence
	TS            time.Time
	EventType     EventType
	Source        types.EventSource
	EntityKind    types.EntityKind
	EntityID      string
	Scope         types.Scope
	CorrelationID string
	CausationID   string // optional
	CommandID     string // optional
	DedupKey      string
	Payload       map[string]any
}
