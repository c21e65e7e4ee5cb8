package projector

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/klingon-exchange/ledger-core/internal/eventlog"
)

// BalanceHandler folds BalanceChanged events into projection_balance.
type BalanceHandler struct{}

// NewBalanceHandler constructs a BalanceHandler.
func NewBalanceHandler() *BalanceHandler { return &BalanceHandler{} }

// HandledEventTypes implements Handler.
func (h *BalanceHandler) HandledEventTypes() []eventlog.EventType {
	return []eventlog.EventType{eventlog.BalanceChanged}
}

// Handle implements Handler. The wallet/available/cross-wallet field names
// vary between the websocket user-data stream and REST snapshots; free is
// resolved in that priority order, falling back to "0".
func (h *BalanceHandler) Handle(tx *sql.Tx, e *eventlog.Event) error {
	asset, err := payloadString(e.Payload, "asset")
	if err != nil {
		return fmt.Errorf("balance projection: %w", err)
	}

	wallet := payloadDecimalOrNil(e.Payload, "wallet_balance")
	available := payloadDecimalOrNil(e.Payload, "available_balance")
	cross := payloadDecimalOrNil(e.Payload, "cross_wallet_balance")

	free := available
	if free == nil {
		free = cross
	}
	if free == nil {
		free = wallet
	}

	locked := "0"
	if wallet != nil && free != nil && wallet.GreaterThan(*free) {
		locked = wallet.Sub(*free).String()
	}
	freeStr := "0"
	if free != nil {
		freeStr = free.String()
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.Exec(
		`INSERT INTO projection_balance
			(scope_exchange, scope_venue, scope_account, scope_mode, asset, free, locked, last_event_seq, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(scope_exchange, scope_venue, scope_account, scope_mode, asset)
		 DO UPDATE SET free = excluded.free, locked = excluded.locked,
			last_event_seq = excluded.last_event_seq, updated_at = excluded.updated_at`,
		string(e.Scope.Exchange), string(e.Scope.Venue), e.Scope.AccountID, string(e.Scope.Mode),
		asset, freeStr, locked, e.Seq, now,
	)
	return err
}

func payloadDecimalOrNil(payload map[string]any, key string) *decimal.Decimal {
	v, ok := payload[key]
	if !ok || v == nil {
		return nil
	}
	d := payloadDecimalOr(payload, key, decimal.Zero)
	return &d
}
