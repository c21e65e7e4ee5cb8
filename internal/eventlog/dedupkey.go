package eventlog

import (
	"fmt"
	"time"
)

// Dedup-key grammars are bit-exact; altering any of these breaks
// deduplication against events already persisted under the old grammar.

// TradeDedupKey builds the key for a trade observed via WebSocket or REST:
// exch:venue:sym:trade:<trade_id>. The same trade reported by both
// transports collides on this key, so only one TradeExecuted is stored.
func TradeDedupKey(exchange, venue, symbol, tradeID string) string {
	return fmt.Sprintf("%s:%s:%s:trade:%s", exchange, venue, symbol, tradeID)
}

// OrderStateDedupKey builds the key for a definitive order state change
// (placed, cancelled): exch:venue:sym:order:<order_id>.
func OrderStateDedupKey(exchange, venue, symbol, orderID string) string {
	return fmt.Sprintf("%s:%s:%s:order:%s", exchange, venue, symbol, orderID)
}

// OrderPollDedupKey builds the key for a REST-sourced order snapshot that
// carries no unique state-transition identity of its own:
// exch:venue:sym:order:<order_id>:state:<timestamp_ms>.
func OrderPollDedupKey(exchange, venue, symbol, orderID string, timestampMs int64) string {
	return fmt.Sprintf("%s:%s:%s:order:%s:state:%d", exchange, venue, symbol, orderID, timestampMs)
}

// BalanceWsDedupKey builds the key for a WebSocket-sourced balance update,
// bucketed by the exchange-supplied update time:
// exch:venue:acct:<asset>:balance:<exchange_update_time_ms>.
func BalanceWsDedupKey(exchange, venue, account, asset string, updateTimeMs int64) string {
	return fmt.Sprintf("%s:%s:%s:%s:balance:%d", exchange, venue, account, asset, updateTimeMs)
}

// BalanceRestDedupKey builds the key for a REST-polled balance snapshot,
// bucketed by the poll timestamp so a repeated snapshot collapses:
// exch:venue:acct:<asset>:balance:<poll_ms>.
func BalanceRestDedupKey(exchange, venue, account, asset string, pollMs int64) string {
	return fmt.Sprintf("%s:%s:%s:%s:balance:%d", exchange, venue, account, asset, pollMs)
}

// DriftDedupKey builds the key for a drift event, bucketed to the minute so
// identical drift flapping within one clock minute collapses to a single
// persisted event: exch:venue:sym:<drift_kind>:<YYYY-MM-DDTHH:MM>.
func DriftDedupKey(exchange, venue, symbol, driftKind string, at time.Time) string {
	bucket := at.UTC().Format("2006-01-02T15:04")
	return fmt.Sprintf("%s:%s:%s:%s:%s", exchange, venue, symbol, driftKind, bucket)
}
