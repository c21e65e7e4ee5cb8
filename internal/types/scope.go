// Package types defines the identity and enumeration vocabulary shared by
// every component of the ledger core: scope tagging, order/position/event
// enums, and the actor/source taxonomy attached to every event.
package types

import "github.com/klingon-exchange/ledger-core/internal/config"

// Scope is the immutable five-tuple tagging every event and command.
// Events from different modes never mix in projections or ledger balances.
type Scope struct {
	Exchange  config.Exchange
	Venue     config.Venue
	AccountID string
	Symbol    string // optional; empty for account-level events
	Mode      config.TradingMode
}

// NewScope builds a Scope from explicit components.
func NewScope(exchange config.Exchange, venue config.Venue, accountID, symbol string, mode config.TradingMode) Scope {
	return Scope{
		Exchange:  exchange,
		Venue:     venue,
		AccountID: accountID,
		Symbol:    symbol,
		Mode:      mode,
	}
}

// Default builds a Scope using the configured defaults, overriding only the
// symbol (or leaving it empty for account-level scopes).
func Default(symbol string) Scope {
	d := config.DefaultScopeConfig()
	return NewScope(d.Exchange, d.Venue, d.AccountID, symbol, d.Mode)
}

// WithSymbol returns a copy of s scoped to a different symbol.
func (s Scope) WithSymbol(symbol string) Scope {
	s.Symbol = symbol
	return s
}

// Key returns a stable string suitable for use as a map key or dedup-key
// prefix: exch:venue:account:mode, omitting the symbol.
func (s Scope) Key() string {
	return string(s.Exchange) + ":" + string(s.Venue) + ":" + s.AccountID + ":" + string(s.Mode)
}

// SymbolKey is Key with the symbol appended, for per-symbol projections.
func (s Scope) SymbolKey() string {
	return s.Key() + ":" + s.Symbol
}
