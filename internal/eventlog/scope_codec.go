package eventlog

import "github.com/klingon-exchange/ledger-core/internal/config"

func typedExchange(s string) config.Exchange   { return config.Exchange(s) }
func typedVenue(s string) config.Venue         { return config.Venue(s) }
func typedMode(s string) config.TradingMode    { return config.TradingMode(s) }
