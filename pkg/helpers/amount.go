// Package helpers provides common utility functions used across the codebase.
package helpers

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a decimal amount rounded to scale places, trimming
// trailing zeros and a trailing decimal point, so whole amounts print with no
// fractional part ("1", not "1.0"). Used for human-facing ledger output
// (reports, logs).
func FormatAmount(amount decimal.Decimal, scale int32) string {
	rounded := amount.Round(scale)
	s := rounded.String()
	if scale == 0 {
		return s
	}
	if !containsDot(s) {
		return s
	}
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

func containsDot(s string) bool {
	for _, c := range s {
		if c == '.' {
			return true
		}
	}
	return false
}

// ParseAmount parses a decimal string into an exact decimal.Decimal, rejecting
// binary-float surprises by routing through shopspring/decimal's string parser.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount string")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// MustParseAmount parses s and panics on error. Intended for constants known
// to be valid at compile time (e.g. epsilon thresholds), not for untrusted input.
func MustParseAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

// USDTValue multiplies a quantity by a price/rate and rounds to the quote
// asset's conventional display scale (USDT uses 8 internally, 2 for display).
func USDTValue(quantity, rate decimal.Decimal) decimal.Decimal {
	return quantity.Mul(rate).Round(8)
}

// WithinEpsilon reports whether a and b differ by no more than epsilon,
// the drift-detector tolerance used throughout the reconciliation path.
func WithinEpsilon(a, b, epsilon decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(epsilon)
}
