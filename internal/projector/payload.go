package projector

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// payloadString fetches a required string field from an event payload.
func payloadString(payload map[string]any, key string) (string, error) {
	v, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("payload missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("payload field %q is not a string", key)
	}
	return s, nil
}

// payloadStringOr fetches an optional string field, returning def if absent
// or the wrong type.
func payloadStringOr(payload map[string]any, key, def string) string {
	v, ok := payload[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// payloadDecimalOr fetches an optional decimal field, accepting a decimal
// string or JSON number, returning def if absent or unparseable.
func payloadDecimalOr(payload map[string]any, key string, def decimal.Decimal) decimal.Decimal {
	v, ok := payload[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return def
		}
		return d
	case float64:
		return decimal.NewFromFloat(t)
	case decimal.Decimal:
		return t
	default:
		return def
	}
}

// payloadIntOr fetches an optional integer field, returning def if absent or
// unparseable.
func payloadIntOr(payload map[string]any, key string, def int) int {
	v, ok := payload[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	default:
		return def
	}
}
