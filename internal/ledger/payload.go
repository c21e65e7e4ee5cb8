package ledger

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

// payloadStringOr fetches an optional string field, returning def if absent.
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

// payloadDecimal fetches a required decimal field, accepting either a
// decimal string or a JSON number — the exchange wire format is always a
// decimal string, but constructed test fixtures may supply either.
func payloadDecimal(payload map[string]any, key string) (decimal.Decimal, error) {
	v, ok := payload[key]
	if !ok {
		return decimal.Zero, fmt.Errorf("payload missing field %q", key)
	}
	switch t := v.(type) {
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero, fmt.Errorf("payload field %q: %w", key, err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	case decimal.Decimal:
		return t, nil
	default:
		return decimal.Zero, fmt.Errorf("payload field %q has unsupported type %T", key, v)
	}
}

// payloadDecimalOr fetches an optional decimal field, returning def if
// absent or unparseable.
func payloadDecimalOr(payload map[string]any, key string, def decimal.Decimal) decimal.Decimal {
	d, err := payloadDecimal(payload, key)
	if err != nil {
		return def
	}
	return d
}

// payloadBool fetches an optional bool field, defaulting to false.
func payloadBool(payload map[string]any, key string) bool {
	v, ok := payload[key]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// hasPayloadKey reports whether key is present in payload at all,
// distinguishing "delta omitted" from "delta present but zero".
func hasPayloadKey(payload map[string]any, key string) bool {
	_, ok := payload[key]
	return ok
}
