package helpers

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount decimal.Decimal
		scale  int32
		want   string
	}{
		{decimal.RequireFromString("1"), 8, "1"},
		{decimal.RequireFromString("0.5"), 8, "0.5"},
		{decimal.RequireFromString("0.12345678"), 8, "0.12345678"},
		{decimal.RequireFromString("0.001"), 8, "0.001"},
		{decimal.RequireFromString("0"), 8, "0"},
		{decimal.RequireFromString("123"), 0, "123"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatAmount(tt.amount, tt.scale)
			if got != tt.want {
				t.Errorf("FormatAmount(%s, %d) = %s, want %s", tt.amount, tt.scale, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"1", false},
		{"0.5", false},
		{"0.12345678", false},
		{"", true},
		{"not-a-number", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseAmount(tt.input)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestFormatParseRoundtrip(t *testing.T) {
	amounts := []string{"1", "100", "12345.678", "0.00000001", "999999999"}

	for _, amount := range amounts {
		parsed, err := ParseAmount(amount)
		if err != nil {
			t.Fatalf("ParseAmount(%s) failed: %v", amount, err)
		}
		formatted := FormatAmount(parsed, 8)
		reparsed, err := ParseAmount(formatted)
		if err != nil {
			t.Fatalf("ParseAmount(%s) failed: %v", formatted, err)
		}
		if !reparsed.Equal(parsed) {
			t.Errorf("roundtrip failed: %s -> %s -> %s", amount, formatted, reparsed)
		}
	}
}

func TestUSDTValue(t *testing.T) {
	qty := decimal.RequireFromString("2.5")
	rate := decimal.RequireFromString("30000")
	got := USDTValue(qty, rate)
	want := decimal.RequireFromString("75000")
	if !got.Equal(want) {
		t.Errorf("USDTValue = %s, want %s", got, want)
	}
}

func TestWithinEpsilon(t *testing.T) {
	epsilon := decimal.RequireFromString("0.00000001")
	a := decimal.RequireFromString("1.00000000")
	b := decimal.RequireFromString("1.00000001")
	if !WithinEpsilon(a, b, epsilon) {
		t.Error("expected values within epsilon")
	}

	c := decimal.RequireFromString("1.00000002")
	if WithinEpsilon(a, c, epsilon) {
		t.Error("expected values outside epsilon")
	}
}
