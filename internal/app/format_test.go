package app

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatCurrency(t *testing.T) {
	tests := map[string]string{
		"0":           "$0.00",
		"5":           "$5.00",
		"1234.5":      "$1,234.50",
		"1234567.891": "$1,234,567.89",
		"-42.1":       "-$42.10",
		"999.999":     "$1,000.00",
		"-0.001":      "$0.00",
		"25000000":    "$25,000,000.00",
	}
	for raw, want := range tests {
		if got := FormatCurrency(decimal.RequireFromString(raw)); got != want {
			t.Fatalf("FormatCurrency(%s): expected %q, got %q", raw, want, got)
		}
	}
}

func TestFormatAccountNumber(t *testing.T) {
	if got := FormatAccountNumber("1234567890"); got != "****7890" {
		t.Fatalf("expected masked number, got %q", got)
	}
	if got := FormatAccountNumber("1234"); got != "1234" {
		t.Fatalf("expected short number unchanged, got %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	tests := map[string]string{
		"2024-02-05":           "Feb 5, 2024",
		"2024-02-05T10:11:12":  "Feb 5, 2024",
		"2024-02-05T10:11:12Z": "Feb 5, 2024",
		"":                     "N/A",
		"not a date":           "Invalid Date",
	}
	for raw, want := range tests {
		if got := FormatDate(raw); got != want {
			t.Fatalf("FormatDate(%q): expected %q, got %q", raw, want, got)
		}
	}
}
