package app

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatCurrency renders amount as US dollars, e.g. "$1,234.56" or "-$5.00".
func FormatCurrency(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	_, frac, _ := strings.Cut(rounded.Abs().StringFixed(2), ".")

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
	}
	printer := message.NewPrinter(language.AmericanEnglish)
	return printer.Sprintf("%s$%d.%s", sign, rounded.Abs().IntPart(), frac)
}

// FormatAccountNumber masks all but the last four digits.
func FormatAccountNumber(number string) string {
	number = strings.TrimSpace(number)
	if len(number) <= 4 {
		return number
	}
	return "****" + number[len(number)-4:]
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatDate renders a banking API date as "Jan 2, 2006". Epoch milliseconds are
// accepted too.
func FormatDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "N/A"
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.Format("Jan 2, 2006")
		}
	}
	if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(millis).UTC().Format("Jan 2, 2006")
	}
	return "Invalid Date"
}
