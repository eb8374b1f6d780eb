package normalize

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateLayouts covers the formats seen across provider exports.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"01-02-2006",
	"2 Jan 2006",
}

// parseDate tries each known layout, returning the zero time on failure.
// Results are truncated to midnight UTC; intraday ordering is not
// reconstructable from provider exports.
func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// parseMoney parses a provider money or quantity string exactly, tolerating
// thousands separators, currency symbols, and accounting-style negatives.
// Exact decimal parsing here avoids accumulating binary float artifacts from
// string round-trips; internals downstream are float64 like the rest of the
// pipeline.
func parseMoney(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		negative = true
		raw = raw[1 : len(raw)-1]
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ',', '$', '€', '£', ' ':
			return -1
		}
		return r
	}, raw)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	if negative {
		d = d.Neg()
	}
	f, _ := d.Float64()
	return f, true
}

// normalizeSymbol uppercases and strips exchange suffix punctuation noise.
func normalizeSymbol(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
