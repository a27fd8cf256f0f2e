package utils

import (
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Bar resolutions and their cache freshness windows.
// Intraday series go stale quickly because the open bar keeps moving; weekly
// and monthly bars barely change between refetches.
// -----------------------------------------------------------------------------

const (
	ResolutionDay   = "D"
	ResolutionWeek  = "W"
	ResolutionMonth = "M"
)

const (
	IntradayBarTTL  = 1 * time.Minute
	DailyBarTTL     = 5 * time.Minute
	LongRangeBarTTL = 30 * time.Minute
)

// -----------------------------------------------------------------------------

// ResolutionTTL maps a resolution code ("1", "5", "60", "D", "W", "M") to the
// freshness window of a cached series at that resolution.
func ResolutionTTL(resolution string) time.Duration {
	switch resolution {
	case ResolutionDay:
		return DailyBarTTL
	case ResolutionWeek, ResolutionMonth:
		return LongRangeBarTTL
	default:
		// Numeric minute resolutions ("1", "5", "15", "30", "60")
		return IntradayBarTTL
	}
}

// -----------------------------------------------------------------------------

// NormalizeSymbol uppercases and trims a user-supplied symbol. Every map in
// the engine keys by the normalized form.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// -----------------------------------------------------------------------------

// NormalizeSymbols applies NormalizeSymbol to a list, dropping empties.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if n := NormalizeSymbol(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}
