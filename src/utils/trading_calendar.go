package utils

import (
	"log"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers trading-day questions for a symbol's exchange,
// backed by scmhub/calendar with a Mon-Fri fallback.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// micForSymbol maps a symbol suffix to the exchange MIC code (ISO 10383).
// Suffix-less symbols default to NYSE.
func micForSymbol(symbol string) string {
	suffixes := map[string]string{
		".L":  "xlon",
		".PA": "xpar",
		".DE": "xfra",
		".AS": "xams",
		".MI": "xmil",
		".MC": "xmad",
		".SW": "xswx",
		".TO": "xtse",
		".T":  "xtks",
		".HK": "xhkg",
		".AX": "xasx",
		".SS": "xshg",
		".SZ": "xshe",
	}
	for suffix, mic := range suffixes {
		if strings.HasSuffix(symbol, suffix) {
			return mic
		}
	}
	return "xnys"
}

// -----------------------------------------------------------------------------

func GetCalendar(symbol string) *TradingCalendar {
	mic := micForSymbol(symbol)

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}

	if cal == nil {
		log.Printf("WARNING: Failed to load calendar for MIC '%s' and fallback 'xnys'. Using simple fallback (Mon-Fri 09:30-16:00 NY).", mic)
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}

		hour := t.Hour()
		minute := t.Minute()

		// 9:30 - 16:00 NY Time
		if (hour > 9 || (hour == 9 && minute >= 30)) && hour < 16 {
			return true
		}
		return false
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------

// SameTradingDay reports whether two instants fall on the same calendar day
// in the exchange's timezone. Live-tick merges into a cached bar series are
// allowed only when the final bar is from the current trading day.
func (tc *TradingCalendar) SameTradingDay(a, b time.Time) bool {
	loc := tc.Timezone
	if loc == nil {
		loc = time.UTC
	}
	a = a.In(loc)
	b = b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
