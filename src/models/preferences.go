package models

// MChartPreferences stores per-symbol display settings.
type MChartPreferences struct {
	Symbol    string   `json:"symbol"`
	TimeRange string   `json:"time_range"`
	Style     string   `json:"style"`
	Overlays  []string `json:"overlays"`
}

// -----------------------------------------------------------------------------

// DefaultChartPreferences returns the hard defaults applied when neither the
// in-memory cache nor the persistent store has an entry for the symbol.
func DefaultChartPreferences(symbol string) MChartPreferences {
	return MChartPreferences{
		Symbol:    symbol,
		TimeRange: "1M",
		Style:     "candlestick",
		Overlays:  nil,
	}
}
