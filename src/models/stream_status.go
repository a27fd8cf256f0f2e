package models

// MStreamStatus is a point-in-time snapshot of the streaming connection,
// exposed through the status API so a UI can show a "disconnected" indicator.
type MStreamStatus struct {
	State             string   `json:"state"`
	Symbols           []string `json:"symbols"`
	ReconnectAttempts int      `json:"reconnect_attempts"`
	LastError         string   `json:"last_error,omitempty"`
}

// MEngineStatus aggregates stream state with cache occupancy.
type MEngineStatus struct {
	Stream       MStreamStatus `json:"stream"`
	QuoteCount   int           `json:"quote_count"`
	BarSeries    int           `json:"bar_series"`
	Listeners    int           `json:"listeners"`
	Subscription []string      `json:"subscription"`
	MarketOpen   bool          `json:"market_open"`
}
