package models

// MQuote represents the latest snapshot for a single symbol.
// Field tags follow the backend wire format (Finnhub-style short keys).
type MQuote struct {
	Symbol        string  `json:"symbol"`
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Volume        float64 `json:"v"`
	Name          string  `json:"name,omitempty"`
}

// -----------------------------------------------------------------------------

// MTickEntry is one element of a streamed tick batch.
// Quote is nil when the backend could not resolve the symbol; such entries
// carry an Error string and are skipped by consumers.
type MTickEntry struct {
	Symbol string  `json:"symbol"`
	Quote  *MQuote `json:"quote"`
	Error  string  `json:"error,omitempty"`
}

// -----------------------------------------------------------------------------

// MTickMessage is the envelope pushed over the streaming channel.
// Only messages with Type == TickMessageType and a non-empty Data slice are
// treated as tick batches; anything else is ignored.
type MTickMessage struct {
	Type string       `json:"type"`
	Data []MTickEntry `json:"data"`
}

const TickMessageType = "quotes"
