package models

import "time"

// MBarSeries holds a historical OHLCV series as parallel arrays, mirroring
// the REST candle endpoint's wire format.
type MBarSeries struct {
	Symbol     string    `json:"symbol"`
	Resolution string    `json:"resolution"`
	From       int64     `json:"from"`
	To         int64     `json:"to"`
	T          []int64   `json:"t"`
	O          []float64 `json:"o"`
	H          []float64 `json:"h"`
	L          []float64 `json:"l"`
	C          []float64 `json:"c"`
	V          []float64 `json:"v"`

	// FetchedAt is set when the series is inserted into the cache;
	// LiveMergedAt records the last in-place live-tick merge, if any.
	FetchedAt    time.Time `json:"fetched_at"`
	LiveMergedAt time.Time `json:"live_merged_at,omitempty"`
}

// -----------------------------------------------------------------------------

// Len returns the number of bars in the series.
func (s *MBarSeries) Len() int {
	return len(s.T)
}

// -----------------------------------------------------------------------------

// LastBarTime returns the timestamp of the final bar, or 0 for an empty series.
func (s *MBarSeries) LastBarTime() int64 {
	if len(s.T) == 0 {
		return 0
	}
	return s.T[len(s.T)-1]
}

// -----------------------------------------------------------------------------

// Clone returns a deep copy. The bar cache hands clones to callers so its
// in-place live-tick merges never touch a series a consumer is reading.
func (s *MBarSeries) Clone() *MBarSeries {
	c := *s
	c.T = append([]int64(nil), s.T...)
	c.O = append([]float64(nil), s.O...)
	c.H = append([]float64(nil), s.H...)
	c.L = append([]float64(nil), s.L...)
	c.C = append([]float64(nil), s.C...)
	c.V = append([]float64(nil), s.V...)
	return &c
}
