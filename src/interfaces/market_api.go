package interfaces

import (
	"context"

	"stock-tracker/src/models"
)

// -----------------------------------------------------------------------------
// IMarketAPI is the REST surface of the market-data backend: batched quote
// snapshots (fallback path) and historical candles.
// -----------------------------------------------------------------------------

type IMarketAPI interface {

	// GetQuotes fetches current quote snapshots for a batch of symbols.
	// The returned map is keyed by uppercased symbol; symbols the backend
	// could not resolve are simply absent.
	GetQuotes(ctx context.Context, symbols []string) (map[string]models.MQuote, error)

	// -----------------------------------------------------------------------------

	// GetBars fetches a historical OHLCV series for one symbol at the given
	// resolution code over [from, to] (unix seconds).
	GetBars(ctx context.Context, symbol, resolution string, from, to int64) (*models.MBarSeries, error)
}
