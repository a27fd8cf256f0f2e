package marketapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stock-tracker/src/interfaces"
	"stock-tracker/src/logger"
	"stock-tracker/src/models"
	"stock-tracker/src/network"
	"stock-tracker/src/utils"
)

// -----------------------------------------------------------------------------

// RESTClient implements interfaces.IMarketAPI against the backend's
// batch-quote and candle endpoints.
type RESTClient struct {
	Config  *models.MConfig
	Network *network.Client
	Logger  *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRESTClient(cfg *models.MConfig, net *network.Client, log *logger.Logger) *RESTClient {
	return &RESTClient{
		Config:  cfg,
		Network: net,
		Logger:  log,
	}
}

// -----------------------------------------------------------------------------

// quotesResponse is the wire shape of the batch quote endpoint: a mapping
// from symbol to quote snapshot.
type quotesResponse map[string]models.MQuote

// -----------------------------------------------------------------------------

// GetQuotes fetches current snapshots for a batch of symbols in one request.
func (r *RESTClient) GetQuotes(ctx context.Context, symbols []string) (map[string]models.MQuote, error) {
	symbols = utils.NormalizeSymbols(symbols)
	if len(symbols) == 0 {
		return map[string]models.MQuote{}, nil
	}

	url := fmt.Sprintf("%s/quotes", r.Config.API.BaseURL)
	params := map[string]string{
		"symbols": strings.Join(symbols, ","),
	}

	respBytes, err := r.Network.Get(ctx, url, params)
	if err != nil {
		return nil, fmt.Errorf("quote fetch failed for %v: %w", symbols, err)
	}

	var resp quotesResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}

	results := make(map[string]models.MQuote, len(resp))
	for sym, q := range resp {
		sym = utils.NormalizeSymbol(sym)
		q.Symbol = sym
		results[sym] = q
	}

	r.Logger.Debug("Fetched %d/%d quote snapshots", len(results), len(symbols))
	return results, nil
}

// -----------------------------------------------------------------------------

// barsResponse is the candle endpoint wire shape: status flag plus parallel
// time/OHLCV arrays.
type barsResponse struct {
	Status string    `json:"s"`
	T      []int64   `json:"t"`
	O      []float64 `json:"o"`
	H      []float64 `json:"h"`
	L      []float64 `json:"l"`
	C      []float64 `json:"c"`
	V      []float64 `json:"v"`
}

// -----------------------------------------------------------------------------

// GetBars fetches a historical OHLCV series for one symbol.
func (r *RESTClient) GetBars(ctx context.Context, symbol, resolution string, from, to int64) (*models.MBarSeries, error) {
	symbol = utils.NormalizeSymbol(symbol)

	url := fmt.Sprintf("%s/bars", r.Config.API.BaseURL)
	params := map[string]string{
		"symbol":     symbol,
		"resolution": resolution,
		"from":       fmt.Sprintf("%d", from),
		"to":         fmt.Sprintf("%d", to),
	}

	respBytes, err := r.Network.Get(ctx, url, params)
	if err != nil {
		return nil, fmt.Errorf("bar fetch failed for %s: %w", symbol, err)
	}

	var resp barsResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}

	if resp.Status == "no_data" {
		// Empty ranges are valid (e.g. a market holiday window)
		return &models.MBarSeries{Symbol: symbol, Resolution: resolution, From: from, To: to}, nil
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("bar endpoint error for %s: status %q", symbol, resp.Status)
	}

	// Alignment check: the parallel arrays must agree in length
	n := len(resp.T)
	if len(resp.O) != n || len(resp.H) != n || len(resp.L) != n ||
		len(resp.C) != n || len(resp.V) != n {
		r.Logger.Warning("Data alignment error for %s: mismatched array lengths", symbol)
		return nil, fmt.Errorf("data alignment error for %s", symbol)
	}

	series := &models.MBarSeries{
		Symbol:     symbol,
		Resolution: resolution,
		From:       from,
		To:         to,
		T:          resp.T,
		O:          resp.O,
		H:          resp.H,
		L:          resp.L,
		C:          resp.C,
		V:          resp.V,
	}

	r.Logger.Debug("Fetched %s %s: %d bars", symbol, resolution, n)
	return series, nil
}

// -----------------------------------------------------------------------------

// Compile-time interface check
var _ interfaces.IMarketAPI = (*RESTClient)(nil)
