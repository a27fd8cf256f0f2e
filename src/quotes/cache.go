package quotes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"stock-tracker/src/dedup"
	"stock-tracker/src/interfaces"
	"stock-tracker/src/logger"
	"stock-tracker/src/models"
	"stock-tracker/src/utils"
)

// -----------------------------------------------------------------------------
// Cache stores the latest quote per symbol with its receipt timestamp.
// Quotes are only mutated by tick ingestion or the REST fallback; individual
// entries are never deleted, the whole cache is cleared on session end.
// -----------------------------------------------------------------------------

type entry struct {
	quote      models.MQuote
	lastUpdate time.Time
}

type Cache struct {
	mu             sync.RWMutex
	entries        map[string]entry
	staleThreshold time.Duration
	api            interfaces.IMarketAPI
	dedup          *dedup.Deduplicator
	Logger         *logger.Logger

	// nowFunc is the receipt-time clock; overridable in tests.
	nowFunc func() time.Time
}

// -----------------------------------------------------------------------------

func NewCache(staleThreshold time.Duration, api interfaces.IMarketAPI, dd *dedup.Deduplicator, log *logger.Logger) *Cache {
	return &Cache{
		entries:        make(map[string]entry),
		staleThreshold: staleThreshold,
		api:            api,
		dedup:          dd,
		Logger:         log,
		nowFunc:        time.Now,
	}
}

// -----------------------------------------------------------------------------

// Update overwrites the stored quote for a symbol, stamping it with the
// receipt-time clock (never with a payload timestamp).
func (c *Cache) Update(symbol string, quote models.MQuote) {
	symbol = utils.NormalizeSymbol(symbol)
	quote.Symbol = symbol

	c.mu.Lock()
	c.entries[symbol] = entry{quote: quote, lastUpdate: c.nowFunc()}
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// UpdateBatch applies a streamed tick batch. Entries without a usable quote
// are skipped. Returns the number of accepted entries.
func (c *Cache) UpdateBatch(batch []models.MTickEntry) int {
	now := c.nowFunc()
	accepted := 0

	c.mu.Lock()
	for _, e := range batch {
		if e.Quote == nil {
			if e.Error != "" {
				c.Logger.Debug("Skipping tick entry for %s: %s", e.Symbol, e.Error)
			}
			continue
		}
		symbol := utils.NormalizeSymbol(e.Symbol)
		if symbol == "" {
			continue
		}
		q := *e.Quote
		q.Symbol = symbol
		c.entries[symbol] = entry{quote: q, lastUpdate: now}
		accepted++
	}
	c.mu.Unlock()

	return accepted
}

// -----------------------------------------------------------------------------

// Get returns the stored quote for a symbol.
func (c *Cache) Get(symbol string) (models.MQuote, bool) {
	symbol = utils.NormalizeSymbol(symbol)

	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()

	return e.quote, ok
}

// -----------------------------------------------------------------------------

// IsFresh reports whether a quote exists and is younger than the stale
// threshold.
func (c *Cache) IsFresh(symbol string) bool {
	symbol = utils.NormalizeSymbol(symbol)

	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()

	if !ok {
		return false
	}
	return c.nowFunc().Sub(e.lastUpdate) < c.staleThreshold
}

// -----------------------------------------------------------------------------

// Stale filters the given symbols down to those failing IsFresh.
func (c *Cache) Stale(symbols []string) []string {
	var stale []string
	for _, s := range utils.NormalizeSymbols(symbols) {
		if !c.IsFresh(s) {
			stale = append(stale, s)
		}
	}
	return stale
}

// -----------------------------------------------------------------------------

// FetchIfStale issues a single batched REST request for every given symbol
// that is missing or stale, and merges the results into the cache. This is
// the fallback path guarding against a connected stream that has not yet
// delivered a tick for a symbol. Concurrent calls for the same stale set
// collapse into one network request via the deduplicator.
func (c *Cache) FetchIfStale(ctx context.Context, symbols []string) error {
	stale := c.Stale(symbols)
	if len(stale) == 0 {
		return nil
	}
	sort.Strings(stale)

	key := "quotes|" + strings.Join(stale, ",")
	res, err := c.dedup.Run(key, func() (interface{}, error) {
		return c.api.GetQuotes(ctx, stale)
	})
	if err != nil {
		return fmt.Errorf("fallback quote fetch failed: %w", err)
	}

	fetched, ok := res.(map[string]models.MQuote)
	if !ok {
		return fmt.Errorf("unexpected result type %T from quote fetch", res)
	}

	now := c.nowFunc()
	c.mu.Lock()
	for sym, q := range fetched {
		q.Symbol = sym
		c.entries[sym] = entry{quote: q, lastUpdate: now}
	}
	c.mu.Unlock()

	c.Logger.Info("Fallback fetch filled %d/%d stale symbols", len(fetched), len(stale))
	return nil
}

// -----------------------------------------------------------------------------

// Snapshot returns a copy of every stored quote.
func (c *Cache) Snapshot() map[string]models.MQuote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]models.MQuote, len(c.entries))
	for sym, e := range c.entries {
		out[sym] = e.quote
	}
	return out
}

// -----------------------------------------------------------------------------

// Len returns the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// -----------------------------------------------------------------------------

// Clear wipes the whole cache (session end).
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}
