package bars

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"stock-tracker/src/dedup"
	"stock-tracker/src/interfaces"
	"stock-tracker/src/logger"
	"stock-tracker/src/models"
	"stock-tracker/src/utils"
)

// -----------------------------------------------------------------------------
// Cache is a bounded, resolution-aware store of historical bar series.
// Two independent policies apply: a recency bound (LRU eviction once the
// cache is full) and a freshness bound (per-resolution TTL checked on read).
// The most recent bar of a cached series may be mutated in place by live
// ticks without changing the series' identity.
// -----------------------------------------------------------------------------

type cacheItem struct {
	key    string
	series *models.MBarSeries
}

type Cache struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	calendars  map[string]*utils.TradingCalendar
	api        interfaces.IMarketAPI
	dedup      *dedup.Deduplicator
	Logger     *logger.Logger

	nowFunc func() time.Time
}

// -----------------------------------------------------------------------------

func NewCache(maxEntries int, api interfaces.IMarketAPI, dd *dedup.Deduplicator, log *logger.Logger) *Cache {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	return &Cache{
		maxEntries: maxEntries,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		calendars:  make(map[string]*utils.TradingCalendar),
		api:        api,
		dedup:      dd,
		Logger:     log,
		nowFunc:    time.Now,
	}
}

// -----------------------------------------------------------------------------

// Key builds the cache key for a series request.
func Key(symbol, resolution string, from, to int64) string {
	return fmt.Sprintf("%s|%s|%d|%d", utils.NormalizeSymbol(symbol), resolution, from, to)
}

// -----------------------------------------------------------------------------

// Fetch returns the cached series for (symbol, resolution, from, to) when
// present, not stale and not forced; otherwise it performs the network fetch
// through the deduplicator and caches the result.
//
// Callers always receive a snapshot copy. The cache-owned series is mutated
// in place by live-tick merges, so handing out the live pointer would let a
// reader race the merge.
func (c *Cache) Fetch(ctx context.Context, symbol, resolution string, from, to int64, force bool) (*models.MBarSeries, error) {
	symbol = utils.NormalizeSymbol(symbol)
	key := Key(symbol, resolution, from, to)

	if !force {
		c.mu.Lock()
		if elem, ok := c.entries[key]; ok {
			item := elem.Value.(*cacheItem)
			if !c.isStaleLocked(item.series) {
				c.order.MoveToFront(elem)
				series := item.series.Clone()
				c.mu.Unlock()
				return series, nil
			}
		}
		c.mu.Unlock()
	}

	res, err := c.dedup.Run(key, func() (interface{}, error) {
		series, err := c.api.GetBars(ctx, symbol, resolution, from, to)
		if err != nil {
			return nil, err
		}
		series.FetchedAt = c.nowFunc()
		// The cache keeps its own copy; the fetched series goes to callers
		c.insert(key, series.Clone())
		return series, nil
	})
	if err != nil {
		return nil, fmt.Errorf("bar fetch failed for %s: %w", key, err)
	}

	return res.(*models.MBarSeries), nil
}

// -----------------------------------------------------------------------------

// insert stores a freshly fetched series, promoting it to most-recently-used
// and evicting the least-recently-used entry when the cache is full.
func (c *Cache) insert(key string, series *models.MBarSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		elem.Value.(*cacheItem).series = series
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.maxEntries {
		oldest := c.order.Back()
		if oldest != nil {
			evicted := oldest.Value.(*cacheItem)
			c.order.Remove(oldest)
			delete(c.entries, evicted.key)
			c.Logger.Debug("Evicted LRU series %s", evicted.key)
		}
	}

	c.entries[key] = c.order.PushFront(&cacheItem{key: key, series: series})
}

// -----------------------------------------------------------------------------

// IsStale reports whether the cached entry for the key has outlived its
// resolution bucket's TTL. Missing keys report stale.
func (c *Cache) IsStale(symbol, resolution string, from, to int64) bool {
	key := Key(symbol, resolution, from, to)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return true
	}
	return c.isStaleLocked(elem.Value.(*cacheItem).series)
}

func (c *Cache) isStaleLocked(series *models.MBarSeries) bool {
	return c.nowFunc().Sub(series.FetchedAt) >= utils.ResolutionTTL(series.Resolution)
}

// -----------------------------------------------------------------------------

// MergeLiveTick folds a live quote into every cached series for the symbol
// whose final bar falls on the current trading day: the bar's close becomes
// the tick's current price and high/low are extended via max/min. No bar is
// ever created and no bar but the last is touched; stale-day series are left
// unmodified for the next full refetch.
func (c *Cache) MergeLiveTick(symbol string, quote models.MQuote) {
	symbol = utils.NormalizeSymbol(symbol)

	c.mu.Lock()
	defer c.mu.Unlock()

	cal := c.calendarLocked(symbol)
	now := c.nowFunc()

	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*cacheItem)
		s := item.series
		if s.Symbol != symbol || s.Len() == 0 {
			continue
		}

		lastBar := time.Unix(s.LastBarTime(), 0)
		if !cal.SameTradingDay(lastBar, now) {
			continue
		}

		i := s.Len() - 1
		s.C[i] = quote.Current

		high := quote.High
		if high == 0 {
			high = quote.Current
		}
		low := quote.Low
		if low == 0 {
			low = quote.Current
		}
		if high > s.H[i] {
			s.H[i] = high
		}
		if low < s.L[i] {
			s.L[i] = low
		}
		s.LiveMergedAt = now
	}
}

// -----------------------------------------------------------------------------

// MergeLiveTickBatch applies MergeLiveTick for every usable entry of a
// streamed tick batch.
func (c *Cache) MergeLiveTickBatch(batch []models.MTickEntry) {
	for _, e := range batch {
		if e.Quote == nil {
			continue
		}
		c.MergeLiveTick(e.Symbol, *e.Quote)
	}
}

// -----------------------------------------------------------------------------

// Invalidate removes every cached series for a symbol.
func (c *Cache) Invalidate(symbol string) {
	symbol = utils.NormalizeSymbol(symbol)

	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		item := elem.Value.(*cacheItem)
		if item.series.Symbol == symbol {
			c.order.Remove(elem)
			delete(c.entries, item.key)
		}
		elem = next
	}
}

// -----------------------------------------------------------------------------

// Clear removes every cached series.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// Len returns the number of cached series.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// -----------------------------------------------------------------------------

// Get returns a snapshot of the cached series for the key without fetching,
// promoting it to most-recently-used.
func (c *Cache) Get(symbol, resolution string, from, to int64) (*models.MBarSeries, bool) {
	key := Key(symbol, resolution, from, to)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheItem).series.Clone(), true
}

// -----------------------------------------------------------------------------

func (c *Cache) calendarLocked(symbol string) *utils.TradingCalendar {
	cal, ok := c.calendars[symbol]
	if !ok {
		cal = utils.GetCalendar(symbol)
		c.calendars[symbol] = cal
	}
	return cal
}
