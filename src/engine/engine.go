package engine

import (
	"context"
	"sync"
	"time"

	"stock-tracker/src/bars"
	"stock-tracker/src/broadcast"
	"stock-tracker/src/config"
	"stock-tracker/src/dedup"
	"stock-tracker/src/interfaces"
	"stock-tracker/src/logger"
	"stock-tracker/src/models"
	"stock-tracker/src/quotes"
	"stock-tracker/src/stream"
	"stock-tracker/src/subscription"
	"stock-tracker/src/utils"
)

// -----------------------------------------------------------------------------
// Engine wires the live-data pipeline together: one stream connection, one
// subscription manager, one quote cache, one bar cache and one broadcaster,
// all sharing a single request deduplicator. Every accepted tick batch flows
// quote cache -> bar cache -> broadcaster, in that order, so listeners always
// observe caches that already reflect the batch.
// -----------------------------------------------------------------------------

type Engine struct {
	Quotes      *quotes.Cache
	Bars        *bars.Cache
	Broadcaster *broadcast.Broadcaster
	Manager     *subscription.Manager
	Conn        *stream.Connection
	Logger      *logger.Logger

	fallbackDelay time.Duration
}

// -----------------------------------------------------------------------------

func New(cfg *config.Config, api interfaces.IMarketAPI, log *logger.Logger) *Engine {
	dd := dedup.NewDeduplicator(log)

	e := &Engine{
		Quotes:        quotes.NewCache(time.Duration(cfg.Engine.StaleThresholdMs)*time.Millisecond, api, dd, log),
		Bars:          bars.NewCache(cfg.Engine.BarCacheSize, api, dd, log),
		Broadcaster:   broadcast.NewBroadcaster(log),
		Logger:        log,
		fallbackDelay: time.Duration(cfg.Engine.FallbackDelayMs) * time.Millisecond,
	}

	e.Conn = stream.NewConnection(stream.Options{
		URL:         cfg.API.StreamURL,
		Token:       cfg.API.Token,
		BaseDelay:   time.Duration(cfg.Engine.ReconnectBaseDelayMs) * time.Millisecond,
		CapDelay:    time.Duration(cfg.Engine.ReconnectCapDelayMs) * time.Millisecond,
		MaxAttempts: cfg.Engine.MaxReconnectAttempts,
	}, e.ProcessBatch, log)

	e.Manager = subscription.NewManager(e.Conn, time.Duration(cfg.Engine.DebounceMs)*time.Millisecond, log)
	e.Conn.SetSymbolsProvider(e.Manager.Symbols)

	return e
}

// -----------------------------------------------------------------------------

// ProcessBatch ingests one accepted tick batch from the stream.
func (e *Engine) ProcessBatch(batch []models.MTickEntry) {
	accepted := e.Quotes.UpdateBatch(batch)
	if accepted == 0 {
		return
	}
	e.Bars.MergeLiveTickBatch(batch)
	e.Broadcaster.Publish(batch)
}

// -----------------------------------------------------------------------------

// Watch is one consumer's claim on a set of symbols. Releasing it gives the
// claim back; the symbols stay streamed while any other claim holds them.
type Watch struct {
	engine  *Engine
	symbols []string
	timer   *time.Timer
	once    sync.Once
}

// -----------------------------------------------------------------------------

// Watch subscribes the given symbols and arms the fallback: if the stream has
// not delivered a fresh quote for every symbol once the fallback delay
// elapses, the remaining ones are fetched over REST in a single batched call.
func (e *Engine) Watch(symbols []string) *Watch {
	norm := utils.NormalizeSymbols(symbols)
	e.Manager.Subscribe(norm)

	w := &Watch{engine: e, symbols: norm}
	w.timer = time.AfterFunc(e.fallbackDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.Quotes.FetchIfStale(ctx, norm); err != nil {
			e.Logger.Error("Quote fallback failed: %v", err)
		}
	})
	return w
}

// -----------------------------------------------------------------------------

// Release gives the claim back and cancels a not-yet-fired fallback.
// Releasing more than once is harmless.
func (w *Watch) Release() {
	w.once.Do(func() {
		w.timer.Stop()
		w.engine.Manager.Unsubscribe(w.symbols)
	})
}

// -----------------------------------------------------------------------------

// Symbols returns the normalized symbols this watch claims.
func (w *Watch) Symbols() []string {
	return append([]string(nil), w.symbols...)
}

// -----------------------------------------------------------------------------

// Status reports the stream state together with cache occupancy.
func (e *Engine) Status() models.MEngineStatus {
	return models.MEngineStatus{
		Stream:       e.Conn.Status(),
		QuoteCount:   e.Quotes.Len(),
		BarSeries:    e.Bars.Len(),
		Listeners:    e.Broadcaster.Count(),
		Subscription: e.Manager.Symbols(),
	}
}

// -----------------------------------------------------------------------------

// Close ends the session: the stream is torn down and the quote cache wiped.
// Bar series survive so a new session can reuse still-fresh history.
func (e *Engine) Close() {
	e.Conn.Close()
	e.Quotes.Clear()
}
