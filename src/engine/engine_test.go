package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"stock-tracker/src/config"
	"stock-tracker/src/logger"
	"stock-tracker/src/models"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeAPI struct {
	mu         sync.Mutex
	quoteCalls [][]string
}

func (f *fakeAPI) GetQuotes(ctx context.Context, symbols []string) (map[string]models.MQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoteCalls = append(f.quoteCalls, append([]string(nil), symbols...))
	out := make(map[string]models.MQuote, len(symbols))
	for _, s := range symbols {
		out[s] = models.MQuote{Symbol: s, Current: 99}
	}
	return out, nil
}

func (f *fakeAPI) GetBars(ctx context.Context, symbol, resolution string, from, to int64) (*models.MBarSeries, error) {
	return &models.MBarSeries{Symbol: symbol, Resolution: resolution, From: from, To: to}, nil
}

func (f *fakeAPI) calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quoteCalls
}

// -----------------------------------------------------------------------------

func newTestEngine(api *fakeAPI) *Engine {
	cfg := &config.Config{MConfig: &models.MConfig{
		Name:     "test",
		LogLevel: "DEBUG",
		API: models.MAPIConfig{
			BaseURL:        "http://127.0.0.1:1",
			StreamURL:      "ws://127.0.0.1:1",
			RequestTimeout: 1,
		},
		Engine: models.MEngineConfig{
			DebounceMs:           10,
			FallbackDelayMs:      40,
			StaleThresholdMs:     15000,
			ReconnectBaseDelayMs: 10,
			ReconnectCapDelayMs:  50,
			MaxReconnectAttempts: 1,
			BarCacheSize:         10,
		},
	}}
	return New(cfg, api, logger.NewLogger(nil, "test"))
}

// -----------------------------------------------------------------------------

func TestProcessBatchFlowsToCachesAndListeners(t *testing.T) {
	e := newTestEngine(&fakeAPI{})

	var published []models.MTickEntry
	e.Broadcaster.Register(func(batch []models.MTickEntry) {
		published = append(published, batch...)
	})

	q := models.MQuote{Current: 187}
	e.ProcessBatch([]models.MTickEntry{{Symbol: "AAPL", Quote: &q}})

	if got, ok := e.Quotes.Get("AAPL"); !ok || got.Current != 187 {
		t.Errorf("quote cache not updated: %v ok=%v", got, ok)
	}
	if len(published) != 1 {
		t.Errorf("expected 1 published entry, got %d", len(published))
	}
}

// -----------------------------------------------------------------------------

func TestProcessBatchSkipsUnusableBatches(t *testing.T) {
	e := newTestEngine(&fakeAPI{})

	var calls int
	e.Broadcaster.Register(func(batch []models.MTickEntry) { calls++ })

	e.ProcessBatch([]models.MTickEntry{{Symbol: "AAPL", Error: "halted"}})

	if calls != 0 {
		t.Errorf("batch with no usable entries must not be published, got %d", calls)
	}
}

// -----------------------------------------------------------------------------

func TestWatchFallbackFetchesOnlySilentSymbols(t *testing.T) {
	api := &fakeAPI{}
	e := newTestEngine(api)

	w := e.Watch([]string{"AAPL", "MSFT"})
	defer w.Release()

	// AAPL ticks before the fallback delay elapses; MSFT stays silent
	q := models.MQuote{Current: 187}
	e.ProcessBatch([]models.MTickEntry{{Symbol: "AAPL", Quote: &q}})

	time.Sleep(150 * time.Millisecond)

	calls := api.calls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly 1 fallback fetch, got %d", len(calls))
	}
	if len(calls[0]) != 1 || calls[0][0] != "MSFT" {
		t.Errorf("fallback must cover only silent symbols, got %v", calls[0])
	}
	if got, ok := e.Quotes.Get("MSFT"); !ok || got.Current != 99 {
		t.Errorf("fallback result not merged: %v ok=%v", got, ok)
	}
}

// -----------------------------------------------------------------------------

func TestReleaseCancelsPendingFallback(t *testing.T) {
	api := &fakeAPI{}
	e := newTestEngine(api)

	w := e.Watch([]string{"AAPL"})
	w.Release()
	w.Release() // harmless

	time.Sleep(150 * time.Millisecond)

	if len(api.calls()) != 0 {
		t.Errorf("released watch must not trigger a fallback, got %d calls", len(api.calls()))
	}
	if e.Manager.Count("AAPL") != 0 {
		t.Errorf("expected refcount released, got %d", e.Manager.Count("AAPL"))
	}
}

// -----------------------------------------------------------------------------

func TestCloseWipesQuotesButKeepsBars(t *testing.T) {
	e := newTestEngine(&fakeAPI{})

	q := models.MQuote{Current: 1}
	e.ProcessBatch([]models.MTickEntry{{Symbol: "AAPL", Quote: &q}})
	if _, err := e.Bars.Fetch(context.Background(), "AAPL", "D", 0, 100, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e.Close()

	if e.Quotes.Len() != 0 {
		t.Errorf("quote cache must be wiped on close, got %d", e.Quotes.Len())
	}
	if e.Bars.Len() != 1 {
		t.Errorf("bar cache must survive close, got %d", e.Bars.Len())
	}
}

// -----------------------------------------------------------------------------

func TestStatusSnapshot(t *testing.T) {
	e := newTestEngine(&fakeAPI{})

	st := e.Status()
	if st.Stream.State != "closed" {
		t.Errorf("expected closed stream initially, got %q", st.Stream.State)
	}
	if st.QuoteCount != 0 || st.BarSeries != 0 {
		t.Errorf("expected empty caches, got %+v", st)
	}
}
