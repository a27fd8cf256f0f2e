package quotes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stock-tracker/src/dedup"
	"stock-tracker/src/logger"
	"stock-tracker/src/models"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeAPI struct {
	mu         sync.Mutex
	quoteCalls [][]string
	quotes     map[string]models.MQuote
	err        error
}

func (f *fakeAPI) GetQuotes(ctx context.Context, symbols []string) (map[string]models.MQuote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoteCalls = append(f.quoteCalls, append([]string(nil), symbols...))
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]models.MQuote)
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

func (f *fakeAPI) GetBars(ctx context.Context, symbol, resolution string, from, to int64) (*models.MBarSeries, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAPI) calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quoteCalls
}

// -----------------------------------------------------------------------------

func newTestCache(threshold time.Duration, api *fakeAPI) *Cache {
	log := logger.NewLogger(nil, "test")
	return NewCache(threshold, api, dedup.NewDeduplicator(log), log)
}

// -----------------------------------------------------------------------------

func TestUpdateAndGet(t *testing.T) {
	c := newTestCache(15*time.Second, &fakeAPI{})

	c.Update("aapl", models.MQuote{Current: 187.5})

	q, ok := c.Get("AAPL")
	if !ok {
		t.Fatal("expected quote for AAPL")
	}
	if q.Current != 187.5 {
		t.Errorf("expected 187.5, got %v", q.Current)
	}
	if q.Symbol != "AAPL" {
		t.Errorf("expected normalized symbol AAPL, got %q", q.Symbol)
	}
}

// -----------------------------------------------------------------------------

func TestFreshnessUsesReceiptTime(t *testing.T) {
	c := newTestCache(15*time.Second, &fakeAPI{})

	now := time.Now()
	c.nowFunc = func() time.Time { return now }
	c.Update("AAPL", models.MQuote{Current: 100})

	c.nowFunc = func() time.Time { return now.Add(10 * time.Second) }
	if !c.IsFresh("AAPL") {
		t.Error("quote 10s old with 15s threshold should be fresh")
	}

	c.nowFunc = func() time.Time { return now.Add(20 * time.Second) }
	if c.IsFresh("AAPL") {
		t.Error("quote 20s old with 15s threshold should be stale")
	}

	if c.IsFresh("MSFT") {
		t.Error("missing symbol should never be fresh")
	}
}

// -----------------------------------------------------------------------------

func TestUpdateBatchSkipsUnusableEntries(t *testing.T) {
	c := newTestCache(15*time.Second, &fakeAPI{})

	q := models.MQuote{Current: 50}
	batch := []models.MTickEntry{
		{Symbol: "AAPL", Quote: &q},
		{Symbol: "MSFT", Error: "symbol halted"},
		{Symbol: "", Quote: &q},
	}

	if got := c.UpdateBatch(batch); got != 1 {
		t.Errorf("expected 1 accepted entry, got %d", got)
	}
	if _, ok := c.Get("MSFT"); ok {
		t.Error("errored entry must not populate the cache")
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 cached symbol, got %d", c.Len())
	}
}

// -----------------------------------------------------------------------------

func TestFetchIfStaleOnlyFetchesStaleSymbols(t *testing.T) {
	api := &fakeAPI{quotes: map[string]models.MQuote{
		"MSFT": {Current: 410},
		"TSLA": {Current: 250},
	}}
	c := newTestCache(15*time.Second, api)

	// AAPL just ticked; the others never did
	c.Update("AAPL", models.MQuote{Current: 187})

	if err := c.FetchIfStale(context.Background(), []string{"AAPL", "MSFT", "TSLA"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := api.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 batched call, got %d", len(calls))
	}
	want := []string{"MSFT", "TSLA"}
	if len(calls[0]) != len(want) || calls[0][0] != want[0] || calls[0][1] != want[1] {
		t.Errorf("expected fetch for %v, got %v", want, calls[0])
	}

	if q, ok := c.Get("MSFT"); !ok || q.Current != 410 {
		t.Errorf("fetched quote not merged, got %v ok=%v", q, ok)
	}
}

// -----------------------------------------------------------------------------

func TestFetchIfStaleNoopWhenAllFresh(t *testing.T) {
	api := &fakeAPI{}
	c := newTestCache(15*time.Second, api)
	c.Update("AAPL", models.MQuote{Current: 1})

	if err := c.FetchIfStale(context.Background(), []string{"AAPL"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.calls()) != 0 {
		t.Errorf("expected no network calls, got %d", len(api.calls()))
	}
}

// -----------------------------------------------------------------------------

func TestFetchIfStalePropagatesErrors(t *testing.T) {
	api := &fakeAPI{err: errors.New("backend down")}
	c := newTestCache(15*time.Second, api)

	if err := c.FetchIfStale(context.Background(), []string{"AAPL"}); err == nil {
		t.Fatal("expected error from failed fetch")
	}
}

// -----------------------------------------------------------------------------

func TestClear(t *testing.T) {
	c := newTestCache(15*time.Second, &fakeAPI{})
	c.Update("AAPL", models.MQuote{Current: 1})
	c.Update("MSFT", models.MQuote{Current: 2})

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("expected empty cache after Clear, got %d entries", c.Len())
	}
}
