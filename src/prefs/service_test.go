package prefs

import (
	"errors"
	"testing"

	"stock-tracker/src/logger"
	"stock-tracker/src/models"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeStore struct {
	saved   map[string]models.MChartPreferences
	saveErr error
	deletes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{saved: make(map[string]models.MChartPreferences)}
}

func (f *fakeStore) Initialize() error { return nil }

func (f *fakeStore) LoadAll() (map[string]models.MChartPreferences, error) {
	out := make(map[string]models.MChartPreferences, len(f.saved))
	for k, v := range f.saved {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) Save(p models.MChartPreferences) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[p.Symbol] = p
	return nil
}

func (f *fakeStore) DeleteAll() error {
	f.deletes++
	f.saved = make(map[string]models.MChartPreferences)
	return nil
}

func (f *fakeStore) Close() error { return nil }

// -----------------------------------------------------------------------------

func newTestService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	s, err := NewService(store, logger.NewLogger(nil, "test"))
	if err != nil {
		t.Fatalf("service init failed: %v", err)
	}
	return s
}

// -----------------------------------------------------------------------------

func TestGetReturnsDefaultsForUnknownSymbol(t *testing.T) {
	s := newTestService(t, newFakeStore())

	p := s.Get("aapl")
	if p.Symbol != "AAPL" {
		t.Errorf("expected normalized symbol, got %q", p.Symbol)
	}
	if p.TimeRange != "1M" || p.Style != "candlestick" {
		t.Errorf("expected defaults, got %+v", p)
	}

	// Defaults are not persisted
	if s.Len() != 0 {
		t.Errorf("default lookup must not persist, got %d entries", s.Len())
	}
}

// -----------------------------------------------------------------------------

func TestSetWritesThrough(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	p := models.MChartPreferences{Symbol: "msft", TimeRange: "1Y", Style: "line", Overlays: []string{"sma50"}}
	if err := s.Set(p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := s.Get("MSFT"); got.TimeRange != "1Y" || got.Style != "line" {
		t.Errorf("unexpected preferences: %+v", got)
	}
	if stored, ok := store.saved["MSFT"]; !ok || stored.TimeRange != "1Y" {
		t.Error("preferences must reach the store synchronously")
	}
}

// -----------------------------------------------------------------------------

func TestSetRejectsEmptySymbol(t *testing.T) {
	s := newTestService(t, newFakeStore())

	if err := s.Set(models.MChartPreferences{TimeRange: "1M"}); err == nil {
		t.Error("expected error for missing symbol")
	}
}

// -----------------------------------------------------------------------------

func TestSetStoreFailureLeavesMemoryUntouched(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	s := newTestService(t, store)

	if err := s.Set(models.MChartPreferences{Symbol: "AAPL", Style: "line"}); err == nil {
		t.Fatal("expected store error to propagate")
	}

	if got := s.Get("AAPL"); got.Style != "candlestick" {
		t.Errorf("failed write must not update memory, got %+v", got)
	}
}

// -----------------------------------------------------------------------------

func TestLoadedPreferencesAvailableAfterInit(t *testing.T) {
	store := newFakeStore()
	store.saved["AAPL"] = models.MChartPreferences{Symbol: "AAPL", TimeRange: "5Y", Style: "area"}

	s := newTestService(t, store)

	if got := s.Get("AAPL"); got.TimeRange != "5Y" || got.Style != "area" {
		t.Errorf("persisted preferences not loaded: %+v", got)
	}
}

// -----------------------------------------------------------------------------

func TestResetAll(t *testing.T) {
	store := newFakeStore()
	s := newTestService(t, store)

	s.Set(models.MChartPreferences{Symbol: "AAPL", Style: "line"})
	if err := s.ResetAll(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if s.Len() != 0 {
		t.Errorf("expected empty service after reset, got %d", s.Len())
	}
	if store.deletes != 1 {
		t.Errorf("expected 1 store wipe, got %d", store.deletes)
	}
	if got := s.Get("AAPL"); got.Style != "candlestick" {
		t.Errorf("expected defaults after reset, got %+v", got)
	}
}
