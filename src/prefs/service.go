package prefs

import (
	"fmt"
	"sync"

	"stock-tracker/src/interfaces"
	"stock-tracker/src/logger"
	"stock-tracker/src/models"
	"stock-tracker/src/utils"
)

// -----------------------------------------------------------------------------
// Service keeps per-symbol chart preferences in memory, backed by a
// persistent store. Reads never touch the store after the initial load;
// writes go through to the store synchronously so a crash loses nothing.
// -----------------------------------------------------------------------------

type Service struct {
	mu     sync.RWMutex
	prefs  map[string]models.MChartPreferences
	store  interfaces.IPreferenceStore
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewService(store interfaces.IPreferenceStore, log *logger.Logger) (*Service, error) {
	loaded, err := store.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	log.Info("Loaded preferences for %d symbols", len(loaded))
	return &Service{
		prefs:  loaded,
		store:  store,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

// Get returns the preferences for a symbol, falling back to defaults when the
// symbol was never customized. The defaults are not persisted; only an
// explicit Set writes through.
func (s *Service) Get(symbol string) models.MChartPreferences {
	symbol = utils.NormalizeSymbol(symbol)

	s.mu.RLock()
	p, ok := s.prefs[symbol]
	s.mu.RUnlock()

	if !ok {
		return models.DefaultChartPreferences(symbol)
	}
	return p
}

// -----------------------------------------------------------------------------

// Set stores the preferences in memory and writes them through to the store.
func (s *Service) Set(p models.MChartPreferences) error {
	p.Symbol = utils.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return fmt.Errorf("preferences require a symbol")
	}

	if err := s.store.Save(p); err != nil {
		return err
	}

	s.mu.Lock()
	s.prefs[p.Symbol] = p
	s.mu.Unlock()

	return nil
}

// -----------------------------------------------------------------------------

// ResetAll wipes every stored preference, in memory and in the store.
func (s *Service) ResetAll() error {
	if err := s.store.DeleteAll(); err != nil {
		return err
	}

	s.mu.Lock()
	s.prefs = make(map[string]models.MChartPreferences)
	s.mu.Unlock()

	return nil
}

// -----------------------------------------------------------------------------

// Len returns the number of customized symbols.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prefs)
}
