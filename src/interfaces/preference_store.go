package interfaces

import "stock-tracker/src/models"

// -----------------------------------------------------------------------------
// IPreferenceStore persists per-symbol chart display preferences.
// Implementations must tolerate an empty or absent backing store.
// -----------------------------------------------------------------------------

type IPreferenceStore interface {

	// Initialize opens the backing store and creates tables if missing.
	Initialize() error

	// -----------------------------------------------------------------------------

	// LoadAll returns every persisted preference row, keyed by symbol.
	LoadAll() (map[string]models.MChartPreferences, error)

	// -----------------------------------------------------------------------------

	// Save upserts the preferences for one symbol.
	Save(prefs models.MChartPreferences) error

	// -----------------------------------------------------------------------------

	// DeleteAll wipes every preference row (the explicit bulk reset).
	DeleteAll() error

	// -----------------------------------------------------------------------------

	// Close releases the underlying connection.
	Close() error
}
