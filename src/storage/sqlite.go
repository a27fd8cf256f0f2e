package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"stock-tracker/src/logger"
	"stock-tracker/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteStore(cfg *models.MConfig, log *logger.Logger) (*SQLiteStore, error) {
	return &SQLiteStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) createTables() error {
	// Preferences survive restarts, never drop
	query := `
		CREATE TABLE IF NOT EXISTS chart_preferences (
			symbol TEXT PRIMARY KEY,
			time_range TEXT,
			style TEXT,
			overlays TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create chart_preferences: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) LoadAll() (map[string]models.MChartPreferences, error) {
	rows, err := d.DB.Query("SELECT symbol, time_range, style, overlays FROM chart_preferences")
	if err != nil {
		return nil, fmt.Errorf("failed to load chart_preferences: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.MChartPreferences)
	for rows.Next() {
		var p models.MChartPreferences
		var overlays string
		if err := rows.Scan(&p.Symbol, &p.TimeRange, &p.Style, &overlays); err != nil {
			return nil, err
		}
		p.Overlays = splitOverlays(overlays)
		out[p.Symbol] = p
	}

	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Save(prefs models.MChartPreferences) error {
	query := `
		INSERT INTO chart_preferences (symbol, time_range, style, overlays, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (symbol) DO UPDATE SET
			time_range = excluded.time_range,
			style = excluded.style,
			overlays = excluded.overlays,
			updated_at = excluded.updated_at
	`
	_, err := d.DB.Exec(query, prefs.Symbol, prefs.TimeRange, prefs.Style, joinOverlays(prefs.Overlays))
	if err != nil {
		return fmt.Errorf("failed to save preferences for %s: %w", prefs.Symbol, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) DeleteAll() error {
	if _, err := d.DB.Exec("DELETE FROM chart_preferences"); err != nil {
		return fmt.Errorf("failed to clear chart_preferences: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func joinOverlays(overlays []string) string {
	return strings.Join(overlays, ",")
}

func splitOverlays(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
