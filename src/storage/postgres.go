package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stock-tracker/src/logger"
	"stock-tracker/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresStore(cfg *models.MConfig, log *logger.Logger) (*PostgresStore, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresStore{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresStore initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."chart_preferences" (
			symbol TEXT PRIMARY KEY,
			time_range TEXT,
			style TEXT,
			overlays TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create chart_preferences: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) LoadAll() (map[string]models.MChartPreferences, error) {
	query := fmt.Sprintf(`SELECT symbol, time_range, style, overlays FROM "%s"."chart_preferences"`, d.Schema)
	rows, err := d.DB.Query(query)
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

func (d *PostgresStore) Save(prefs models.MChartPreferences) error {
	query := fmt.Sprintf(`
		INSERT INTO "%s"."chart_preferences" (symbol, time_range, style, overlays, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (symbol) DO UPDATE SET
			time_range = EXCLUDED.time_range,
			style = EXCLUDED.style,
			overlays = EXCLUDED.overlays,
			updated_at = EXCLUDED.updated_at
	`, d.Schema)
	_, err := d.DB.Exec(query, prefs.Symbol, prefs.TimeRange, prefs.Style, joinOverlays(prefs.Overlays))
	if err != nil {
		return fmt.Errorf("failed to save preferences for %s: %w", prefs.Symbol, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) DeleteAll() error {
	query := fmt.Sprintf(`DELETE FROM "%s"."chart_preferences"`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to clear chart_preferences: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
