package config

import (
	"fmt"
	"os"

	"stock-tracker/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// Engine timing defaults, applied when the YAML omits a value.
const (
	defaultDebounceMs           = 300
	defaultFallbackDelayMs      = 2000
	defaultStaleThresholdMs     = 15000
	defaultReconnectBaseDelayMs = 1000
	defaultReconnectCapDelayMs  = 30000
	defaultMaxReconnectAttempts = 10
	defaultBarCacheSize         = 50
)

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	e := &c.Engine
	if e.DebounceMs == 0 {
		e.DebounceMs = defaultDebounceMs
	}
	if e.FallbackDelayMs == 0 {
		e.FallbackDelayMs = defaultFallbackDelayMs
	}
	if e.StaleThresholdMs == 0 {
		e.StaleThresholdMs = defaultStaleThresholdMs
	}
	if e.ReconnectBaseDelayMs == 0 {
		e.ReconnectBaseDelayMs = defaultReconnectBaseDelayMs
	}
	if e.ReconnectCapDelayMs == 0 {
		e.ReconnectCapDelayMs = defaultReconnectCapDelayMs
	}
	if e.MaxReconnectAttempts == 0 {
		e.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if e.BarCacheSize == 0 {
		e.BarCacheSize = defaultBarCacheSize
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate API configuration
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base_url cannot be empty")
	}
	if c.API.StreamURL == "" {
		return fmt.Errorf("api stream_url cannot be empty")
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Validate Engine configuration
	if c.Engine.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("max reconnect attempts must be greater than 0")
	}
	if c.Engine.ReconnectCapDelayMs < c.Engine.ReconnectBaseDelayMs {
		return fmt.Errorf("reconnect cap delay (%dms) must not be below base delay (%dms)",
			c.Engine.ReconnectCapDelayMs, c.Engine.ReconnectBaseDelayMs)
	}
	if c.Engine.BarCacheSize <= 0 {
		return fmt.Errorf("bar cache size must be greater than 0")
	}
	// The fallback fetch must only fire against data the quote cache itself
	// would already consider stale.
	if c.Engine.StaleThresholdMs <= c.Engine.FallbackDelayMs {
		return fmt.Errorf("stale threshold (%dms) must be greater than fallback delay (%dms)",
			c.Engine.StaleThresholdMs, c.Engine.FallbackDelayMs)
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate NATS configuration
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats url cannot be empty when nats is enabled")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
