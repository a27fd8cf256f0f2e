package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	API      MAPIConfig     `yaml:"api"`
	Engine   MEngineConfig  `yaml:"engine"`
	Storage  MStorageConfig `yaml:"storage"`
	NATS     MNATSConfig    `yaml:"nats"`

	// Watchlist is subscribed at startup.
	Watchlist []string `yaml:"watchlist"`
}

type MAPIConfig struct {
	BaseURL        string `yaml:"base_url"`
	StreamURL      string `yaml:"stream_url"`
	Token          string `yaml:"token"`
	RequestTimeout int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"retries"`
}

type MEngineConfig struct {
	DebounceMs           int `yaml:"debounce_ms"`
	FallbackDelayMs      int `yaml:"fallback_delay_ms"`
	StaleThresholdMs     int `yaml:"stale_threshold_ms"`
	ReconnectBaseDelayMs int `yaml:"reconnect_base_delay_ms"`
	ReconnectCapDelayMs  int `yaml:"reconnect_cap_delay_ms"`
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
	BarCacheSize         int `yaml:"bar_cache_size"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}
