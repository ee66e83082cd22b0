// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Store backend names accepted in the `store` option.
const (
	StorePostgres  = "postgres"
	StorePostgrest = "postgrest"
	StoreMemory    = "memory"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the TCP listen address for device connections.
	Addr string `koanf:"addr"`

	// HTTPAddr configures the operator API listen address.
	HTTPAddr string `koanf:"http_addr"`

	// ReadIdleTimeoutSeconds tears down a connection after this many seconds
	// without inbound bytes. Liveness guard only, not a protocol feature.
	ReadIdleTimeoutSeconds int `koanf:"read_idle_timeout_seconds"`

	// TareGrams is subtracted from every raw reading to account for the
	// bottle/container weight.
	TareGrams float64 `koanf:"tare_grams"`

	// WindowMarginMinutes is the ± margin around a scheduled dosing window
	// within which a dose counts as on time.
	WindowMarginMinutes int `koanf:"window_margin_minutes"`

	// Store selects the backing store: postgres, postgrest, or memory.
	Store string `koanf:"store"`

	// PostgresDSN is the lib/pq connection string when store=postgres.
	PostgresDSN string `koanf:"postgres_dsn"`

	// PostgrestURL and PostgrestKey locate the REST store when store=postgrest.
	PostgrestURL string `koanf:"postgrest_url"`
	PostgrestKey string `koanf:"postgrest_key"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Addr:                   "0.0.0.0:5005",
		HTTPAddr:               ":9080",
		ReadIdleTimeoutSeconds: 30,
		TareGrams:              0,
		WindowMarginMinutes:    30,
		Store:                  StoreMemory,
	}
}
