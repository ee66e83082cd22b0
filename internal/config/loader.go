package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Timeout bounds for the read-idle guard, in seconds.
const (
	minReadIdleTimeoutSeconds = 15
	maxReadIdleTimeoutSeconds = 60
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if DOSEWATCH_CONFIG is set
//  3. env (prefix DOSEWATCH_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("DOSEWATCH_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: DOSEWATCH_ADDR, DOSEWATCH_TARE_GRAMS, ...
	// Map env keys like DOSEWATCH_TARE_GRAMS -> tare_grams (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("DOSEWATCH_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "dosewatch_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr must not be empty", ErrInvalidConfig)
	}
	if c.ReadIdleTimeoutSeconds < minReadIdleTimeoutSeconds || c.ReadIdleTimeoutSeconds > maxReadIdleTimeoutSeconds {
		return fmt.Errorf("%w: read_idle_timeout_seconds must be in [%d,%d]",
			ErrInvalidConfig, minReadIdleTimeoutSeconds, maxReadIdleTimeoutSeconds)
	}
	if c.WindowMarginMinutes <= 0 {
		return fmt.Errorf("%w: window_margin_minutes must be positive", ErrInvalidConfig)
	}
	if c.TareGrams < 0 {
		return fmt.Errorf("%w: tare_grams must not be negative", ErrInvalidConfig)
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres_dsn required when store=postgres", ErrInvalidConfig)
		}
	case StorePostgrest:
		if c.PostgrestURL == "" {
			return fmt.Errorf("%w: postgrest_url required when store=postgrest", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	}
	return nil
}
