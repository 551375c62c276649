// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the spached process configuration.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `env:"SPACHE_LISTEN_ADDR" envDefault:"localhost:3000"`

	// PublicOrigin is the externally visible origin of this service; feed
	// links are rewritten to point at it.
	PublicOrigin string `env:"SPACHE_PUBLIC_ORIGIN" envDefault:"http://localhost:3000"`

	// DBPath is the SQLite database file backing the day store.
	DBPath string `env:"SPACHE_DB_PATH" envDefault:"spache.db"`

	// NeoAPIBaseURL is the upstream NEO REST API base.
	NeoAPIBaseURL string `env:"SPACHE_NEO_API_URL" envDefault:"https://api.nasa.gov/neo/rest/v1"`

	// NasaAPIKey authenticates against the upstream API. DEMO_KEY works
	// with tight quotas.
	NasaAPIKey string `env:"SPACHE_NASA_API_KEY" envDefault:"DEMO_KEY"`

	// UpstreamTimeout bounds each upstream HTTP request.
	UpstreamTimeout time.Duration `env:"SPACHE_UPSTREAM_TIMEOUT" envDefault:"30s"`

	// UpstreamMinInterval throttles upstream calls to one per interval.
	// Zero (the default) leaves them unthrottled: concurrent misses hit
	// upstream concurrently.
	UpstreamMinInterval time.Duration `env:"SPACHE_UPSTREAM_MIN_INTERVAL" envDefault:"0"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"SPACHE_LOG_LEVEL" envDefault:"info"`
}

// Load parses the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
