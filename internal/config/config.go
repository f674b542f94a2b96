// Package config assembles the engine and server configuration from
// environment variables, command-line flags and an optional JSON file.
// The three sources are merged in that order (later sources fill fields the
// earlier ones left empty) and validated once.
package config

import (
	"fmt"
	"time"
)

// StructuredConfig is the top-level configuration container. It is populated
// by merging values from environment variables, command-line flags and an
// optional JSON file.
//
// Struct tags:
//   - envPrefix: prefix applied to all nested env tag lookups (caarlos0/env).
//   - env: direct environment variable name for scalar fields.
type StructuredConfig struct {
	// API holds settings of the remote sync API consumed by the engine.
	API API `envPrefix:"API_"`

	// Storage holds the local persistence settings: database path and
	// preferred backend.
	Storage Storage `envPrefix:"STORAGE_"`

	// Sync holds scheduling, batching and retry settings for the sync
	// coordinator.
	Sync Sync `envPrefix:"SYNC_"`

	// Server holds the reference sync server settings.
	Server Server `envPrefix:"SERVER_"`

	// JSONFilePath is the optional path to a JSON configuration file.
	// Populated via the CONFIG environment variable or the -c/-config flag.
	JSONFilePath string `env:"CONFIG"`
}

// API describes the remote endpoint the engine pushes to and pulls from.
type API struct {
	// BaseURL is the sync API base URL, e.g. "https://api.example.com".
	BaseURL string `env:"BASE_URL"`

	// RequestTimeout bounds every network call; exceeding it cancels only
	// that call and classifies the failure as a timeout.
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`

	// Login and Password authenticate the engine against the sync API.
	// Used by the credential token provider to obtain and refresh bearer
	// tokens.
	Login    string `env:"LOGIN"`
	Password string `env:"PASSWORD"`
}

// Storage groups the local persistence settings.
type Storage struct {
	// DBPath is the on-disk location of the local store.
	DBPath string `env:"DB_PATH"`

	// Backend selects the preferred local backend: "sqlite" or "bolt".
	// When the preferred backend fails to initialize the engine degrades
	// to the alternate one instead of failing startup.
	Backend string `env:"BACKEND"`
}

// Sync controls the coordinator's scheduling and retry behaviour.
type Sync struct {
	// Interval is the periodic push-cycle tick.
	Interval time.Duration `env:"INTERVAL"`

	// BatchSize caps how many queue items a single push cycle drains.
	BatchSize int `env:"BATCH_SIZE"`

	// MaxRetries bounds per-item retry attempts; items beyond the bound
	// are retained but no longer replayed.
	MaxRetries int `env:"MAX_RETRIES"`

	// InitialBackoff and BackoffCap shape the full-cycle retry curve.
	InitialBackoff time.Duration `env:"INITIAL_BACKOFF"`
	BackoffCap     time.Duration `env:"BACKOFF_CAP"`

	// PriorityCollections are applied first during a full pull (the
	// original deployments put "users" here so auth data lands before
	// anything referencing it).
	PriorityCollections []string `env:"PRIORITY_COLLECTIONS" envSeparator:","`
}

// Server holds the reference sync server settings.
type Server struct {
	// HTTPAddress is the listen address in host:port form.
	HTTPAddress string `env:"ADDRESS"`

	// DatabaseDSN is the PostgreSQL connection string.
	DatabaseDSN string `env:"DATABASE_URI"`

	// TokenSignKey signs issued bearer tokens.
	TokenSignKey string `env:"TOKEN_SIGN_KEY"`

	// TokenIssuer is the JWT issuer claim.
	TokenIssuer string `env:"TOKEN_ISSUER"`

	// TokenDuration is the issued token lifetime.
	TokenDuration time.Duration `env:"TOKEN_DURATION"`
}

// GetStructuredConfig loads, merges and validates the full configuration.
func GetStructuredConfig() (*StructuredConfig, error) {
	cfg, err := newConfigBuilder().
		withEnv().
		withFlags().
		withJSON().
		build()
	if err != nil {
		return nil, fmt.Errorf("error building config: %w", err)
	}

	return cfg, nil
}
