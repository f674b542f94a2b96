package config

import (
	"errors"
	"time"
)

// Defaults applied after merging all config sources.
const (
	DefaultSyncInterval   = 30 * time.Second
	DefaultBatchSize      = 100
	DefaultMaxRetries     = 5
	DefaultInitialBackoff = 2 * time.Second
	DefaultBackoffCap     = 30 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultBackend        = "bolt"
	DefaultDBPath         = "syncengine"
)

func (c *StructuredConfig) applyDefaults() {
	if c.API.RequestTimeout <= 0 {
		c.API.RequestTimeout = DefaultRequestTimeout
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = DefaultDBPath
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = DefaultSyncInterval
	}
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = DefaultBatchSize
	}
	if c.Sync.MaxRetries <= 0 {
		c.Sync.MaxRetries = DefaultMaxRetries
	}
	if c.Sync.InitialBackoff <= 0 {
		c.Sync.InitialBackoff = DefaultInitialBackoff
	}
	if c.Sync.BackoffCap <= 0 {
		c.Sync.BackoffCap = DefaultBackoffCap
	}
}

func (c *StructuredConfig) validate() error {
	var errs []error

	if c.Storage.Backend != "sqlite" && c.Storage.Backend != "bolt" {
		errs = append(errs, ErrUnknownBackend)
	}
	if c.Sync.BackoffCap < c.Sync.InitialBackoff {
		errs = append(errs, ErrBackoffCapTooSmall)
	}

	return errors.Join(errs...)
}
