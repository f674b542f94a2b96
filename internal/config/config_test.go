package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults_FillsEmptyFields(t *testing.T) {
	cfg := &StructuredConfig{}
	cfg.applyDefaults()

	assert.Equal(t, DefaultSyncInterval, cfg.Sync.Interval)
	assert.Equal(t, DefaultBatchSize, cfg.Sync.BatchSize)
	assert.Equal(t, DefaultMaxRetries, cfg.Sync.MaxRetries)
	assert.Equal(t, DefaultInitialBackoff, cfg.Sync.InitialBackoff)
	assert.Equal(t, DefaultBackoffCap, cfg.Sync.BackoffCap)
	assert.Equal(t, DefaultRequestTimeout, cfg.API.RequestTimeout)
	assert.Equal(t, DefaultBackend, cfg.Storage.Backend)
	assert.Equal(t, DefaultDBPath, cfg.Storage.DBPath)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &StructuredConfig{}
	cfg.Sync.Interval = time.Minute
	cfg.Storage.Backend = "sqlite"
	cfg.applyDefaults()

	assert.Equal(t, time.Minute, cfg.Sync.Interval)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := &StructuredConfig{}
	cfg.applyDefaults()
	cfg.Storage.Backend = "indexeddb"

	err := cfg.validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestValidate_BackoffCapBelowInitial(t *testing.T) {
	cfg := &StructuredConfig{}
	cfg.applyDefaults()
	cfg.Sync.InitialBackoff = time.Minute
	cfg.Sync.BackoffCap = time.Second

	err := cfg.validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackoffCapTooSmall)
}

func TestParseEnv_ReadsSyncSettings(t *testing.T) {
	t.Setenv("SYNC_INTERVAL", "45s")
	t.Setenv("SYNC_BATCH_SIZE", "25")
	t.Setenv("SYNC_PRIORITY_COLLECTIONS", "users,projects")
	t.Setenv("API_BASE_URL", "http://localhost:9090")
	t.Setenv("STORAGE_BACKEND", "sqlite")

	cfg := &StructuredConfig{}
	require.NoError(t, parseEnv(cfg))

	assert.Equal(t, 45*time.Second, cfg.Sync.Interval)
	assert.Equal(t, 25, cfg.Sync.BatchSize)
	assert.Equal(t, []string{"users", "projects"}, cfg.Sync.PriorityCollections)
	assert.Equal(t, "http://localhost:9090", cfg.API.BaseURL)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestParseJSON_FullFile(t *testing.T) {
	raw := map[string]any{
		"api": map[string]any{
			"base_url":        "https://sync.example.com",
			"request_timeout": "12s",
		},
		"storage": map[string]any{
			"db_path": "/tmp/engine.db",
			"backend": "bolt",
		},
		"sync": map[string]any{
			"interval":    "1m",
			"batch_size":  50,
			"max_retries": 7,
		},
	}
	payload, err := json.Marshal(raw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	cfg, err := parseJSON(path)
	require.NoError(t, err)

	assert.Equal(t, "https://sync.example.com", cfg.API.BaseURL)
	assert.Equal(t, 12*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, "/tmp/engine.db", cfg.Storage.DBPath)
	assert.Equal(t, time.Minute, cfg.Sync.Interval)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 7, cfg.Sync.MaxRetries)
}

func TestParseJSON_MissingFile(t *testing.T) {
	_, err := parseJSON(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestNetAddress_SetValid(t *testing.T) {
	var a NetAddress
	require.NoError(t, a.Set("localhost:8080"))
	assert.Equal(t, "localhost:8080", a.String())
}

func TestNetAddress_SetInvalid(t *testing.T) {
	var a NetAddress
	assert.Error(t, a.Set("no-port"))
	assert.Error(t, a.Set("host:notanumber"))
	assert.Error(t, a.Set("host:-1"))
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"30s"`), &d))
	assert.Equal(t, 30*time.Second, time.Duration(d))

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, time.Second, time.Duration(d))

	assert.Error(t, json.Unmarshal([]byte(`"bogus"`), &d))
}
