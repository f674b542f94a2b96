package config

import "fmt"

// EngineConfig is the client-engine view of the merged configuration: the
// remote API, the local store and the sync scheduling knobs.
type EngineConfig struct {
	API     API
	Storage Storage
	Sync    Sync
}

// GetEngineConfig builds the engine-specific config view from the merged
// structured configuration.
func GetEngineConfig() (*EngineConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	return &EngineConfig{
		API:     cfg.API,
		Storage: cfg.Storage,
		Sync:    cfg.Sync,
	}, nil
}

// ServerConfig is the sync-server view of the merged configuration.
type ServerConfig struct {
	Server Server
}

// GetServerConfig builds the server-specific config view from the merged
// structured configuration.
func GetServerConfig() (*ServerConfig, error) {
	cfg, err := GetStructuredConfig()
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	serverCfg := &ServerConfig{Server: cfg.Server}
	if serverCfg.Server.HTTPAddress == "" {
		serverCfg.Server.HTTPAddress = "localhost:8080"
	}

	return serverCfg, nil
}
