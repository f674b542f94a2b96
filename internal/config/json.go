package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Duration unmarshals either a JSON number of nanoseconds or a string in
// time.ParseDuration form ("30s", "1h").
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration value: %v", v)
	}
}

type structuredJSONConfig struct {
	API struct {
		BaseURL        string   `json:"base_url"`
		RequestTimeout Duration `json:"request_timeout"`
		Login          string   `json:"login"`
		Password       string   `json:"password"`
	} `json:"api,omitempty"`

	Storage struct {
		DBPath  string `json:"db_path"`
		Backend string `json:"backend"`
	} `json:"storage,omitempty"`

	Sync struct {
		Interval            Duration `json:"interval"`
		BatchSize           int      `json:"batch_size"`
		MaxRetries          int      `json:"max_retries"`
		InitialBackoff      Duration `json:"initial_backoff"`
		BackoffCap          Duration `json:"backoff_cap"`
		PriorityCollections []string `json:"priority_collections"`
	} `json:"sync,omitempty"`

	Server struct {
		HTTPAddress   string   `json:"http_address"`
		DatabaseDSN   string   `json:"dsn"`
		TokenSignKey  string   `json:"token_sign_key"`
		TokenIssuer   string   `json:"token_issuer"`
		TokenDuration Duration `json:"token_duration"`
	} `json:"server,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg structuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		API: API{
			BaseURL:        jsonCfg.API.BaseURL,
			RequestTimeout: time.Duration(jsonCfg.API.RequestTimeout),
			Login:          jsonCfg.API.Login,
			Password:       jsonCfg.API.Password,
		},
		Storage: Storage{
			DBPath:  jsonCfg.Storage.DBPath,
			Backend: jsonCfg.Storage.Backend,
		},
		Sync: Sync{
			Interval:            time.Duration(jsonCfg.Sync.Interval),
			BatchSize:           jsonCfg.Sync.BatchSize,
			MaxRetries:          jsonCfg.Sync.MaxRetries,
			InitialBackoff:      time.Duration(jsonCfg.Sync.InitialBackoff),
			BackoffCap:          time.Duration(jsonCfg.Sync.BackoffCap),
			PriorityCollections: jsonCfg.Sync.PriorityCollections,
		},
		Server: Server{
			HTTPAddress:   jsonCfg.Server.HTTPAddress,
			DatabaseDSN:   jsonCfg.Server.DatabaseDSN,
			TokenSignKey:  jsonCfg.Server.TokenSignKey,
			TokenIssuer:   jsonCfg.Server.TokenIssuer,
			TokenDuration: time.Duration(jsonCfg.Server.TokenDuration),
		},
	}

	return cfg, nil
}
