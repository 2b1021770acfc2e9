package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/obrasync/obrasync/internal/flagx"
	"github.com/obrasync/obrasync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "30s"
// or as integer nanoseconds. After parsing, values are copied into the
// runtime Config (which uses time.Duration).
type JsonConfig struct {
	ServerEndpointURL   string         `json:"server_endpoint_url"`
	DatabasePath        string         `json:"database_path"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	BootstrapDelay      timex.Duration `json:"bootstrap_delay"`
	RequestTimeout      timex.Duration `json:"request_timeout"`
	SyncChunkSize       int            `json:"sync_chunk_size"`
	MaxSyncAttempts     int            `json:"max_sync_attempts"`
}

// parseJson overlays Config with values loaded from a JSON file named via
// the -c or -config flags. Missing flag means no JSON layer. Only fields
// actually present in the file override earlier layers.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointURL != "" {
		cfg.ServerEndpointURL = jc.ServerEndpointURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.BootstrapDelay.Duration > 0 {
		cfg.BootstrapDelay = time.Duration(jc.BootstrapDelay.Duration)
	}
	if jc.RequestTimeout.Duration > 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.SyncChunkSize > 0 {
		cfg.SyncChunkSize = jc.SyncChunkSize
	}
	if jc.MaxSyncAttempts > 0 {
		cfg.MaxSyncAttempts = jc.MaxSyncAttempts
	}
}
