// Package config loads the client configuration from layered sources:
// built-in defaults, environment (including a .env file), an optional JSON
// file, and command-line flags. Later sources take precedence.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Config holds runtime settings for the Obrasync client.
type Config struct {
	// ServerEndpointURL is the base URL of the backend REST API.
	ServerEndpointURL string
	// DatabasePath is the location of the client-local SQLite database.
	DatabasePath string
	// OnlineCheckInterval is how often the watcher probes server
	// reachability and triggers a sync pass while online.
	OnlineCheckInterval time.Duration
	// BootstrapDelay is the grace period after startup before the first
	// probe, letting the application settle.
	BootstrapDelay time.Duration
	// ProbeTimeout bounds a single liveness probe.
	ProbeTimeout time.Duration
	// RequestTimeout bounds every replayed or direct API request.
	RequestTimeout time.Duration
	// SyncChunkSize bounds how many replays run concurrently in a pass.
	SyncChunkSize int
	// MaxSyncAttempts is the retry cap before an operation turns
	// terminally failed.
	MaxSyncAttempts int
}

// LoadDefaults populates c with the documented defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointURL = "http://127.0.0.1:8080"
	c.DatabasePath = defaultDatabasePath()
	c.OnlineCheckInterval = 30 * time.Second
	c.BootstrapDelay = 2 * time.Second
	c.ProbeTimeout = 3 * time.Second
	c.RequestTimeout = 15 * time.Second
	c.SyncChunkSize = 3
	c.MaxSyncAttempts = 3
}

// defaultDatabasePath places the database in the user data directory,
// falling back to the working directory when that cannot be resolved.
func defaultDatabasePath() string {
	path, err := xdg.DataFile(filepath.Join("obrasync", "obrasync.db"))
	if err != nil {
		return "obrasync.db"
	}
	return path
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment (with .env support), a JSON file (if provided via
// -c/-config), and command-line flags. Later sources take precedence over
// earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
