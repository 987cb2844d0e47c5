package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the GrowthVault client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the remote document server.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - DataDir: directory holding the local cache (quota store and SQLite file).
//   - LocalQuotaBytes: capacity of the small local store.
//   - ConstrainedImages: shrink images harder before storing them.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	DataDir             string
	LocalQuotaBytes     int64
	ConstrainedImages   bool
}

// DefaultLocalQuotaBytes mirrors the typical capacity of a browser's
// synchronous key/value storage.
const DefaultLocalQuotaBytes = 5 * 1024 * 1024

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DataDir = defaultDataDir()
	c.LocalQuotaBytes = DefaultLocalQuotaBytes
	c.ConstrainedImages = false
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".growthvault"
	}
	return filepath.Join(dir, "growthvault")
}
