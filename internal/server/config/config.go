// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the SCS server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the public HTTP API.
//   - StorageDir: root directory holding the user-record file and the
//     per-user namespace directories.
//   - MaxUploadBytes: hard cap on the size of an uploaded encrypted blob.
//   - ShutdownTimeout: how long a graceful HTTP shutdown may take.
type Config struct {
	EndpointAddrHTTP string
	StorageDir       string
	MaxUploadBytes   int64
	ShutdownTimeout  time.Duration
}

// LoadDefaults populates Config with sensible development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.StorageDir = "storage"
	c.MaxUploadBytes = 50 * 1024 * 1024
	c.ShutdownTimeout = 5 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
