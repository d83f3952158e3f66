// Package config holds the settings of the credkeeper client CLI.
package config

import (
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/filex"
)

// AppDirName is the directory created under the user's config dir for the
// default session database.
const AppDirName = "credkeeper"

// Config holds runtime settings for the client CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the server's gRPC endpoint.
//   - SessionDSN: SQLite DSN of the local session store. Empty means
//     session.db in the user's config directory, see ResolveSessionDSN.
//   - DeviceInfo: label recorded on refresh tokens issued to this client.
//   - RequestTimeout: per-command deadline.
type Config struct {
	ServerEndpointAddr string
	SessionDSN         string
	DeviceInfo         string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.SessionDSN = ""
	c.DeviceInfo = "credkeeper-cli"
	c.RequestTimeout = 10 * time.Second
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

// ResolveSessionDSN fills an empty SessionDSN with the default location,
// creating its directory.
func (c *Config) ResolveSessionDSN() error {
	if c.SessionDSN != "" {
		return nil
	}
	dir, err := filex.EnsureConfigDir(AppDirName)
	if err != nil {
		return err
	}
	c.SessionDSN = "file:" + filepath.Join(dir, "session.db")
	return nil
}
