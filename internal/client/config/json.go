package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/flagx"
	"github.com/dmitrijs2005/credkeeper/internal/timex"
)

// ConfigEnv names the environment variable consulted for the JSON config
// path when neither -c nor -config is given.
const ConfigEnv = "CREDKEEPER_CLIENT_CONFIG"

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
type JsonConfig struct {
	ServerEndpointAddr string         `json:"server_endpoint_addr"`
	SessionDSN         string         `json:"session_dsn"`
	DeviceInfo         string         `json:"device_info"`
	RequestTimeout     timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with values from the JSON file named by -c,
// -config or $CREDKEEPER_CLIENT_CONFIG. Missing keys keep their value.
// Read or decode errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigPath(ConfigEnv)
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

	if jc.ServerEndpointAddr != "" {
		cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	}
	if jc.SessionDSN != "" {
		cfg.SessionDSN = jc.SessionDSN
	}
	if jc.DeviceInfo != "" {
		cfg.DeviceInfo = jc.DeviceInfo
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
}
