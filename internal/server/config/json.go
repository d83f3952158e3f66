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
const ConfigEnv = "CREDKEEPER_CONFIG"

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration,
// so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP                  string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC                  string         `json:"endpoint_addr_grpc"`
	StorageKind                       string         `json:"storage"`
	DatabaseDSN                       string         `json:"database_dsn"`
	SecretKey                         string         `json:"secret_key"`
	AccessTokenValidityDuration       timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration      timex.Duration `json:"refresh_token_validity_duration"`
	VerificationTokenValidityDuration timex.Duration `json:"verification_token_validity_duration"`
	AppBaseURL                        string         `json:"app_base_url"`
	PasswordHasher                    string         `json:"password_hasher"`
	Notifier                          string         `json:"notifier"`
	MailFrom                          string         `json:"mail_from"`
	S3RootUser                        string         `json:"s3_root_user"`
	S3RootPassword                    string         `json:"s3_root_password"`
	S3Bucket                          string         `json:"s3_bucket"`
	S3Region                          string         `json:"s3_region"`
	S3BaseEndpoint                    string         `json:"s3_base_endpoint"`
	LogLevel                          string         `json:"log_level"`
}

// parseJson overlays values from a JSON file onto config. Keys missing from
// the file keep their current value.
//
// The file path comes from -c / -config, or from $CREDKEEPER_CONFIG. With
// neither set nothing is loaded. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigPath(ConfigEnv)
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.StorageKind, c.StorageKind)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.VerificationTokenValidityDuration, c.VerificationTokenValidityDuration)
	setString(&config.AppBaseURL, c.AppBaseURL)
	setString(&config.PasswordHasher, c.PasswordHasher)
	setString(&config.Notifier, c.Notifier)
	setString(&config.MailFrom, c.MailFrom)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = time.Duration(v.Duration)
	}
}
