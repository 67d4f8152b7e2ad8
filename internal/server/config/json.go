package config

import (
	"encoding/json"
	"os"

	"github.com/sessionworks/authd/internal/flagx"
	"github.com/sessionworks/authd/internal/timex"
)

// JsonConfig mirrors Config for JSON unmarshalling. Interval fields use
// timex.Duration, which accepts both string values such as "300s" and
// integer nanoseconds. After unmarshalling, non-zero fields are copied into
// the runtime Config.
type JsonConfig struct {
	EndpointAddrHTTP             string         `json:"endpoint_addr_http"`
	DatabaseDSN                  string         `json:"database_dsn"`
	JWTSecretKey                 string         `json:"jwt_secret_key"`
	JWTIssuer                    string         `json:"jwt_issuer"`
	JWTAudience                  string         `json:"jwt_audience"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	BcryptCost                   int            `json:"bcrypt_cost"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config. The file path comes from the -c/-config command-line flags; if
// neither is set, nothing is loaded. A file that cannot be read or parsed
// is a startup failure and panics. Fields absent from the file keep their
// current values.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddrHTTP != "" {
		config.EndpointAddrHTTP = c.EndpointAddrHTTP
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.JWTSecretKey != "" {
		config.JWTSecretKey = c.JWTSecretKey
	}
	if c.JWTIssuer != "" {
		config.JWTIssuer = c.JWTIssuer
	}
	if c.JWTAudience != "" {
		config.JWTAudience = c.JWTAudience
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
}
