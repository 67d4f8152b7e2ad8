package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays Config fields from environment variables (AUTHD_*).
// Only variables that are actually set override earlier values.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
