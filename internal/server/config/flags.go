package config

import (
	"flag"
	"os"
	"time"

	"github.com/sessionworks/authd/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-i string   JWT issuer
//	-u string   JWT audience
//	-t int      access token validity, seconds
//	-r int      refresh token validity, days
//	-w int      bcrypt cost (work factor)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers and converted to time.Duration values.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-i", "-u", "-t", "-r", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.JWTSecretKey, "s", config.JWTSecretKey, "JWT secret key")
	fs.StringVar(&config.JWTIssuer, "i", config.JWTIssuer, "JWT issuer")
	fs.StringVar(&config.JWTAudience, "u", config.JWTAudience, "JWT audience")

	accessTokenValiditySeconds := fs.Int("t", int(config.AccessTokenValidityDuration.Seconds()), "access token validity (in seconds)")
	refreshTokenValidityDays := fs.Int("r", int(config.RefreshTokenValidityDuration.Hours()/24), "refresh token validity (in days)")

	fs.IntVar(&config.BcryptCost, "w", config.BcryptCost, "bcrypt cost")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValiditySeconds) * time.Second
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDays) * 24 * time.Hour
}
