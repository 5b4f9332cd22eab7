package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/scribekeeper/internal/flagx"
)

// flagNames are the flags owned by parseFlags.
var flagNames = []string{"-a", "-d", "-k", "-t", "-j", "-u", "-p", "-b", "-g", "-e"}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   SQLite database file (empty for in-memory)
//	-k string   JWT HMAC secret key
//	-t int      encryption key validity, seconds
//	-j int      access token validity, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// args are first filtered with flagx.FilterArgs so flags owned by other
// loaders do not cause parse errors.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "sqlite database file")
	fs.StringVar(&config.SecretKey, "k", config.SecretKey, "secret key")

	keyValidity := fs.Int("t", int(config.KeyValidityDuration.Seconds()), "encryption key validity (in seconds)")
	accessTokenValidity := fs.Int("j", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(flagx.FilterArgs(args, flagNames)); err != nil {
		return err
	}

	config.KeyValidityDuration = time.Duration(*keyValidity) * time.Second
	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidity) * time.Minute
	return nil
}
