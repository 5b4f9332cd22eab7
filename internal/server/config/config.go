// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the ScribeKeeper server.
//
// Fields:
//   - EndpointAddr: bind address for the HTTP API.
//   - DatabaseDSN: SQLite file for transcripts; empty keeps them in memory.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use test defaults in prod.
//   - AccessTokenValidityDuration: lifetime of minted bearer tokens.
//   - KeyValidityDuration: lifetime of issued encryption keys.
//   - KeyGracePeriod: how long an expired key still opens late uploads.
//   - KeyAlgorithm: AEAD used for issued keys.
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint: object storage settings.
//   - UploadURLValidity: lifetime of presigned recording upload URLs.
type Config struct {
	EndpointAddr                string
	DatabaseDSN                 string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	KeyValidityDuration         time.Duration
	KeyGracePeriod              time.Duration
	KeyAlgorithm                string
	S3RootUser                  string
	S3RootPassword              string
	S3Bucket                    string
	S3Region                    string
	S3BaseEndpoint              string
	UploadURLValidity           time.Duration
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddr = ":8080"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 12 * time.Hour
	c.KeyValidityDuration = 15 * time.Minute
	c.KeyGracePeriod = 10 * time.Minute
	c.KeyAlgorithm = "aes-256-gcm"
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "scribekeeper"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.UploadURLValidity = 15 * time.Minute
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags. args are
// the program arguments without the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("secret key must not be empty")
	}
	if c.KeyValidityDuration <= 0 {
		return fmt.Errorf("key validity must be positive, got %s", c.KeyValidityDuration)
	}
	if c.KeyGracePeriod < 0 {
		return fmt.Errorf("key grace period must not be negative, got %s", c.KeyGracePeriod)
	}
	return nil
}
