package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/scribekeeper/internal/client/services"
)

const (
	StoreSQLite = "sqlite"
	StoreBadger = "badger"
	StoreMemory = "memory"

	UploaderPresigned = "presigned"
	UploaderS3        = "s3"
)

// Config holds runtime settings for the ScribeKeeper CLI.
type Config struct {
	ServerEndpointAddr string
	DataDir            string
	StoreBackend       string

	AutoPersistInterval time.Duration
	RequestTimeout      time.Duration
	BackupMaxAge        time.Duration

	// EncryptedFields lists "path[:encoding]" specs of transcript fields to
	// encrypt before upload.
	EncryptedFields []string

	Uploader       string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:8080"
	c.DataDir = ".scribekeeper"
	c.StoreBackend = StoreSQLite
	c.AutoPersistInterval = services.DefaultAutoPersistInterval
	c.RequestTimeout = 15 * time.Second
	c.BackupMaxAge = 7 * 24 * time.Hour
	c.EncryptedFields = append([]string(nil), services.DefaultEncryptedFields...)
	c.Uploader = UploaderPresigned
	c.S3Region = "us-east-1"
}

// LoadConfig builds a Config from defaults, then the environment (including
// a .env file), then the optional config file at path (.json or .toml).
// Flags are applied afterwards by the caller, see Overrides.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if path != "" {
		if err := parseFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerations and durations.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreSQLite, StoreBadger, StoreMemory:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	switch c.Uploader {
	case UploaderPresigned, UploaderS3:
	default:
		return fmt.Errorf("unknown uploader %q", c.Uploader)
	}
	if c.AutoPersistInterval <= 0 {
		return fmt.Errorf("auto-persist interval must be positive, got %s", c.AutoPersistInterval)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout must not be negative, got %s", c.RequestTimeout)
	}
	return nil
}

// SQLitePath is the backups database file inside DataDir.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "backups.db")
}

// BadgerDir is the Badger directory inside DataDir.
func (c *Config) BadgerDir() string {
	return filepath.Join(c.DataDir, "badger")
}

func splitTrim(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
