package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "SCRIBE_"

// parseEnv overlays cfg with SCRIBE_* variables. A .env file in the working
// directory is loaded first; variables already set in the process win.
func parseEnv(cfg *Config) error {
	_ = godotenv.Load()

	strs := map[string]*string{
		"SERVER_ADDR":   &cfg.ServerEndpointAddr,
		"DATA_DIR":      &cfg.DataDir,
		"STORE":         &cfg.StoreBackend,
		"UPLOADER":      &cfg.Uploader,
		"S3_BUCKET":     &cfg.S3Bucket,
		"S3_REGION":     &cfg.S3Region,
		"S3_ENDPOINT":   &cfg.S3BaseEndpoint,
		"S3_ACCESS_KEY": &cfg.S3AccessKey,
		"S3_SECRET_KEY": &cfg.S3SecretKey,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"AUTOPERSIST_INTERVAL": &cfg.AutoPersistInterval,
		"REQUEST_TIMEOUT":      &cfg.RequestTimeout,
		"BACKUP_MAX_AGE":       &cfg.BackupMaxAge,
	}
	for name, dst := range durations {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := os.LookupEnv(envPrefix + "ENCRYPTED_FIELDS"); ok {
		cfg.EncryptedFields = splitTrim(v)
	}
	return nil
}
