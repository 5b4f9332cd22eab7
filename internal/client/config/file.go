package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/dmitrijs2005/scribekeeper/internal/timex"
)

// FileConfig is a DTO used exclusively for config file decoding. It relies
// on timex.Duration so durations can be written as "10s" (or as integer
// nanoseconds in JSON). Zero values leave the current setting untouched.
type FileConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr" toml:"server_endpoint_addr"`
	DataDir             string         `json:"data_dir" toml:"data_dir"`
	StoreBackend        string         `json:"store_backend" toml:"store_backend"`
	AutoPersistInterval timex.Duration `json:"auto_persist_interval" toml:"auto_persist_interval"`
	RequestTimeout      timex.Duration `json:"request_timeout" toml:"request_timeout"`
	BackupMaxAge        timex.Duration `json:"backup_max_age" toml:"backup_max_age"`
	EncryptedFields     []string       `json:"encrypted_fields" toml:"encrypted_fields"`
	Uploader            string         `json:"uploader" toml:"uploader"`

	S3 struct {
		Bucket       string `json:"bucket" toml:"bucket"`
		Region       string `json:"region" toml:"region"`
		BaseEndpoint string `json:"base_endpoint" toml:"base_endpoint"`
		AccessKey    string `json:"access_key" toml:"access_key"`
		SecretKey    string `json:"secret_key" toml:"secret_key"`
	} `json:"s3" toml:"s3"`
}

// parseFile overlays cfg with the file at path, decoded by extension:
// .toml with go-toml, anything else as JSON.
func parseFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc FileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.ServerEndpointAddr, fc.ServerEndpointAddr)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.StoreBackend, fc.StoreBackend)
	setString(&cfg.Uploader, fc.Uploader)
	setDuration(&cfg.AutoPersistInterval, fc.AutoPersistInterval)
	setDuration(&cfg.RequestTimeout, fc.RequestTimeout)
	setDuration(&cfg.BackupMaxAge, fc.BackupMaxAge)
	if fc.EncryptedFields != nil {
		cfg.EncryptedFields = fc.EncryptedFields
	}

	setString(&cfg.S3Bucket, fc.S3.Bucket)
	setString(&cfg.S3Region, fc.S3.Region)
	setString(&cfg.S3BaseEndpoint, fc.S3.BaseEndpoint)
	setString(&cfg.S3AccessKey, fc.S3.AccessKey)
	setString(&cfg.S3SecretKey, fc.S3.SecretKey)
}
