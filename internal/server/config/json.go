package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/scribekeeper/internal/flagx"
	"github.com/dmitrijs2005/scribekeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// Only fields present in the file override the current value.
type JsonConfig struct {
	EndpointAddr                *string         `json:"endpoint_addr"`
	DatabaseDSN                 *string         `json:"database_dsn"`
	SecretKey                   *string         `json:"secret_key"`
	AccessTokenValidityDuration *timex.Duration `json:"access_token_validity_duration"`
	KeyValidityDuration         *timex.Duration `json:"key_validity_duration"`
	KeyGracePeriod              *timex.Duration `json:"key_grace_period"`
	KeyAlgorithm                *string         `json:"key_algorithm"`
	S3RootUser                  *string         `json:"s3_root_user"`
	S3RootPassword              *string         `json:"s3_root_password"`
	S3Bucket                    *string         `json:"s3_bucket"`
	S3Region                    *string         `json:"s3_region"`
	S3BaseEndpoint              *string         `json:"s3_base_endpoint"`
	UploadURLValidity           *timex.Duration `json:"upload_url_validity"`
}

// parseJSON overlays config with the JSON file named by -c / -config in
// args (or $SCRIBE_SERVER_CONFIG). No file means nothing to do.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	str := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	str(&config.EndpointAddr, c.EndpointAddr)
	str(&config.DatabaseDSN, c.DatabaseDSN)
	str(&config.SecretKey, c.SecretKey)
	str(&config.KeyAlgorithm, c.KeyAlgorithm)
	str(&config.S3RootUser, c.S3RootUser)
	str(&config.S3RootPassword, c.S3RootPassword)
	str(&config.S3Bucket, c.S3Bucket)
	str(&config.S3Region, c.S3Region)
	str(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.KeyValidityDuration != nil {
		config.KeyValidityDuration = c.KeyValidityDuration.Duration
	}
	if c.KeyGracePeriod != nil {
		config.KeyGracePeriod = c.KeyGracePeriod.Duration
	}
	if c.UploadURLValidity != nil {
		config.UploadURLValidity = c.UploadURLValidity.Duration
	}
}
