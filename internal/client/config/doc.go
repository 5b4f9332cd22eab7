// Package config loads runtime configuration for the ScribeKeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment: SCRIBE_* variables, with a .env file loaded via godotenv.
//  3. Optional config file passed as --config: .toml (go-toml) or JSON.
//  4. Command-line flags (see BindFlags / Overrides), which override all
//     earlier values.
//
// Environment
//
//	SCRIBE_SERVER_ADDR, SCRIBE_DATA_DIR, SCRIBE_STORE, SCRIBE_UPLOADER,
//	SCRIBE_AUTOPERSIST_INTERVAL, SCRIBE_REQUEST_TIMEOUT, SCRIBE_BACKUP_MAX_AGE,
//	SCRIBE_ENCRYPTED_FIELDS (comma separated), SCRIBE_S3_BUCKET,
//	SCRIBE_S3_REGION, SCRIBE_S3_ENDPOINT, SCRIBE_S3_ACCESS_KEY,
//	SCRIBE_S3_SECRET_KEY
//
// # File schema
//
// Durations use timex.Duration, so they can be strings like "10s":
//
//	server_endpoint_addr = "127.0.0.1:8080"
//	store_backend = "badger"
//	auto_persist_interval = "5s"
//	encrypted_fields = ["transcript", "notes", "chat:json"]
//
//	[s3]
//	bucket = "recordings"
//	base_endpoint = "http://127.0.0.1:9000"
package config
