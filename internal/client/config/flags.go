package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Overrides collects command-line values that take precedence over every
// other source. Only flags the user actually set are applied.
type Overrides struct {
	fs *pflag.FlagSet

	serverAddr      string
	dataDir         string
	store           string
	uploader        string
	autoPersist     time.Duration
	requestTimeout  time.Duration
	encryptedFields []string
}

// BindFlags registers the config flags on fs.
//
//	-a, --server     address of the backend server
//	-d, --data-dir   local data directory
//	    --store      backup store backend (sqlite, badger, memory)
//	    --uploader   handoff uploader (presigned, s3)
//	    --autopersist, --timeout, --encrypt
func BindFlags(fs *pflag.FlagSet) *Overrides {
	o := &Overrides{fs: fs}
	fs.StringVarP(&o.serverAddr, "server", "a", "", "address and port of the backend server")
	fs.StringVarP(&o.dataDir, "data-dir", "d", "", "local data directory")
	fs.StringVar(&o.store, "store", "", "backup store backend: sqlite, badger or memory")
	fs.StringVar(&o.uploader, "uploader", "", "handoff uploader: presigned or s3")
	fs.DurationVar(&o.autoPersist, "autopersist", 0, "auto-persist interval")
	fs.DurationVar(&o.requestTimeout, "timeout", 0, "backend request timeout")
	fs.StringSliceVar(&o.encryptedFields, "encrypt", nil, "transcript fields to encrypt (path[:utf8|json])")
	return o
}

// Apply copies the flags that were set onto cfg and re-validates it.
func (o *Overrides) Apply(cfg *Config) error {
	changed := func(name string) bool {
		f := o.fs.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("server") {
		cfg.ServerEndpointAddr = o.serverAddr
	}
	if changed("data-dir") {
		cfg.DataDir = o.dataDir
	}
	if changed("store") {
		cfg.StoreBackend = o.store
	}
	if changed("uploader") {
		cfg.Uploader = o.uploader
	}
	if changed("autopersist") {
		cfg.AutoPersistInterval = o.autoPersist
	}
	if changed("timeout") {
		cfg.RequestTimeout = o.requestTimeout
	}
	if changed("encrypt") {
		cfg.EncryptedFields = o.encryptedFields
	}
	return cfg.Validate()
}
