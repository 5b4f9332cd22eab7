package models

import "time"

// Key is an issued symmetric encryption key.
type Key struct {
	ID            string
	UserID        string
	Algorithm     string
	Material      []byte
	IVLength      int
	AuthTagLength int
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// KeyBundleDTO is the JSON response of the key-issuance endpoint.
// Key is standard base64.
type KeyBundleDTO struct {
	Algorithm     string    `json:"algorithm"`
	Key           string    `json:"key"`
	KeyID         string    `json:"keyId"`
	IVLength      int       `json:"ivLength"`
	AuthTagLength int       `json:"authTagLength"`
	ExpiresAt     time.Time `json:"expiresAt"`
}
