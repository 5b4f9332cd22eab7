package models

import "time"

// Transcript is a saved document. Document is always plaintext; Encrypted
// records whether it arrived with sealed fields.
type Transcript struct {
	ID        string
	UserID    string
	Document  map[string]any
	Encrypted bool
	CreatedAt time.Time
}

// UploadURL is a presigned PUT target for one recording.
type UploadURL struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}
