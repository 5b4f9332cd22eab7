package models

// EncryptedField is one sealed field as sent by clients.
type EncryptedField struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	Tag        string `json:"tag"`
	Encoding   string `json:"encoding"`
	Path       string `json:"path"`
}

// Envelope is the value under the "$encrypted" key of a document.
type Envelope struct {
	Version int                       `json:"version"`
	KeyID   string                    `json:"keyId"`
	Fields  map[string]EncryptedField `json:"fields"`
}
