package models

import (
	"fmt"
	"strings"
	"time"
)

// KeyBundle is a short-lived symmetric key issued by the backend.
type KeyBundle struct {
	Algorithm     string
	Key           []byte
	KeyID         string
	IVLength      int
	AuthTagLength int
	ExpiresAt     time.Time
}

// Expired reports whether the bundle must no longer be used at now.
func (b *KeyBundle) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}

// KeyBundleDTO is the JSON shape of the key-issuance response.
// Key is standard base64.
type KeyBundleDTO struct {
	Algorithm     string    `json:"algorithm"`
	Key           string    `json:"key"`
	KeyID         string    `json:"keyId"`
	IVLength      int       `json:"ivLength"`
	AuthTagLength int       `json:"authTagLength"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Encoding says how a field value was serialized before encryption.
type Encoding string

const (
	EncodingUTF8 Encoding = "utf8"
	EncodingJSON Encoding = "json"
)

// FieldSpec names a payload field to encrypt.
type FieldSpec struct {
	Path     string
	Encoding Encoding
}

// ParseFieldSpec parses "path" or "path:encoding".
func ParseFieldSpec(s string) (FieldSpec, error) {
	path, enc, _ := strings.Cut(strings.TrimSpace(s), ":")
	if path == "" {
		return FieldSpec{}, fmt.Errorf("empty field path in %q", s)
	}
	switch Encoding(enc) {
	case "":
		return FieldSpec{Path: path}, nil
	case EncodingUTF8, EncodingJSON:
		return FieldSpec{Path: path, Encoding: Encoding(enc)}, nil
	default:
		return FieldSpec{}, fmt.Errorf("unknown encoding %q in %q", enc, s)
	}
}

// ParseFieldSpecs parses a list of field spec strings.
func ParseFieldSpecs(specs []string) ([]FieldSpec, error) {
	out := make([]FieldSpec, 0, len(specs))
	for _, s := range specs {
		fs, err := ParseFieldSpec(s)
		if err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, nil
}

// EncryptedField is one encrypted payload field on the wire.
// Nonce, Ciphertext and Tag are standard base64.
type EncryptedField struct {
	Nonce      string   `json:"nonce"`
	Ciphertext string   `json:"ciphertext"`
	Tag        string   `json:"tag"`
	Encoding   Encoding `json:"encoding"`
	Path       string   `json:"path"`
}

// Envelope is the value stored under the "$encrypted" payload key.
type Envelope struct {
	Version int                       `json:"version"`
	KeyID   string                    `json:"keyId"`
	Fields  map[string]EncryptedField `json:"fields"`
}

// AsMap renders the envelope as a decoded-JSON tree so it can be merged into
// a map[string]any payload.
func (e *Envelope) AsMap() map[string]any {
	fields := make(map[string]any, len(e.Fields))
	for path, f := range e.Fields {
		fields[path] = map[string]any{
			"nonce":      f.Nonce,
			"ciphertext": f.Ciphertext,
			"tag":        f.Tag,
			"encoding":   string(f.Encoding),
			"path":       f.Path,
		}
	}
	return map[string]any{
		"version": e.Version,
		"keyId":   e.KeyID,
		"fields":  fields,
	}
}
