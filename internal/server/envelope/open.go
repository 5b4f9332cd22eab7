// Package envelope opens documents whose sensitive fields were sealed
// client-side into a "$encrypted" envelope.
package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	cristalbase64 "github.com/cristalhq/base64"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/cryptox"
	"github.com/dmitrijs2005/scribekeeper/internal/jsonx"
	"github.com/dmitrijs2005/scribekeeper/internal/server/models"
)

// KeyLookup resolves an envelope key id for the document owner.
type KeyLookup func(keyID string) (*models.Key, error)

// Open returns a copy of doc with the envelope removed and every sealed
// field restored at its path, and true. A document without an envelope is
// returned unchanged with false. doc itself is never modified.
func Open(doc map[string]any, lookup KeyLookup) (map[string]any, bool, error) {
	raw, ok := doc[common.EncryptedEnvelopeKey]
	if !ok {
		return doc, false, nil
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, false, err
	}

	key, err := lookup(env.KeyID)
	if err != nil {
		return nil, false, err
	}
	defer common.WipeByteArray(key.Material)

	aead, err := cryptox.NewAEAD(key.Algorithm, key.Material, key.IVLength, key.AuthTagLength)
	if err != nil {
		return nil, false, err
	}

	out := jsonx.CloneObject(doc)
	delete(out, common.EncryptedEnvelopeKey)

	paths := make([]string, 0, len(env.Fields))
	for p := range env.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		f := env.Fields[path]
		if f.Path != "" && f.Path != path {
			return nil, false, fmt.Errorf("%w: field %q claims path %q", common.ErrMalformedEnvelope, path, f.Path)
		}

		nonce, err1 := cristalbase64.StdEncoding.DecodeString(f.Nonce)
		ciphertext, err2 := cristalbase64.StdEncoding.DecodeString(f.Ciphertext)
		tag, err3 := cristalbase64.StdEncoding.DecodeString(f.Tag)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, false, fmt.Errorf("%w: field %q is not base64", common.ErrMalformedEnvelope, path)
		}

		plaintext, err := cryptox.OpenDetached(aead, nonce, ciphertext, tag, []byte(path))
		if err != nil {
			return nil, false, fmt.Errorf("%w: field %q: %v", common.ErrMalformedEnvelope, path, err)
		}

		v, err := decodeValue(plaintext, f.Encoding)
		if err != nil {
			return nil, false, fmt.Errorf("%w: field %q: %v", common.ErrMalformedEnvelope, path, err)
		}
		if err := jsonx.Set(out, path, v); err != nil {
			return nil, false, fmt.Errorf("%w: field %q: %v", common.ErrMalformedEnvelope, path, err)
		}
	}

	return out, true, nil
}

func decodeEnvelope(raw any) (*models.Envelope, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedEnvelope, err)
	}
	var env models.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedEnvelope, err)
	}
	if env.Version != common.EnvelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", common.ErrMalformedEnvelope, env.Version)
	}
	if env.KeyID == "" {
		return nil, fmt.Errorf("%w: missing key id", common.ErrMalformedEnvelope)
	}
	return &env, nil
}

func decodeValue(plaintext []byte, encoding string) (any, error) {
	switch encoding {
	case "utf8", "":
		return string(plaintext), nil
	case "json":
		dec := json.NewDecoder(bytes.NewReader(plaintext))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", encoding)
	}
}
