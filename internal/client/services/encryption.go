package services

import (
	"bytes"
	"context"
	"crypto/cipher"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	cristalbase64 "github.com/cristalhq/base64"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/cryptox"
	"github.com/dmitrijs2005/scribekeeper/internal/jsonx"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
)

// KeyExpirySkew is subtracted from a bundle's expiry when deciding whether
// the cached bundle can still be handed out.
const KeyExpirySkew = 30 * time.Second

var errEnvelopeKeyTaken = errors.New("payload already carries an encryption envelope")

// KeySource issues encryption key bundles. client.HTTPClient implements it.
type KeySource interface {
	FetchKeyBundle(ctx context.Context, token string) (*models.KeyBundle, error)
}

// keySession is the session-scoped key material held by a gateway.
type keySession struct {
	bundle *models.KeyBundle

	aeadKeyID string
	aead      cipher.AEAD
}

// EncryptionGateway encrypts selected payload fields with a short-lived key
// bundle obtained from a KeySource.
type EncryptionGateway struct {
	source KeySource
	logger logging.Logger
	now    func() time.Time
	rand   io.Reader

	fetch singleflight.Group

	mu      sync.Mutex
	session keySession
	// epoch changes on ClearKeys so fetches started before it are not cached.
	epoch uint64
}

func NewEncryptionGateway(source KeySource, logger logging.Logger) *EncryptionGateway {
	if logger == nil {
		logger = logging.Discard()
	}
	return &EncryptionGateway{
		source: source,
		logger: logger.With("module", "encryption"),
		now:    time.Now,
	}
}

func cloneBundle(b *models.KeyBundle) *models.KeyBundle {
	c := *b
	c.Key = slices.Clone(b.Key)
	return &c
}

// GetKeyBundle returns the cached bundle while it is at least KeyExpirySkew
// away from expiry, otherwise fetches, validates and caches a new one.
// Concurrent fetches for the same token share one request.
func (g *EncryptionGateway) GetKeyBundle(ctx context.Context, token string) (*models.KeyBundle, error) {
	g.mu.Lock()
	if b := g.session.bundle; b != nil && g.now().Before(b.ExpiresAt.Add(-KeyExpirySkew)) {
		c := cloneBundle(b)
		g.mu.Unlock()
		return c, nil
	}
	epoch := g.epoch
	g.mu.Unlock()

	if g.source == nil {
		return nil, fmt.Errorf("%w: no key source configured", common.ErrInvalidKeyBundle)
	}

	v, err, _ := g.fetch.Do(token, func() (any, error) {
		b, err := g.source.FetchKeyBundle(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("fetch key bundle: %w", err)
		}
		if b != nil {
			b = cloneBundle(b)
		}
		if err := g.validate(b); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	b := v.(*models.KeyBundle)

	// b is shared by every caller of this fetch; the session keeps its own
	// copy so wiping it never touches b.
	g.mu.Lock()
	defer g.mu.Unlock()
	if epoch != g.epoch {
		return nil, fmt.Errorf("%w: key session cleared during fetch", common.ErrInvalidKeyBundle)
	}
	if old := g.session.bundle; old != nil {
		common.WipeByteArray(old.Key)
	}
	g.session.bundle = cloneBundle(b)
	return cloneBundle(b), nil
}

// validate normalizes b in place and checks that it can be used.
func (g *EncryptionGateway) validate(b *models.KeyBundle) error {
	if b == nil {
		return fmt.Errorf("%w: empty response", common.ErrInvalidKeyBundle)
	}
	if b.KeyID == "" {
		return fmt.Errorf("%w: missing key id", common.ErrInvalidKeyBundle)
	}
	if b.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: missing expiry", common.ErrInvalidKeyBundle)
	}
	if b.Expired(g.now()) {
		return fmt.Errorf("%w: key %s expired at %s", common.ErrKeyExpired, b.KeyID, b.ExpiresAt)
	}

	b.Algorithm = cryptox.NormalizeAlgorithm(b.Algorithm)
	if b.IVLength == 0 {
		b.IVLength = cryptox.NonceSize
	}
	if b.AuthTagLength == 0 {
		b.AuthTagLength = cryptox.TagSize
	}

	if _, err := cryptox.NewAEAD(b.Algorithm, b.Key, b.IVLength, b.AuthTagLength); err != nil {
		return err
	}
	return nil
}

// aeadFor returns the AEAD for bundle, reusing the cached one while the key
// id stays the same.
func (g *EncryptionGateway) aeadFor(bundle *models.KeyBundle) (cipher.AEAD, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.aead != nil && g.session.aeadKeyID == bundle.KeyID {
		return g.session.aead, nil
	}

	aead, err := cryptox.NewAEAD(bundle.Algorithm, bundle.Key, bundle.IVLength, bundle.AuthTagLength)
	if err != nil {
		return nil, err
	}
	g.session.aead = aead
	g.session.aeadKeyID = bundle.KeyID
	return aead, nil
}

func serializeField(value any, encoding models.Encoding) ([]byte, models.Encoding, error) {
	if s, ok := value.(string); ok && encoding != models.EncodingJSON {
		return []byte(s), models.EncodingUTF8, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, "", fmt.Errorf("serialize field: %w", err)
	}
	return b, models.EncodingJSON, nil
}

// EncryptField seals value with a fresh random nonce, binding it to path
// through the additional authenticated data. Strings are encrypted as UTF-8
// unless EncodingJSON is requested; anything else is JSON-encoded.
func (g *EncryptionGateway) EncryptField(bundle *models.KeyBundle, path string, value any, encoding models.Encoding) (models.EncryptedField, error) {
	if bundle == nil {
		return models.EncryptedField{}, fmt.Errorf("%w: nil bundle", common.ErrInvalidKeyBundle)
	}
	if bundle.Expired(g.now()) {
		return models.EncryptedField{}, fmt.Errorf("%w: key %s", common.ErrKeyExpired, bundle.KeyID)
	}

	plaintext, encoding, err := serializeField(value, encoding)
	if err != nil {
		return models.EncryptedField{}, err
	}

	aead, err := g.aeadFor(bundle)
	if err != nil {
		return models.EncryptedField{}, err
	}

	nonce, err := cryptox.NewNonce(g.rand, aead.NonceSize())
	if err != nil {
		return models.EncryptedField{}, err
	}

	ciphertext, tag, err := cryptox.SealDetached(aead, nonce, plaintext, []byte(path))
	if err != nil {
		return models.EncryptedField{}, err
	}

	return models.EncryptedField{
		Nonce:      cristalbase64.StdEncoding.EncodeToString(nonce),
		Ciphertext: cristalbase64.StdEncoding.EncodeToString(ciphertext),
		Tag:        cristalbase64.StdEncoding.EncodeToString(tag),
		Encoding:   encoding,
		Path:       path,
	}, nil
}

// EncryptPayload returns a copy of payload with the listed fields moved into
// a "$encrypted" envelope, and true. On any failure, or when none of the
// fields is present, it returns payload itself and false. payload is never
// modified.
func (g *EncryptionGateway) EncryptPayload(ctx context.Context, token string, payload map[string]any, fields []models.FieldSpec) (result map[string]any, encrypted bool) {
	defer func() {
		if p := recover(); p != nil {
			g.logger.Error(ctx, "field encryption panicked, sending plaintext", "panic", p)
			result, encrypted = payload, false
		}
	}()

	out, err := g.sealPayload(ctx, token, payload, fields)
	if err != nil {
		g.logger.Warn(ctx, "field encryption failed, sending plaintext", "error", err)
		return payload, false
	}
	if out == nil {
		return payload, false
	}
	return out, true
}

// sealPayload does the work of EncryptPayload. A nil map with a nil error
// means there was nothing to encrypt.
func (g *EncryptionGateway) sealPayload(ctx context.Context, token string, payload map[string]any, fields []models.FieldSpec) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}

	present := make([]models.FieldSpec, 0, len(fields))
	for _, f := range fields {
		if v, ok := jsonx.Lookup(payload, f.Path); ok && v != nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil, nil
	}
	if _, ok := payload[common.EncryptedEnvelopeKey]; ok {
		return nil, errEnvelopeKeyTaken
	}

	bundle, err := g.GetKeyBundle(ctx, token)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(bundle.Key)

	out := jsonx.CloneObject(payload)
	env := models.Envelope{
		Version: common.EnvelopeVersion,
		KeyID:   bundle.KeyID,
		Fields:  make(map[string]models.EncryptedField, len(present)),
	}

	for _, f := range present {
		if _, done := env.Fields[f.Path]; done {
			continue
		}
		v, ok := jsonx.Lookup(out, f.Path)
		if !ok || v == nil {
			continue
		}
		ef, err := g.EncryptField(bundle, f.Path, v, f.Encoding)
		if err != nil {
			return nil, fmt.Errorf("encrypt %q: %w", f.Path, err)
		}
		env.Fields[f.Path] = ef
		jsonx.Delete(out, f.Path)
	}

	out[common.EncryptedEnvelopeKey] = env.AsMap()
	return out, nil
}

// EncryptJSON is EncryptPayload over an encoded JSON object. On failure it
// returns body unchanged and false.
func (g *EncryptionGateway) EncryptJSON(ctx context.Context, token string, body []byte, fields []models.FieldSpec) ([]byte, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		g.logger.Warn(ctx, "payload is not a JSON object, sending as is", "error", err)
		return body, false
	}

	out, ok := g.EncryptPayload(ctx, token, payload, fields)
	if !ok {
		return body, false
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		g.logger.Warn(ctx, "failed to encode encrypted payload, sending plaintext", "error", err)
		return body, false
	}
	return encoded, true
}

// ClearKeys wipes the cached bundle and AEAD. Call it on logout.
func (g *EncryptionGateway) ClearKeys() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.session.bundle != nil {
		common.WipeByteArray(g.session.bundle.Key)
	}
	g.session = keySession{}
	g.epoch++
}
