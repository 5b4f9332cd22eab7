// Package keys issues the short-lived symmetric keys clients use for
// field-level encryption and keeps them around long enough to open the
// documents sealed with them.
package keys

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/cryptox"
	"github.com/dmitrijs2005/scribekeeper/internal/server/models"
)

// Keyring is an in-memory, per-user key store. Keys are valid for ttl after
// issue and can still be looked up for grace after that.
type Keyring struct {
	algorithm string
	ttl       time.Duration
	grace     time.Duration
	now       func() time.Time
	newKey    func() []byte

	mu   sync.Mutex
	keys map[string]*models.Key
}

// NewKeyring validates algorithm and returns an empty keyring.
func NewKeyring(algorithm string, ttl, grace time.Duration) (*Keyring, error) {
	algorithm = cryptox.NormalizeAlgorithm(algorithm)
	if _, err := cryptox.NewAEAD(algorithm, make([]byte, cryptox.KeySize), cryptox.NonceSize, cryptox.TagSize); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("key ttl must be positive, got %s", ttl)
	}
	return &Keyring{
		algorithm: algorithm,
		ttl:       ttl,
		grace:     grace,
		now:       time.Now,
		newKey:    cryptox.GenerateKey,
		keys:      make(map[string]*models.Key),
	}, nil
}

func copyKey(k *models.Key) *models.Key {
	c := *k
	c.Material = append([]byte(nil), k.Material...)
	return &c
}

// Issue creates a fresh key for userID. Keys past their grace period are
// dropped on the way.
func (r *Keyring) Issue(userID string) (*models.Key, error) {
	if userID == "" {
		return nil, common.ErrorUnauthorized
	}
	now := r.now()

	k := &models.Key{
		ID:            uuid.NewString(),
		UserID:        userID,
		Algorithm:     r.algorithm,
		Material:      r.newKey(),
		IVLength:      cryptox.NonceSize,
		AuthTagLength: cryptox.TagSize,
		IssuedAt:      now,
		ExpiresAt:     now.Add(r.ttl),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)
	r.keys[k.ID] = k
	return copyKey(k), nil
}

// Lookup returns key keyID if it belongs to userID and is not past its
// grace period.
func (r *Keyring) Lookup(userID, keyID string) (*models.Key, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[keyID]
	if !ok || k.UserID != userID {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownKey, keyID)
	}
	if !r.now().Before(k.ExpiresAt.Add(r.grace)) {
		common.WipeByteArray(k.Material)
		delete(r.keys, keyID)
		return nil, fmt.Errorf("%w: %s", common.ErrKeyExpired, keyID)
	}
	return copyKey(k), nil
}

// Prune drops keys past their grace period and returns how many went.
func (r *Keyring) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pruneLocked(r.now())
}

func (r *Keyring) pruneLocked(now time.Time) int {
	n := 0
	for id, k := range r.keys {
		if !now.Before(k.ExpiresAt.Add(r.grace)) {
			common.WipeByteArray(k.Material)
			delete(r.keys, id)
			n++
		}
	}
	return n
}

// Len reports the number of retained keys.
func (r *Keyring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}
