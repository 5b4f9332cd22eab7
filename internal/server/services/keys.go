package services

import (
	"context"

	cristalbase64 "github.com/cristalhq/base64"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
	"github.com/dmitrijs2005/scribekeeper/internal/server/keys"
	"github.com/dmitrijs2005/scribekeeper/internal/server/models"
)

type KeyService struct {
	keyring *keys.Keyring
	logger  logging.Logger
}

func NewKeyService(keyring *keys.Keyring, logger logging.Logger) *KeyService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &KeyService{keyring: keyring, logger: logger.With("module", "keys")}
}

// IssueKey hands userID a fresh key bundle. Every call issues a new key.
func (s *KeyService) IssueKey(ctx context.Context, userID string) (*models.KeyBundleDTO, error) {
	key, err := s.keyring.Issue(userID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key.Material)

	s.logger.Debug(ctx, "key issued", "user", userID, "key_id", key.ID, "expires_at", key.ExpiresAt)

	return &models.KeyBundleDTO{
		Algorithm:     key.Algorithm,
		Key:           cristalbase64.StdEncoding.EncodeToString(key.Material),
		KeyID:         key.ID,
		IVLength:      key.IVLength,
		AuthTagLength: key.AuthTagLength,
		ExpiresAt:     key.ExpiresAt,
	}, nil
}
