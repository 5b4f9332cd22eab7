package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
	"github.com/dmitrijs2005/scribekeeper/internal/server/envelope"
	"github.com/dmitrijs2005/scribekeeper/internal/server/keys"
	"github.com/dmitrijs2005/scribekeeper/internal/server/models"
	"github.com/dmitrijs2005/scribekeeper/internal/server/repositories/repomanager"
)

// TranscriptService stores transcript documents, opening any sealed fields
// with the owner's keys first.
type TranscriptService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	keyring     *keys.Keyring
	logger      logging.Logger
	now         func() time.Time
}

func NewTranscriptService(db *sql.DB, repomanager repomanager.RepositoryManager, keyring *keys.Keyring, logger logging.Logger) *TranscriptService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TranscriptService{
		db:          db,
		repomanager: repomanager,
		keyring:     keyring,
		logger:      logger.With("module", "transcripts"),
		now:         time.Now,
	}
}

// Save opens doc and stores it for userID. It fails with
// common.ErrUnknownKey, common.ErrKeyExpired or common.ErrMalformedEnvelope
// when the envelope cannot be opened.
func (s *TranscriptService) Save(ctx context.Context, userID string, doc map[string]any) (*models.Transcript, error) {
	if userID == "" {
		return nil, common.ErrorUnauthorized
	}

	opened, encrypted, err := envelope.Open(doc, func(keyID string) (*models.Key, error) {
		return s.keyring.Lookup(userID, keyID)
	})
	if err != nil {
		s.logger.Warn(ctx, "transcript rejected", "user", userID, "error", err)
		return nil, err
	}

	t := &models.Transcript{
		ID:        uuid.NewString(),
		UserID:    userID,
		Document:  opened,
		Encrypted: encrypted,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repomanager.Transcripts(s.db).Create(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "transcript saved", "user", userID, "id", t.ID, "encrypted", encrypted)
	return t, nil
}

func (s *TranscriptService) Get(ctx context.Context, userID, id string) (*models.Transcript, error) {
	if userID == "" {
		return nil, common.ErrorUnauthorized
	}
	return s.repomanager.Transcripts(s.db).Get(ctx, userID, id)
}

// List returns userID's transcripts, oldest first.
func (s *TranscriptService) List(ctx context.Context, userID string) ([]*models.Transcript, error) {
	if userID == "" {
		return nil, common.ErrorUnauthorized
	}
	return s.repomanager.Transcripts(s.db).ListByUser(ctx, userID)
}
