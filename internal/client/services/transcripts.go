package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
)

// DefaultEncryptedFields are the transcript fields encrypted before upload
// when nothing else is configured.
var DefaultEncryptedFields = []string{"transcript", "notes", "chat"}

// TranscriptSaver posts transcript documents. client.HTTPClient implements it.
type TranscriptSaver interface {
	SaveTranscript(ctx context.Context, token string, body []byte) (string, error)
}

// SaveResult reports where a transcript went and whether it left encrypted.
type SaveResult struct {
	ID        string
	Encrypted bool
}

// TranscriptService saves transcripts, encrypting the configured fields on
// the way out. Encryption is best-effort: when it fails the document is
// sent as plaintext.
type TranscriptService struct {
	api     TranscriptSaver
	gateway *EncryptionGateway
	fields  []models.FieldSpec
	logger  logging.Logger
}

func NewTranscriptService(api TranscriptSaver, gateway *EncryptionGateway, fields []models.FieldSpec, logger logging.Logger) *TranscriptService {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TranscriptService{
		api:     api,
		gateway: gateway,
		fields:  fields,
		logger:  logger.With("module", "transcripts"),
	}
}

// Save encrypts and posts payload.
func (s *TranscriptService) Save(ctx context.Context, token string, payload map[string]any) (SaveResult, error) {
	out, encrypted := payload, false
	if s.gateway != nil {
		out, encrypted = s.gateway.EncryptPayload(ctx, token, payload, s.fields)
	}

	body, err := json.Marshal(out)
	if err != nil {
		return SaveResult{}, fmt.Errorf("encode transcript: %w", err)
	}
	return s.post(ctx, token, body, encrypted)
}

// SaveJSON is Save for an already encoded JSON object.
func (s *TranscriptService) SaveJSON(ctx context.Context, token string, body []byte) (SaveResult, error) {
	out, encrypted := body, false
	if s.gateway != nil {
		out, encrypted = s.gateway.EncryptJSON(ctx, token, body, s.fields)
	}
	return s.post(ctx, token, out, encrypted)
}

func (s *TranscriptService) post(ctx context.Context, token string, body []byte, encrypted bool) (SaveResult, error) {
	id, err := s.api.SaveTranscript(ctx, token, body)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save transcript: %w", err)
	}
	if !encrypted {
		s.logger.Warn(ctx, "transcript saved without field encryption", "id", id)
	} else {
		s.logger.Info(ctx, "transcript saved", "id", id)
	}
	return SaveResult{ID: id, Encrypted: encrypted}, nil
}
