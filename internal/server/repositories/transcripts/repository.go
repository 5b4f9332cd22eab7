package transcripts

import (
	"context"

	"github.com/dmitrijs2005/scribekeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, t *models.Transcript) error
	// Get returns common.ErrorNotFound unless transcript id belongs to userID.
	Get(ctx context.Context, userID, id string) (*models.Transcript, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Transcript, error)
}
