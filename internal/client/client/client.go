package client

import (
	"context"

	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
)

// Client is the backend API used by the client-side services.
type Client interface {
	// FetchKeyBundle requests a fresh encryption key bundle for the bearer token.
	FetchKeyBundle(ctx context.Context, token string) (*models.KeyBundle, error)
	// SaveTranscript posts a (possibly encrypted) transcript document and
	// returns the id assigned by the server.
	SaveTranscript(ctx context.Context, token string, body []byte) (string, error)
	// GetRecordingUploadURL returns a presigned PUT URL and the object key it
	// writes to.
	GetRecordingUploadURL(ctx context.Context, token, sessionID, contentType string) (string, string, error)
	Ping(ctx context.Context) error
}
