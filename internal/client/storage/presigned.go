package storage

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
	"github.com/dmitrijs2005/scribekeeper/internal/netx"
)

// UploadURLSource hands out presigned PUT URLs. client.HTTPClient implements it.
type UploadURLSource interface {
	GetRecordingUploadURL(ctx context.Context, token, sessionID, contentType string) (url string, key string, err error)
}

type PresignedUploader struct {
	source     UploadURLSource
	token      string
	httpClient *http.Client
}

// NewPresignedUploader uploads on behalf of the bearer token. A nil
// httpClient uses http.DefaultClient.
func NewPresignedUploader(source UploadURLSource, token string, httpClient *http.Client) *PresignedUploader {
	return &PresignedUploader{source: source, token: token, httpClient: httpClient}
}

// Upload returns the object key the recording was stored under.
func (u *PresignedUploader) Upload(ctx context.Context, rec *models.Recording) (string, error) {
	url, key, err := u.source.GetRecordingUploadURL(ctx, u.token, rec.SessionID, rec.MimeType)
	if err != nil {
		return "", fmt.Errorf("get upload url: %w", err)
	}

	if err := netx.UploadToPresignedURL(ctx, u.httpClient, url, rec.Data, rec.MimeType); err != nil {
		return "", err
	}
	return key, nil
}
