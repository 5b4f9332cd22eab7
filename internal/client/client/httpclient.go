package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	cristalbase64 "github.com/cristalhq/base64"

	"github.com/dmitrijs2005/scribekeeper/internal/client/models"
	"github.com/dmitrijs2005/scribekeeper/internal/common"
)

const (
	pingPath        = "/api/v1/ping"
	keyPath         = "/api/v1/encryption/key"
	transcriptsPath = "/api/v1/transcripts"
	uploadURLPath   = "/api/v1/recordings/upload-url"

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 1 << 20
)

type HTTPClient struct {
	endpointURL string
	httpClient  *http.Client
}

// NewHTTPClient creates a client for the backend at endpointURL
// (e.g. "http://localhost:8080"). A zero timeout means no per-request limit.
func NewHTTPClient(endpointURL string, timeout time.Duration) *HTTPClient {
	endpointURL = strings.TrimRight(endpointURL, "/")
	if !strings.Contains(endpointURL, "://") {
		endpointURL = "http://" + endpointURL
	}
	return &HTTPClient{
		endpointURL: endpointURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// NewHTTPClientWith uses the supplied *http.Client, e.g. one from httptest.
func NewHTTPClientWith(endpointURL string, hc *http.Client) *HTTPClient {
	c := NewHTTPClient(endpointURL, 0)
	c.httpClient = hc
	return c
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path, token string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpointURL+path, r)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON body into out (when non-nil).
func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, ctxErr)
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	if err := c.mapStatus(resp.StatusCode, data); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return nil
}

func (c *HTTPClient) mapStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return common.ErrorNotFound
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	default:
		return fmt.Errorf("unexpected status %d: %s", code, strings.TrimSpace(string(body)))
	}
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, pingPath, "", nil)
	if err != nil {
		return err
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := c.do(req, &resp); err != nil {
		return err
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) FetchKeyBundle(ctx context.Context, token string) (*models.KeyBundle, error) {
	req, err := c.newRequest(ctx, http.MethodGet, keyPath, token, nil)
	if err != nil {
		return nil, err
	}

	var dto models.KeyBundleDTO
	if err := c.do(req, &dto); err != nil {
		return nil, err
	}

	key, err := cristalbase64.StdEncoding.DecodeString(dto.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not base64: %w", ErrInvalidResponse, err)
	}

	return &models.KeyBundle{
		Algorithm:     dto.Algorithm,
		Key:           key,
		KeyID:         dto.KeyID,
		IVLength:      dto.IVLength,
		AuthTagLength: dto.AuthTagLength,
		ExpiresAt:     dto.ExpiresAt,
	}, nil
}

func (c *HTTPClient) SaveTranscript(ctx context.Context, token string, body []byte) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, transcriptsPath, token, body)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.Join(ErrInvalidResponse, errors.New("missing transcript id"))
	}
	return resp.ID, nil
}

func (c *HTTPClient) GetRecordingUploadURL(ctx context.Context, token, sessionID, contentType string) (string, string, error) {
	body, err := json.Marshal(map[string]string{"sessionId": sessionID, "contentType": contentType})
	if err != nil {
		return "", "", err
	}
	req, err := c.newRequest(ctx, http.MethodPost, uploadURLPath, token, body)
	if err != nil {
		return "", "", err
	}

	var resp struct {
		URL string `json:"url"`
		Key string `json:"key"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", "", err
	}
	if resp.URL == "" {
		return "", "", errors.Join(ErrInvalidResponse, errors.New("missing upload url"))
	}
	return resp.URL, resp.Key, nil
}
