// Package httpapi exposes the server services over a gin JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
	"github.com/dmitrijs2005/scribekeeper/internal/server/models"
)

// MaxDocumentSize bounds the body of a transcript upload.
const MaxDocumentSize = 8 << 20

type KeyIssuer interface {
	IssueKey(ctx context.Context, userID string) (*models.KeyBundleDTO, error)
}

type TranscriptStore interface {
	Save(ctx context.Context, userID string, doc map[string]any) (*models.Transcript, error)
	Get(ctx context.Context, userID, id string) (*models.Transcript, error)
	List(ctx context.Context, userID string) ([]*models.Transcript, error)
}

type RecordingPresigner interface {
	GetUploadURL(ctx context.Context, userID, sessionID, contentType string) (*models.UploadURL, error)
	GetDownloadURL(ctx context.Context, userID, key string) (string, error)
}

type Handler struct {
	keys        KeyIssuer
	transcripts TranscriptStore
	recordings  RecordingPresigner
	logger      logging.Logger
}

func NewHandler(keys KeyIssuer, transcripts TranscriptStore, recordings RecordingPresigner, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{keys: keys, transcripts: transcripts, recordings: recordings, logger: logger}
}

type transcriptResponse struct {
	ID        string         `json:"id"`
	Document  map[string]any `json:"document"`
	Encrypted bool           `json:"encrypted"`
	CreatedAt time.Time      `json:"createdAt"`
}

func toTranscriptResponse(t *models.Transcript) transcriptResponse {
	return transcriptResponse{ID: t.ID, Document: t.Document, Encrypted: t.Encrypted, CreatedAt: t.CreatedAt}
}

// Ping handles GET /api/v1/ping.
func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// IssueKey handles GET /api/v1/encryption/key.
func (h *Handler) IssueKey(c *gin.Context) {
	bundle, err := h.keys.IssueKey(c.Request.Context(), userID(c))
	if err != nil {
		h.logger.Error(c.Request.Context(), "issue key failed", "error", err)
		serverError(c, "failed to issue key")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, bundle)
}

// SaveTranscript handles POST /api/v1/transcripts.
func (h *Handler) SaveTranscript(c *gin.Context) {
	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, MaxDocumentSize))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil || doc == nil {
		badRequest(c, "body must be a JSON object")
		return
	}

	t, err := h.transcripts.Save(c.Request.Context(), userID(c), doc)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"id": t.ID})
	case errors.Is(err, common.ErrMalformedEnvelope):
		badRequest(c, err.Error())
	case errors.Is(err, common.ErrUnknownKey), errors.Is(err, common.ErrKeyExpired):
		unprocessable(c, err.Error())
	default:
		h.logger.Error(c.Request.Context(), "save transcript failed", "error", err)
		serverError(c, "failed to save transcript")
	}
}

// ListTranscripts handles GET /api/v1/transcripts.
func (h *Handler) ListTranscripts(c *gin.Context) {
	list, err := h.transcripts.List(c.Request.Context(), userID(c))
	if err != nil {
		h.logger.Error(c.Request.Context(), "list transcripts failed", "error", err)
		serverError(c, "failed to list transcripts")
		return
	}
	out := make([]transcriptResponse, 0, len(list))
	for _, t := range list {
		out = append(out, toTranscriptResponse(t))
	}
	c.JSON(http.StatusOK, gin.H{"transcripts": out})
}

// GetTranscript handles GET /api/v1/transcripts/:id.
func (h *Handler) GetTranscript(c *gin.Context) {
	t, err := h.transcripts.Get(c.Request.Context(), userID(c), c.Param("id"))
	if errors.Is(err, common.ErrorNotFound) {
		notFound(c, "transcript not found")
		return
	}
	if err != nil {
		h.logger.Error(c.Request.Context(), "get transcript failed", "error", err)
		serverError(c, "failed to load transcript")
		return
	}
	c.JSON(http.StatusOK, toTranscriptResponse(t))
}

type uploadURLRequest struct {
	SessionID   string `json:"sessionId"`
	ContentType string `json:"contentType"`
}

// RecordingUploadURL handles POST /api/v1/recordings/upload-url.
func (h *Handler) RecordingUploadURL(c *gin.Context) {
	var req uploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	u, err := h.recordings.GetUploadURL(c.Request.Context(), userID(c), req.SessionID, req.ContentType)
	if err != nil {
		h.logger.Error(c.Request.Context(), "presign upload failed", "error", err)
		serverError(c, "failed to generate upload URL")
		return
	}
	c.JSON(http.StatusOK, u)
}

// RecordingDownloadURL handles GET /api/v1/recordings/download-url?key=.
func (h *Handler) RecordingDownloadURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		badRequest(c, "key is required")
		return
	}
	url, err := h.recordings.GetDownloadURL(c.Request.Context(), userID(c), key)
	if errors.Is(err, common.ErrorNotFound) {
		notFound(c, "recording not found")
		return
	}
	if err != nil {
		h.logger.Error(c.Request.Context(), "presign download failed", "error", err)
		serverError(c, "failed to generate download URL")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
