package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/scribekeeper/internal/logging"
)

// NewRouter mounts the API under /api/v1. Everything except ping requires a
// bearer token signed with secretKey.
func NewRouter(h *Handler, secretKey []byte, logger logging.Logger) *gin.Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger(logger))

	api := r.Group("/api/v1")
	api.GET("/ping", h.Ping)

	authed := api.Group("")
	authed.Use(JWT(secretKey))
	authed.GET("/encryption/key", h.IssueKey)
	authed.POST("/transcripts", h.SaveTranscript)
	authed.GET("/transcripts", h.ListTranscripts)
	authed.GET("/transcripts/:id", h.GetTranscript)
	authed.POST("/recordings/upload-url", h.RecordingUploadURL)
	authed.GET("/recordings/download-url", h.RecordingDownloadURL)

	return r
}
