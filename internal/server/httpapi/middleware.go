package httpapi

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/scribekeeper/internal/common"
	"github.com/dmitrijs2005/scribekeeper/internal/logging"
	"github.com/dmitrijs2005/scribekeeper/internal/server/auth"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "user_id"

// JWT validates the bearer token and stores its user id under ContextUserID.
func JWT(secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		if header == "" {
			unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		token, ok := strings.CutPrefix(header, common.BearerPrefix)
		if !ok || strings.TrimSpace(token) == "" {
			unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		userID, err := auth.GetUserIDFromToken(strings.TrimSpace(token), secretKey)
		if err != nil {
			unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// Logger logs one line per request.
func Logger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info(c.Request.Context(), "request",
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"method", method,
			"path", path,
			"client_ip", c.ClientIP(),
			"user", userID(c),
		)
	}
}
