package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	sessionIDKey = "sessionId"
	// SessionHeader carries the client's session id. Pipeline submissions and
	// rate limits are keyed on it when present.
	SessionHeader = "X-Session-Id"
)

// Session stores the caller's session id, if any, in the gin context.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(SessionHeader)); id != "" && len(id) <= 128 {
			c.Set(sessionIDKey, id)
		}
		c.Next()
	}
}

// SessionIDFromContext returns the id stored by Session, or "".
func SessionIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(sessionIDKey)
}

// clientKey identifies the caller for rate limiting: session id, else client IP.
func clientKey(c *gin.Context) string {
	if id := SessionIDFromContext(c); id != "" {
		return "session:" + id
	}
	return "ip:" + strings.TrimSpace(c.ClientIP())
}
