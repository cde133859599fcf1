package middleware

import (
	"github.com/gin-gonic/gin"

	"greenmart/api/internal/ids"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates the caller's request id or assigns a fresh one, and
// reflects it on the response so log lines can be correlated.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = ids.New()
		}

		c.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)

		c.Next()
	}
}
