package utils

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Success writes a flat success body: {"success": true, ...fields}.
// The request id travels in the X-Request-ID header rather than the body
// so integration clients see exactly the documented fields.
func Success(c *gin.Context, code int, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		if k == "success" {
			continue
		}
		body[k] = v
	}
	c.Header("X-Request-ID", getRequestID(c))
	c.JSON(code, body)
}

// Error writes an error body of the form {"error": message}.
func Error(c *gin.Context, code int, message string) {
	c.Header("X-Request-ID", getRequestID(c))
	c.JSON(code, gin.H{"error": message})
}

// AbortError writes an error body and stops the middleware chain.
func AbortError(c *gin.Context, code int, message string) {
	Error(c, code, message)
	c.Abort()
}

func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return uuid.New().String()[:8]
}

// NowISO returns the current UTC time in RFC 3339 format.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
