package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func adminIDFromContext(c *gin.Context) *string {
	if val, ok := c.Get("adminID"); ok {
		if id, ok := val.(string); ok && id != "" {
			return &id
		}
	}

	if header := c.GetHeader("X-Admin-ID"); header != "" {
		return &header
	}

	return nil
}
