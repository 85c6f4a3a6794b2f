package middleware

import (
	"github.com/gin-gonic/gin"

	"bookstore-settlement/internal/shared"
	"bookstore-settlement/internal/shared/utils"
)

// ClientIPMiddleware resolves the caller's address once per request. The
// payment service records it on webhook logs and passes it to the gateway.
func ClientIPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(shared.ContextKeyClientIP, utils.ExtractClientIP(c))
		c.Next()
	}
}

// GetClientIP returns the address set by ClientIPMiddleware, falling back
// to gin's own resolution.
func GetClientIP(c *gin.Context) string {
	if ip := c.GetString(shared.ContextKeyClientIP); ip != "" {
		return ip
	}
	return c.ClientIP()
}
