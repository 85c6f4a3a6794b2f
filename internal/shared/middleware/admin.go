package middleware

import (
	"github.com/gin-gonic/gin"

	"bookstore-settlement/internal/shared"
	"bookstore-settlement/internal/shared/response"
	"bookstore-settlement/pkg/jwt"
)

// AdminMiddleware checks if user has admin role. Must run after
// AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(shared.ContextKeyRole) != jwt.RoleAdmin {
			response.Forbidden(c, "Access denied: admin role required")
			return
		}
		c.Next()
	}
}
