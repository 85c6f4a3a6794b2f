package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bookstore-settlement/internal/shared"
	"bookstore-settlement/internal/shared/response"
	"bookstore-settlement/pkg/jwt"
	"bookstore-settlement/pkg/logger"
)

// AuthMiddleware verifies the Bearer access token and puts the caller's id
// and role on the gin context.
func AuthMiddleware(jm *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			response.Unauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := jm.ValidateAccessToken(token)
		if err != nil {
			logger.Debug("Rejected access token: " + err.Error())
			response.Unauthorized(c, "invalid token")
			return
		}

		userID, err := uuid.Parse(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "invalid user ID in token")
			return
		}

		c.Set(shared.ContextKeyUserID, userID)
		c.Set(shared.ContextKeyRole, claims.Role)
		c.Next()
	}
}

// GetUserID returns the authenticated caller set by AuthMiddleware.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(shared.ContextKeyUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
