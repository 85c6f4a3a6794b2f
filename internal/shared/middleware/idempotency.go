package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"bookstore-settlement/internal/shared/response"
	"bookstore-settlement/pkg/cache"
	"bookstore-settlement/pkg/logger"
)

const HeaderIdempotencyKey = "Idempotency-Key"

// Idempotency claims the request's Idempotency-Key in the cache before the
// handler runs. A second request with the same key for the same user gets
// 409 with conflictCode. The claim is dropped again when the handler fails
// so the client can retry. Requests without the header pass through.
func Idempotency(c cache.Cache, scope string, ttl time.Duration, conflictCode string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := ctx.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			ctx.Next()
			return
		}
		if len(key) > 128 {
			response.AbortWithError(ctx, http.StatusBadRequest, "BAD_REQUEST", "Idempotency-Key too long")
			return
		}

		userID, _ := GetUserID(ctx)
		cacheKey := "idem:" + scope + ":" + userID.String() + ":" + key

		claimed, err := c.SetNX(ctx.Request.Context(), cacheKey, time.Now().Unix(), ttl)
		if err != nil {
			// Without the store the request is processed unguarded.
			logger.Error("Idempotency store unavailable", err)
			ctx.Next()
			return
		}
		if !claimed {
			response.AbortWithError(ctx, http.StatusConflict, conflictCode, "duplicate request")
			return
		}

		ctx.Next()

		if ctx.Writer.Status() >= http.StatusBadRequest {
			if err := c.Delete(ctx.Request.Context(), cacheKey); err != nil {
				logger.Error("Failed to release idempotency key", err)
			}
		}
	}
}
