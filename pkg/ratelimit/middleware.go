package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/craftora/backoffice/pkg/common"
	"github.com/craftora/backoffice/pkg/middleware"
)

// Middleware rejects requests over the limit with 429. Identity is the
// authenticated user when present, the client IP otherwise. A Redis outage
// fails open so the API stays reachable.
func Middleware(limiter *Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.ClientIP()
		if userID, err := middleware.GetUserID(c); err == nil {
			identity = userID.String()
		}

		result, err := limiter.Allow(c.Request.Context(), c.FullPath(), identity)
		if err != nil {
			logger.Warn("Rate limit check failed, allowing request", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))

		if !result.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(result.RetryAfter.Seconds())+1))
			common.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}

		c.Next()
	}
}
