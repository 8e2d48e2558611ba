package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/authgate/internal/service"
	"github.com/noah-isme/authgate/pkg/ratelimit"
	"github.com/noah-isme/authgate/pkg/response"
)

// RateLimit admits requests through the per-client token bucket before any
// other processing. Throttled requests get 429 with a Retry-After hint and
// never reach the authentication gate.
func RateLimit(limiter *ratelimit.Limiter, metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Allow(c.ClientIP())
		if !allowed {
			if metrics != nil {
				metrics.IncRateLimited()
			}
			response.RateLimited(c, retryAfter)
			c.Abort()
			return
		}
		c.Next()
	}
}
