package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"relay-service/internal/services"

	"github.com/gin-gonic/gin"
)

// RateLimiter is satisfied by services.RedisService
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type RateLimitMiddleware struct {
	limiter RateLimiter
}

func NewRateLimitMiddleware(limiter RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// RateLimit limits requests per authenticated user, falling back to the
// client IP for anonymous requests. Limiter failures let the request through.
func (rm *RateLimitMiddleware) RateLimit(action string, requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := UserID(c)
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}
		key := services.RateLimitKey(action, subject)

		allowed, err := rm.limiter.CheckRateLimit(c.Request.Context(), key, requests, window)
		if err != nil {
			slog.Warn("Rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Limit: %d per %v", requests, window),
			})
			return
		}

		c.Next()
	}
}
