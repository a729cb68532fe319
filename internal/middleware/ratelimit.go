// ===========================================
// Package middleware - Rate Limiting
// ===========================================
// Fixed one-minute windows counted in Redis:
//
// 1. Key = "ratelimit:{identifier}:{window}"
// 2. INCR key, set expiry on the first hit
// 3. If count > limit + burst, reject with 429
//
// Requests authenticated with an API key are counted per key with the
// key's own limit; everything else is counted per client IP.
// ===========================================

package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/linkpulse/internal/config"
	"github.com/user/linkpulse/internal/database"
	"github.com/user/linkpulse/internal/models"
	"go.uber.org/zap"
)

// Counter increments a windowed counter and returns the new value.
type Counter interface {
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter is the middleware for rate limiting.
type RateLimiter struct {
	counter      Counter
	defaultLimit int
	burst        int
	windowSize   time.Duration
	log          *zap.Logger
	now          func() time.Time
}

// NewRateLimiter creates a new rate limiter middleware.
func NewRateLimiter(counter Counter, cfg config.RateLimitConfig, log *zap.Logger) *RateLimiter {
	return &RateLimiter{
		counter:      counter,
		defaultLimit: cfg.RequestsPerMinute,
		burst:        cfg.BurstSize,
		windowSize:   time.Minute,
		log:          log,
		now:          time.Now,
	}
}

// Middleware returns the Gin middleware handler. Mount it after the
// API key middleware so per-key limits apply.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := rl.defaultLimit
		identifier := "ip:" + ClientIP(c)

		if key := GetAPIKeyFromContext(c); key != nil {
			if key.RateLimit > 0 {
				limit = key.RateLimit
			}
			identifier = "key:" + key.ID.String()
		}

		window := rl.now().Truncate(rl.windowSize)
		key := database.RateLimitKey(identifier, window)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		count, err := rl.counter.IncrementCounter(ctx, key, rl.windowSize)
		if err != nil {
			// Fail open: a Redis outage must not take redirects down.
			rl.log.Warn("Rate limit check failed, allowing request", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", max(0, limit-int(count))))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", window.Add(rl.windowSize).Unix()))

		if int(count) > limit+rl.burst {
			retryAfter := int(rl.windowSize.Seconds() - rl.now().Sub(window).Seconds())
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))

			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "Rate limit exceeded",
				Code:    models.ErrCodeRateLimited,
				Details: fmt.Sprintf("Try again in %d seconds", retryAfter),
			})
			return
		}

		c.Next()
	}
}

// ClientIP returns the visitor's address. The first X-Forwarded-For
// entry wins, then X-Real-IP, then the socket address.
//
// X-Forwarded-For can be spoofed. Only deploy behind a proxy that
// overwrites it.
func ClientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		return strings.TrimSpace(ips[0])
	}

	if realIP := c.GetHeader("X-Real-IP"); realIP != "" {
		return realIP
	}

	return c.ClientIP()
}
