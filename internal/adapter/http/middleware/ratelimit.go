package middleware

import (
	"fmt"
	"strconv"
	"time"

	"wallet-ledger-engine/internal/core/ports"
	"wallet-ledger-engine/pkg/apperror"
	"wallet-ledger-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit         int64
	WindowSeconds int
}

// DefaultRateLimitRules returns the per-group limits for the wallet API.
// Money-moving groups are tighter than read-only ones.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"purchases":   {Limit: 60, WindowSeconds: 60},
		"transfers":   {Limit: 30, WindowSeconds: 60},
		"refunds":     {Limit: 30, WindowSeconds: 60},
		"deposits":    {Limit: 30, WindowSeconds: 60},
		"withdrawals": {Limit: 10, WindowSeconds: 60},
		"wallet":      {Limit: 120, WindowSeconds: 60},
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
func RateLimiter(limiter ports.RateLimiter, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identifier := extractIdentifier(c)
		key := fmt.Sprintf("%s:%s", identifier, group)

		result, err := limiter.Allow(c.Request.Context(), key, rule.Limit, rule.WindowSeconds)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		// Always set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier determines the rate limit key source. Authenticated
// requests are keyed by user, anonymous ones by client IP.
func extractIdentifier(c *gin.Context) string {
	if uid, exists := c.Get(CtxUserID); exists {
		return fmt.Sprintf("%v", uid)
	}
	return c.ClientIP()
}
