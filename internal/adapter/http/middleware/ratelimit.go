package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "saturn/internal/adapter/storage/redis"
	"saturn/pkg/apperror"
	"saturn/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RateLimitRule defines a fixed-window rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// SignupLoginRateLimitRules are the only two rate limits Saturn enforces at
// the HTTP layer: per-IP signup and login throttling. Everything else —
// per-agent spend caps, per-call and per-day limits — is policy enforcement
// inside the proxy, not a generic request-rate gate.
func SignupLoginRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		"signup": {Limit: 5, Window: 15 * time.Minute},
		"login":  {Limit: 10, Window: 15 * time.Minute},
	}
}

// RateLimiter rate-limits a single endpoint group by client IP. On a Redis
// failure it fails open and lets the request through, logging the error.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", group, c.ClientIP())

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimit())
			c.Abort()
			return
		}

		c.Next()
	}
}
