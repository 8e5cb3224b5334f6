package security

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles purchase attempts with a fixed one-minute window
// counter in Redis, keyed by user id when authenticated and client IP
// otherwise.
type RateLimiter struct {
	redis *redis.Client
	limit int64
}

func NewRateLimiter(redisClient *redis.Client, limit int) *RateLimiter {
	if limit <= 0 {
		limit = 30
	}
	return &RateLimiter{redis: redisClient, limit: int64(limit)}
}

// PurchaseRateLimit wraps a route handler. On Redis errors the request is
// allowed through; throttling is protection, not a correctness gate.
func (r *RateLimiter) PurchaseRateLimit(next func(*core.RequestEvent) error) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if r.redis == nil {
			return next(e)
		}

		key := fmt.Sprintf("ratelimit:purchase:ip:%s", e.RealIP())
		if e.Auth != nil {
			key = fmt.Sprintf("ratelimit:purchase:user:%s", e.Auth.Id)
		}

		ctx := e.Request.Context()

		count, err := r.redis.Incr(ctx, key).Result()
		if err != nil {
			slog.Warn("rate limit check failed", "key", key, "error", err)
			return next(e)
		}
		if count == 1 {
			r.redis.Expire(ctx, key, time.Minute)
		}

		if count > r.limit {
			return e.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return next(e)
	}
}
