package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/inner-byte/i2bt-v1/internal/models"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

// Limiter is a fixed-window request counter backed by Redis. Counting uses
// INCR, which is atomic per key, so concurrent hits from the same caller
// cannot undercount.
type Limiter struct {
	rdb *redis.Client
}

// NewLimiter returns a Limiter using the given Redis client.
func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{rdb: rdb}
}

// Result is the outcome of a single rate-limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Check increments the counter for (resource, id) and reports whether the
// caller is still within limit for the current window. The window starts at
// the first hit and ends when the key's TTL expires.
func (l *Limiter) Check(ctx context.Context, resource, id string, limit int, window time.Duration) (Result, error) {
	if l.rdb == nil {
		return Result{}, fmt.Errorf("rate limiter: redis client is nil")
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, err
	}
	if cnt == 1 {
		l.rdb.Expire(ctx, key, window)
	}

	if cnt > int64(limit) {
		return Result{Allowed: false, Remaining: 0, RetryAfter: window}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(cnt), RetryAfter: 0}, nil
}

// RateLimit returns a Fiber middleware enforcing `limit` requests per `window`.
// It keys by authenticated userID (if set in c.Locals("userID")) otherwise by
// remote IP, and defaults to the FailOpen policy.
func RateLimit(l *Limiter, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(l, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy returns a Fiber middleware enforcing `limit` requests
// per `window` with a specific failure policy. Denied requests get a 429 with
// a Retry-After header of the full window length.
func RateLimitWithPolicy(l *Limiter, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if uid := c.Locals("userID"); uid != nil {
			id = fmt.Sprintf("user:%v", uid)
		} else {
			id = fmt.Sprintf("ip:%s", c.IP())
		}

		// Use the provided name or the request path as the resource identifier
		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}

		res, err := l.Check(c.UserContext(), resource, id, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
					slog.String("resource", resource), slog.String("error", err.Error()))
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			}
			// Default FailOpen
			return c.Next()
		}

		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			RateLimitDenials.WithLabelValues(resource).Inc()
			c.Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitedError())
		}
		return c.Next()
	}
}
