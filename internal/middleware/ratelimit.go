package middleware

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"civicpulse/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Rule is a fixed-window limit on one named action.
type Rule struct {
	Name   string
	Max    int
	Window time.Duration
	// FailClosed answers 503 instead of letting the request through when
	// the counter store errors.
	FailClosed bool
}

// Limits applied by the API routes.
var (
	RegisterLimit = Rule{Name: "register", Max: 5, Window: 10 * time.Minute, FailClosed: true}
	LoginLimit    = Rule{Name: "login", Max: 10, Window: 5 * time.Minute, FailClosed: true}
	PostLimit     = Rule{Name: "create_post", Max: 10, Window: time.Hour}
	CommentLimit  = Rule{Name: "create_comment", Max: 10, Window: time.Minute}
	SearchLimit   = Rule{Name: "search", Max: 60, Window: time.Minute}
)

// throttlingDisabled is true for local, test and load-test environments.
func throttlingDisabled() bool {
	env := os.Getenv("APP_ENV")
	return env == "" || env == "test" || env == "development" || env == "stress"
}

func (r Rule) key(subject string) string {
	return "rl:" + r.Name + ":" + subject
}

// Hit counts one request by subject against the rule. A nil store disables
// limiting. remaining never goes below zero.
func (r Rule) Hit(ctx context.Context, rdb *redis.Client, subject string) (allowed bool, remaining int, err error) {
	if throttlingDisabled() || rdb == nil {
		return true, r.Max, nil
	}

	key := r.key(subject)
	hits, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if hits == 1 {
		if err := rdb.Expire(ctx, key, r.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	return hits <= int64(r.Max), max(r.Max-int(hits), 0), nil
}

// subjectOf keys authenticated callers by user and everyone else by IP.
func subjectOf(c *fiber.Ctx) string {
	if uid, ok := c.Locals("userID").(uint); ok && uid != 0 {
		return fmt.Sprintf("user:%d", uid)
	}
	return "ip:" + c.IP()
}

// RateLimit enforces rule on the route it wraps.
func RateLimit(rdb *redis.Client, rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		allowed, remaining, err := rule.Hit(c.UserContext(), rdb, subjectOf(c))
		if err != nil {
			if !rule.FailClosed {
				return c.Next()
			}
			observability.RateLimitRejections.WithLabelValues(rule.Name, "store_unavailable").Inc()
			Logger.WarnContext(c.UserContext(), "rate limit store failing, rejecting request",
				"rule", rule.Name, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Service temporarily unavailable",
				"code":  "RATE_LIMIT_UNAVAILABLE",
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if allowed {
			return c.Next()
		}
		observability.RateLimitRejections.WithLabelValues(rule.Name, "exceeded").Inc()
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(rule.Window.Seconds())))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Too many requests, please try again later.",
			"code":  "RATE_LIMITED",
		})
	}
}
