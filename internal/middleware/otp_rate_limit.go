package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewOTPLimiter builds the limiter guarding OTP issuance. rate uses the
// limiter's formatted notation, e.g. "5-M" for five per minute. Redis backs
// the counters when available so limits hold across instances.
func NewOTPLimiter(cache *redis.Client, rate string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse otp rate %q: %w", rate, err)
	}
	var store limiter.Store
	if cache != nil {
		store, err = sredis.NewStoreWithOptions(cache, limiter.StoreOptions{Prefix: "rl:otp", MaxRetry: 3})
		if err != nil {
			return nil, fmt.Errorf("build redis limiter store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: "rl:otp", CleanUpInterval: limiter.DefaultCleanUpInterval})
	}
	return limiter.New(store, r), nil
}

// OTPRateLimit limits OTP requests per mobile number, or per client IP when
// the body carries no mobile. Limiter failures let the request through.
func OTPRateLimit(l *limiter.Limiter, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Mobile string `json:"mobile"`
		}
		_ = c.BodyParser(&req)
		key := strings.TrimSpace(req.Mobile)
		if key == "" {
			key = c.IP()
		}

		lctx, err := l.Get(c.UserContext(), c.Path()+":"+key)
		if err != nil {
			logger.Warn("otp rate limiter unavailable", slog.Any("error", err))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			return fiber.NewError(http.StatusTooManyRequests, "Too many OTP requests. Please try again later.")
		}
		return c.Next()
	}
}
