package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/manan-gakkhar/Doc-Plus/internal/platform/auth"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// IdleTTL drops limiters for keys that have not been seen for this long.
	IdleTTL time.Duration
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 50,
		BurstSize:         100,
		IdleTTL:           10 * time.Minute,
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore holds one limiter per key.
type rateLimiterStore struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	config    RateLimitConfig
	lastSweep time.Time
}

func newRateLimiterStore(cfg RateLimitConfig) *rateLimiterStore {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}
	return &rateLimiterStore{
		entries:   make(map[string]*limiterEntry),
		config:    cfg,
		lastSweep: time.Now(),
	}
}

func (s *rateLimiterStore) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) > s.config.IdleTTL {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) > s.config.IdleTTL {
				delete(s.entries, k)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.BurstSize)}
		s.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// retryAfterSeconds is how long until the limiter has a whole token again.
func retryAfterSeconds(l *rate.Limiter, now time.Time) int {
	if l.Limit() <= 0 {
		return 1
	}
	missing := 1 - l.TokensAt(now)
	if missing <= 0 {
		return 1
	}
	return int(math.Ceil(missing / float64(l.Limit())))
}

// RateLimit returns a rate limiting middleware keyed by the signed-in user,
// or by client IP for anonymous requests.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newRateLimiterStore(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := "ip:" + c.RealIP()
			if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
				key = "user:" + uid
			}

			now := time.Now()
			limiter := store.get(key, now)
			c.Response().Header().Set("X-RateLimit-Limit", limitHeader)
			if !limiter.AllowN(now, 1) {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(limiter, now)))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
