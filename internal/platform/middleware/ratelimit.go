package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		BurstSize:         40,
	}
}

// clientLimiters holds one token bucket per client key.
type clientLimiters struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newClientLimiters(rps float64, burst int) *clientLimiters {
	return &clientLimiters{
		limit:    rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *clientLimiters) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// allow takes a token for key. It reports the tokens left or, when refused,
// the whole seconds until the next one.
func (l *clientLimiters) allow(key string, now time.Time) (ok bool, remaining, retry int) {
	lim := l.get(key)
	if lim.AllowN(now, 1) {
		return true, int(lim.TokensAt(now)), 0
	}
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0, 1
	}
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	retry = int(math.Ceil(delay.Seconds()))
	if retry < 1 {
		retry = 1
	}
	return false, 0, retry
}

// RateLimit keys buckets by client IP, login routes included.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	clients := newClientLimiters(cfg.RequestsPerSecond, cfg.BurstSize)
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			allowed, remaining, retry := clients.allow(c.RealIP(), time.Now())

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				h.Set("Retry-After", strconv.Itoa(retry))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
