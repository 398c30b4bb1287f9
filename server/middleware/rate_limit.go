package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	apierrors "github.com/hrygo/personaflow/server/internal/errors"
)

// Defaults for chat turns per persona.
const (
	DefaultRequestsPerSecond = 2.0
	DefaultBurst             = 5
)

// minSweepSize is the key count below which idle limiters are never swept.
const minSweepSize = 64

// RateLimiter keeps one token bucket per key. Buckets that have refilled are
// dropped once the key set grows, so memory follows recently active keys.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter
	rps    rate.Limit
	burst  int
	// sweepAt is the key count that triggers the next sweep.
	sweepAt int
	now     func() time.Time
}

// NewRateLimiter creates a new rate limiter. Non-positive values fall back to the defaults.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &RateLimiter{
		limits:  make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		sweepAt: minSweepSize,
		now:     time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limits[key]; ok {
		return limiter
	}
	if len(rl.limits) >= rl.sweepAt {
		rl.sweepLocked(now)
	}
	limiter := rate.NewLimiter(rl.rps, rl.burst)
	rl.limits[key] = limiter
	return limiter
}

// sweepLocked drops every limiter whose bucket is full again; a full bucket
// behaves exactly like a fresh one.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, limiter := range rl.limits {
		if limiter.TokensAt(now) >= float64(rl.burst) {
			delete(rl.limits, key)
		}
	}
	rl.sweepAt = max(minSweepSize, 2*len(rl.limits))
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.now()
	return rl.getLimiter(key, now).AllowN(now, 1)
}

// Len reports how many keys currently hold a limiter.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limits)
}

// PerParam limits requests keyed by a path parameter, e.g. the persona id.
// When known is set, keys it rejects pass through unlimited and untracked,
// leaving the handler to answer them.
func (rl *RateLimiter) PerParam(param string, known func(c echo.Context, key string) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Param(param)
			if known != nil && !known(c, key) {
				return next(c)
			}
			if !rl.Allow(key) {
				aiErr := apierrors.RateLimitExceeded("too many requests, please slow down").
					WithContext(param, key)
				return c.JSON(http.StatusTooManyRequests, aiErr)
			}
			return next(c)
		}
	}
}
