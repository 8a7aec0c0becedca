package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"otomart/pkg/logger"
)

// IPRateLimiter throttles by client IP before requests reach the handlers.
// Per-user, per-action limits live in the use-case layer; this one only
// shields the API from a single noisy address.
type IPRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     int
	window   time.Duration
}

type visitor struct {
	tokens     int
	lastSeen   time.Time
	blocked    bool
	blockUntil time.Time
}

func NewIPRateLimiter(rate int, window time.Duration) *IPRateLimiter {
	rl := &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}

	go rl.cleanup()

	return rl
}

func (rl *IPRateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			if blocked, resetTime := rl.isBlocked(ip); blocked {
				logger.Warn("rate limit: blocked request from %s (reset in %v)", ip, time.Until(resetTime))

				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":       "Rate limit exceeded",
					"retry_after": int(time.Until(resetTime).Seconds()),
				})
			}

			rl.consume(ip)

			return next(c)
		}
	}
}

func (rl *IPRateLimiter) isBlocked(ip string) (bool, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:   rl.rate - 1,
			lastSeen: time.Now(),
		}
		return false, time.Time{}
	}

	now := time.Now()

	if v.blocked && now.Before(v.blockUntil) {
		return true, v.blockUntil
	}
	if v.blocked {
		v.blocked = false
		v.tokens = rl.rate
	}

	// Refill proportionally to elapsed time.
	elapsed := now.Sub(v.lastSeen)
	v.tokens += int(elapsed / rl.window * time.Duration(rl.rate))
	if v.tokens > rl.rate {
		v.tokens = rl.rate
	}
	v.lastSeen = now

	if v.tokens <= 0 {
		v.blocked = true
		v.blockUntil = now.Add(rl.window)
		return true, v.blockUntil
	}

	return false, time.Time{}
}

func (rl *IPRateLimiter) consume(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, exists := rl.visitors[ip]; exists {
		v.tokens--
		v.lastSeen = time.Now()
	}
}

func (rl *IPRateLimiter) cleanup() {
	for {
		time.Sleep(time.Hour)

		rl.mu.Lock()
		now := time.Now()
		for ip, v := range rl.visitors {
			if now.Sub(v.lastSeen) > 2*time.Hour {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}
