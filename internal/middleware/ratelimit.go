package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrigpt/backend/pkg/errors"
	"github.com/agrigpt/backend/pkg/response"
)

// RateLimit limits requests per (clientIP, route) within a fixed window. It
// is an in-memory limiter suitable for single-instance deployments; the OTP
// endpoints use it to slow down code enumeration.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	limiter := newWindowLimiter(window)

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		count, resetIn := limiter.increment(key)

		remaining := maxRequests - count
		if remaining < 0 {
			remaining = 0
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if count > maxRequests {
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}

type windowLimiter struct {
	mu     sync.Mutex
	window time.Duration
	data   map[string]*windowCounter
	swept  time.Time
}

type windowCounter struct {
	count     int
	windowEnd time.Time
}

func newWindowLimiter(window time.Duration) *windowLimiter {
	return &windowLimiter{
		window: window,
		data:   make(map[string]*windowCounter),
		swept:  time.Now(),
	}
}

func (l *windowLimiter) increment(key string) (int, time.Duration) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	// Opportunistic sweep keeps the map from growing without a background
	// goroutine per limiter.
	if now.Sub(l.swept) > l.window {
		for k, v := range l.data {
			if now.After(v.windowEnd) {
				delete(l.data, k)
			}
		}
		l.swept = now
	}

	counter, ok := l.data[key]
	if !ok || now.After(counter.windowEnd) {
		counter = &windowCounter{windowEnd: now.Add(l.window)}
		l.data[key] = counter
	}
	counter.count++

	return counter.count, time.Until(counter.windowEnd)
}
