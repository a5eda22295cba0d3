package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/leozw/mantenapp/internal/api/respond"
)

// maxPeekBytes bounds how much of a body APIKey reads looking for a key.
const maxPeekBytes = 5 << 20

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
	lastGC   time.Time
	now      func() time.Time
}

// NewRateLimiter allows perMinute requests per key with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		idleTTL:  10 * time.Minute,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastGC) > rl.idleTTL {
		for k, e := range rl.limiters {
			if now.Sub(e.lastSeen) > rl.idleTTL {
				delete(rl.limiters, k)
			}
		}
		rl.lastGC = now
	}

	e, ok := rl.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Limit rejects requests over the budget of the key returned by keyFunc.
// Requests with an empty key are limited by client IP.
func (rl *RateLimiter) Limit(keyFunc func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}
		if !rl.Allow(key) {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(1/float64(rl.limit)))))
			respond.Error(c, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		c.Next()
	}
}

// APIKey returns the plugin credential from the X-API-Key header, the Bearer
// token or, failing both, the apiKey field of a JSON body. The body is
// restored for the handler.
func APIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if key := BearerToken(c); key != "" {
		return key
	}
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return ""
	}

	body := c.Request.Body
	peeked, err := io.ReadAll(io.LimitReader(body, maxPeekBytes))
	c.Request.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(peeked), body), body}
	if err != nil {
		return ""
	}
	return BodyAPIKey(peeked)
}

// BodyAPIKey extracts the apiKey field from a JSON object, or "".
func BodyAPIKey(raw []byte) string {
	var payload struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.APIKey
}
