package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assembly/internal/config"
	"github.com/stemsi/exstem-assembly/internal/response"
)

// RateLimiter limits requests per client IP with a fixed window counted in
// Redis. When Redis is unavailable it falls back to a per-process token
// bucket so a cache outage never opens the expensive endpoints wide.
type RateLimiter struct {
	rdb      *redis.Client
	rate     int           // Requests per interval
	interval time.Duration // Window length
	log      zerolog.Logger

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	tokens   int
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter (e.g., 10 requests per minute).
// rdb may be nil, in which case only the in-memory bucket is used.
func NewRateLimiter(rdb *redis.Client, rate int, interval time.Duration, log zerolog.Logger) *RateLimiter {
	rl := &RateLimiter{
		rdb:      rdb,
		rate:     rate,
		interval: interval,
		log:      log.With().Str("component", "rate_limiter").Logger(),
		visitors: make(map[string]*visitor),
	}

	// Cleanup stale visitors every minute.
	go func() {
		for range time.Tick(time.Minute) {
			rl.cleanup()
		}
	}()

	return rl
}

// Middleware returns a Gin middleware that rate-limits requests by IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		allowed, remaining := rl.allow(c, ip)
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(c *gin.Context, ip string) (bool, int) {
	if rl.rdb != nil {
		allowed, remaining, err := rl.allowRedis(c, ip)
		if err == nil {
			return allowed, remaining
		}
		rl.log.Warn().Err(err).Str("ip", ip).Msg("Redis rate limit failed, using local bucket")
	}
	return rl.allowLocal(ip)
}

// allowRedis counts the request in the current window with INCR + EXPIRE.
func (rl *RateLimiter) allowRedis(c *gin.Context, ip string) (bool, int, error) {
	ctx := c.Request.Context()
	window := time.Now().UnixNano() / int64(rl.interval)
	key := config.CacheKey.AssemblyRateKey(ip, window)

	pipe := rl.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rl.interval)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	count := int(incr.Val())
	remaining := rl.rate - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= rl.rate, remaining, nil
}

func (rl *RateLimiter) allowLocal(ip string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{tokens: rl.rate, lastSeen: time.Now()}
		rl.visitors[ip] = v
	}

	// Refill tokens based on elapsed time.
	elapsed := time.Since(v.lastSeen)
	refill := int(elapsed/rl.interval) * rl.rate
	if refill > 0 {
		v.tokens += refill
		if v.tokens > rl.rate {
			v.tokens = rl.rate
		}
		v.lastSeen = time.Now()
	}

	if v.tokens <= 0 {
		return false, 0
	}
	v.tokens--
	return true, v.tokens
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if time.Since(v.lastSeen) > 3*time.Minute {
			delete(rl.visitors, ip)
		}
	}
}
