package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/princinho/eventhub/apperrors"
	"github.com/princinho/eventhub/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter counts hits per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Window() time.Duration
}

// RedisLimiter shares counters between instances.
type RedisLimiter struct {
	client   *redis.Client
	requests int
	window   time.Duration
	prefix   string
}

func NewRedisLimiter(client *redis.Client, requests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, requests: requests, window: window, prefix: "ratelimit"}
}

func (rl *RedisLimiter) Window() time.Duration { return rl.window }

// Allow fails open: when Redis is unreachable the request is let through and
// the error returned for logging.
func (rl *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	// the first hit starts the window, later hits must not extend it
	pipe.ExpireNX(ctx, redisKey, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	return incr.Val() <= int64(rl.requests), nil
}

// MemoryLimiter is the single instance fallback when no REDIS_URL is set.
// Stale buckets of other keys are swept at most once per window.
type MemoryLimiter struct {
	mu        sync.Mutex
	requests  int
	window    time.Duration
	buckets   map[string]*bucket
	nextSweep time.Time
	now       func() time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
}

func NewMemoryLimiter(requests int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		requests: requests,
		window:   window,
		buckets:  make(map[string]*bucket),
		now:      time.Now,
	}
}

func (ml *MemoryLimiter) Window() time.Duration { return ml.window }

func (ml *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	if !now.Before(ml.nextSweep) {
		for k, b := range ml.buckets {
			if !now.Before(b.resetAt) {
				delete(ml.buckets, k)
			}
		}
		ml.nextSweep = now.Add(ml.window)
	}

	b, ok := ml.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(ml.window)}
		ml.buckets[key] = b
	}
	b.count++
	return b.count <= ml.requests, nil
}

// RateLimit throttles a route per client IP.
func RateLimit(limiter Limiter, m *metrics.Metrics, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.FullPath() + ":" + c.ClientIP()

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		}
		if !allowed {
			log.Warn("rate limit exceeded",
				zap.String("client_ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			if m != nil {
				m.RateLimitedTotal.WithLabelValues(c.FullPath()).Inc()
			}
			c.Header("Retry-After", strconv.Itoa(int(limiter.Window().Seconds())))
			_ = c.Error(apperrors.New(apperrors.TooManyRequests, "too many requests"))
			c.Abort()
			return
		}
		c.Next()
	}
}
