package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"monch/internal/httputil"
	"monch/internal/metrics"
)

const (
	rateLimitPrefix = "rl"
	visitorIdleTTL  = 5 * time.Minute
)

// RateLimiter allows limit requests per window for each (resource, client) pair.
// Counters live in Redis when available; without Redis, or when Redis fails,
// an in-process token bucket per client takes over.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	logger *zap.Logger

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter builds a limiter. rdb may be nil; a limit of 0 disables limiting.
func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:       rdb,
		limit:     limit,
		window:    window,
		logger:    logger,
		visitors:  make(map[string]*visitor),
		lastPrune: time.Now(),
	}
}

// Allow reports whether id may perform one more request against resource.
func (l *RateLimiter) Allow(ctx context.Context, resource, id string) bool {
	if l.limit <= 0 {
		return true
	}
	if l.rdb != nil {
		allowed, err := l.checkRedis(ctx, resource, id)
		if err == nil {
			return allowed
		}
		l.logger.Warn("rate limit store unavailable, using local limiter", zap.String("resource", resource), zap.Error(err))
	}
	return l.localLimiter(resource + ":" + id).Allow()
}

// Limit returns middleware enforcing the limit on resource, keyed by client IP.
func (l *RateLimiter) Limit(resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := httputil.ClientIP(r)
			if !l.Allow(r.Context(), resource, ip) {
				metrics.RateLimitRejections.WithLabelValues(resource).Inc()
				l.logger.Warn("rate limit exceeded", zap.String("resource", resource), zap.String("ip", ip))
				httputil.WriteTooManyRequests(w, l.window, "Too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// checkRedis counts the request in a fixed window. SET NX EX creates the
// counter with its TTL and INCR bumps it, in one MULTI so a counter never
// exists without an expiry.
func (l *RateLimiter) checkRedis(ctx context.Context, resource, id string) (bool, error) {
	key := fmt.Sprintf("%s:%s:%s", rateLimitPrefix, resource, id)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, l.window)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return false, err
	}
	return incr.Val() <= int64(l.limit), nil
}

func (l *RateLimiter) localLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > time.Minute {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > visitorIdleTTL {
				delete(l.visitors, k)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[key]
	if !ok {
		every := rate.Every(l.window / time.Duration(l.limit))
		v = &visitor{limiter: rate.NewLimiter(every, l.limit)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}
