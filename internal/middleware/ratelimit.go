package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Duration
}

// Limiter counts hits per key in fixed windows. It is shared by the HTTP
// surface (keyed by client address) and the bot (keyed by sender id).
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

type redisLimiter struct {
	client *redis.Client
	config RateLimitConfig
}

// NewRedisLimiter creates a fixed window Limiter backed by Redis INCR/EXPIRE
func NewRedisLimiter(client *redis.Client, config RateLimitConfig) Limiter {
	return &redisLimiter{client: client, config: config}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := fmt.Sprintf("%s:%s", l.config.KeyPrefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{Allowed: true, Limit: l.config.RequestsPerWindow}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// Set expiry on first hit of the window
	if count == 1 {
		l.client.Expire(ctx, redisKey, l.config.Window)
	}

	decision := Decision{
		Allowed: count <= int64(l.config.RequestsPerWindow),
		Limit:   l.config.RequestsPerWindow,
		Reset:   l.config.Window,
	}
	if decision.Allowed {
		decision.Remaining = l.config.RequestsPerWindow - int(count)
		return decision, nil
	}

	if ttl, err := l.client.TTL(ctx, redisKey).Result(); err == nil && ttl > 0 {
		decision.Reset = ttl
	}
	return decision, nil
}

// ClientAddress keys requests by remote host
func ClientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware rejects requests over the limit with 429. Limiter
// failures let the request through.
func RateLimitMiddleware(limiter Limiter, keyFunc func(*http.Request) string, logger *zap.Logger) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = ClientAddress
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := keyFunc(r)

			decision, err := limiter.Allow(r.Context(), clientID)
			if err != nil {
				logger.Error("Rate limit check failed", zap.Error(err), zap.String("client_id", clientID))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int("limit", decision.Limit),
				)

				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(decision.Reset).Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(int(decision.Reset.Seconds())))

				RespondWithError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
