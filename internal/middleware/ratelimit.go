package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/social-playground/internal/observability"
)

// RateLimiter is a fixed-window counter in Redis: one key per
// (resource, client IP) holding the number of requests in the current window.
//
// A nil client disables limiting. Redis errors let the request through
// (fail open); logging in must not depend on the cache being up.
type RateLimiter struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRateLimiter creates a RateLimiter. client may be nil.
func NewRateLimiter(client *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{client: client, logger: logger}
}

// Allow counts one request for id against resource and reports whether it is
// within limit for the current window.
func (l *RateLimiter) Allow(ctx context.Context, resource, id string, limit int, window time.Duration) (bool, error) {
	if l.client == nil {
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	// INCR and EXPIRE NX go out in one MULTI, so a counter never lives
	// without a TTL. NX keeps the window fixed instead of sliding.
	var count *redis.IntCmd
	if _, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		count = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	}); err != nil {
		return true, err
	}
	return count.Val() <= int64(limit), nil
}

// Limit returns middleware allowing limit requests per window per client IP.
// Only unsafe methods are counted so rendering a form is never throttled.
func (l *RateLimiter) Limit(resource string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := l.Allow(r.Context(), resource, ClientIP(r), limit, window)
			if err != nil && !errors.Is(err, context.Canceled) {
				l.logger.Warn("rate limiter unavailable, allowing request",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
			}
			if !allowed {
				observability.RateLimited.WithLabelValues(resource).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"success":false,"error":"too many requests, try again later","code":"rate_limited"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
