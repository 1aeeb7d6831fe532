package middleware

import (
	"net/http"

	"github.com/printops/order-sync-api/pkg/logger"
	"github.com/printops/order-sync-api/pkg/ratelimit"
)

// RateLimiter applies a global token bucket to incoming requests. The
// dashboard is an internal tool, so a single shared bucket is enough to keep
// a polling client from hammering the sync path.
type RateLimiter struct {
	bucket *ratelimit.TokenBucket
	logger logger.Logger
}

// RateLimiterConfig configures the rate limiter middleware
type RateLimiterConfig struct {
	MaxTokens  float64
	RefillRate float64 // tokens per second
}

// NewRateLimiter creates a new rate limiter middleware
func NewRateLimiter(cfg RateLimiterConfig, logger logger.Logger) *RateLimiter {
	return &RateLimiter{
		bucket: ratelimit.NewTokenBucket(cfg.MaxTokens, cfg.RefillRate),
		logger: logger,
	}
}

// Middleware returns the middleware function
func (m *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.bucket.Allow() {
			m.logger.Warn("Rate limit exceeded", "method", r.Method, "path", r.URL.Path)

			w.Header().Set("Retry-After", "10")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limit exceeded. Please try again later."))
			return
		}

		next.ServeHTTP(w, r)
	})
}
