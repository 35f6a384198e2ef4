package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/shelfapp/shelf-server/internal/errors"
	"github.com/shelfapp/shelf-server/internal/ratelimit"
)

// RateLimiter is the keyed limiter used to throttle requests per client IP.
type RateLimiter = ratelimit.KeyedRateLimiter

// NewRateLimiter creates a limiter allowing ratePerInterval requests per
// interval for each key, with the given burst.
// For example: 10 per minute = 10/60 = 0.167 rps.
func NewRateLimiter(ratePerInterval int, interval time.Duration, burst int) *RateLimiter {
	rps := float64(ratePerInterval) / interval.Seconds()
	return ratelimit.New(rps, burst)
}

// rateLimitByIP is a huma operation middleware that answers 429 with a
// Retry-After header once the caller's IP exceeds limiter.
func (s *Server) rateLimitByIP(limiter *RateLimiter) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if limiter == nil {
			next(ctx)
			return
		}

		key := clientIP(ctx.RemoteAddr())
		if !limiter.Allow(key) {
			s.logger.Warn("Rate limit exceeded",
				"ip", key,
				"path", ctx.URL().Path,
			)
			retry := max(1, int(math.Ceil(limiter.RetryAfter(key).Seconds())))
			ctx.SetHeader("Retry-After", strconv.Itoa(retry))
			_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "Too many requests",
				domainerrors.RateLimited("Too many requests. Please try again later."))
			return
		}

		next(ctx)
	}
}
