package middleware

import (
	"context"
	"net/http"

	appctx "github.com/folioshop/storefront/libs/context"
	"github.com/folioshop/storefront/libs/logging"
	"github.com/gomodule/redigo/redis"
	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
	"github.com/throttled/throttled/v2/store/redigostore"
)

// IPRateLimiterWithStore rate limits based on IP, path and method using
// the provided store and a GCRA leaky bucket algorithm.
func IPRateLimiterWithStore(
	ctx context.Context,
	perMin int,
	burst int,
	store throttled.GCRAStore,
) func(next http.Handler) http.Handler {
	logger := logging.Logger(ctx, "middleware.IPRateLimiterWithStore")

	return func(next http.Handler) http.Handler {
		quota := throttled.RateQuota{
			MaxRate:  throttled.PerMin(perMin),
			MaxBurst: burst,
		}
		rateLimiter, err := throttled.NewGCRARateLimiter(store, quota)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create rate limiter")
		}

		httpRateLimiter := throttled.HTTPRateLimiter{
			RateLimiter: rateLimiter,
			VaryBy: &throttled.VaryBy{
				RemoteAddr: true,
				Path:       true,
				Method:     true,
			},
		}
		limited := httpRateLimiter.RateLimit(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// cors preflights come in bursts ahead of the real request
			if r.Method == http.MethodOptions || isSimpleTokenInContext(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			limited.ServeHTTP(w, r)
		})
	}
}

// RateLimiter rate limits requests per IP using an in memory store
// that is not shared across instances.
func RateLimiter(ctx context.Context, perMin int) func(next http.Handler) http.Handler {
	logger := logging.Logger(ctx, "middleware.RateLimiter")
	store, err := memstore.New(65536)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create memory store")
	}

	burst := 0
	if b, ok := ctx.Value(appctx.RateLimiterBurstCTXKey).(int); ok {
		burst = b
	}

	return IPRateLimiterWithStore(ctx, perMin, burst, store)
}

// RateLimiterRedisStore rate limits requests per IP, sharing counts
// between instances through redis.
func RateLimiterRedisStore(
	ctx context.Context,
	perMin int,
	burst int,
	pool *redis.Pool,
	keyPrefix string,
	db int,
) func(next http.Handler) http.Handler {
	logger := logging.Logger(ctx, "middleware.RateLimiterRedisStore")
	store, err := redigostore.New(pool, keyPrefix, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create redis store")
	}

	return IPRateLimiterWithStore(ctx, perMin, burst, store)
}
