package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	chiware "github.com/go-chi/chi/middleware"
	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appctx "github.com/folioshop/storefront/libs/context"
	"github.com/folioshop/storefront/libs/handlers"
	"github.com/folioshop/storefront/libs/logging"
	"github.com/folioshop/storefront/libs/middleware"
)

const (
	timeout = 10 * time.Second
)

func init() {
	RootCmd.AddCommand(ServeCmd)

	// address - sets the address of the server to be started
	ServeCmd.PersistentFlags().String("address", ":3000",
		"the default address to bind to")
	Must(viper.BindPFlag("address", ServeCmd.PersistentFlags().Lookup("address")))
	Must(viper.BindEnv("address", "ADDR"))

	// rate-limit-per-min - requests per minute per client address
	ServeCmd.PersistentFlags().Int("rate-limit-per-min", 180,
		"requests allowed per minute per client address, 0 disables rate limiting")
	Must(viper.BindPFlag("rate-limit-per-min", ServeCmd.PersistentFlags().Lookup("rate-limit-per-min")))
	Must(viper.BindEnv("rate-limit-per-min", "RATE_LIMIT_PER_MIN"))

	// redis-addr - optional redis url shared by instances for rate limiting
	ServeCmd.PersistentFlags().String("redis-addr", "",
		"redis url for a rate limit store shared across instances")
	Must(viper.BindPFlag("redis-addr", ServeCmd.PersistentFlags().Lookup("redis-addr")))
	Must(viper.BindEnv("redis-addr", "REDIS_ADDR"))
}

// ServeCmd the serve command
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "entrypoint to serve a micro-service",
}

// SetupRouter sets up a router with the shared middleware, heartbeat and health check
func SetupRouter(ctx context.Context) *chi.Mux {
	logger, err := appctx.GetLogger(ctx)
	Must(err)

	r := chi.NewRouter()
	r.Use(
		chiware.RequestID,
		chiware.RealIP,
		chiware.Heartbeat("/"),
		chiware.Timeout(timeout),
		middleware.BearerToken,
		middleware.RequestIDTransfer)

	if rl, ok := ctx.Value(appctx.RateLimitPerMinuteCTXKey).(int); ok && rl > 0 {
		r.Use(rateLimiter(ctx, rl))
	}

	// Also handles panic recovery
	r.Use(
		hlog.NewHandler(*logger),
		hlog.UserAgentHandler("user_agent"),
		hlog.RequestIDHandler("req_id", "Request-Id"),
		middleware.RequestLogger(logger))

	version, _ := ctx.Value(appctx.VersionCTXKey).(string)
	commit, _ := ctx.Value(appctx.CommitCTXKey).(string)
	buildTime, _ := ctx.Value(appctx.BuildTimeCTXKey).(string)

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_time", buildTime).
		Str("address", viper.GetString("address")).
		Str("environment", viper.GetString("environment")).
		Msg("server starting")

	r.Get("/health-check", handlers.HealthCheckHandler(version, buildTime, commit, nil))

	return r
}

func rateLimiter(ctx context.Context, perMin int) func(http.Handler) http.Handler {
	burst, _ := ctx.Value(appctx.RateLimiterBurstCTXKey).(int)

	redisAddr, err := appctx.GetStringFromContext(ctx, appctx.RedisAddrCTXKey)
	if err != nil || redisAddr == "" {
		return middleware.RateLimiter(ctx, perMin)
	}

	pool := &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(redisAddr)
		},
	}

	return middleware.RateLimiterRedisStore(ctx, perMin, burst, pool, "storefront:ratelimit:", 0)
}

// SetupSentry initialises error reporting when SENTRY_DSN is set. The returned func flushes pending events.
func SetupSentry(ctx context.Context) func() {
	logger := logging.Logger(ctx, "cmd.SetupSentry")

	sentryDsn := os.Getenv("SENTRY_DSN")
	if sentryDsn == "" {
		return func() {}
	}

	buildTime, _ := ctx.Value(appctx.BuildTimeCTXKey).(string)
	commit, _ := ctx.Value(appctx.CommitCTXKey).(string)
	env, _ := ctx.Value(appctx.EnvironmentCTXKey).(string)

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         sentryDsn,
		Environment: env,
		Release:     fmt.Sprintf("storefront@%s-%s", commit, buildTime),
	})
	if err != nil {
		logger.Panic().Err(err).Msg("unable to setup reporting!")
	}

	return func() { sentry.Flush(2 * time.Second) }
}

// ServeMetrics starts the prometheus metrics server on :9090
func ServeMetrics(ctx context.Context) {
	logger := logging.Logger(ctx, "cmd.ServeMetrics")

	go func() {
		srv := http.Server{
			Addr:              ":9090",
			Handler:           middleware.Metrics(),
			ReadHeaderTimeout: 3 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			sentry.CaptureException(err)
			logger.Panic().Err(err).Msg("metrics HTTP server start failed!")
		}
	}()
}
