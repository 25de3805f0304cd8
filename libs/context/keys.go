package context

import "errors"

// CTXKey - a type for context keys
type CTXKey string

const (
	// EnvironmentCTXKey - the key used for service context
	EnvironmentCTXKey CTXKey = "environment"
	// DebugLoggingCTXKey - context key for debug logging
	DebugLoggingCTXKey CTXKey = "debug_logging"
	// LogLevelCTXKey - context key for application logging level
	LogLevelCTXKey CTXKey = "log_level"
	// LogWriterCTXKey - context key for an overriding log writer
	LogWriterCTXKey CTXKey = "log_writer"
	// LoggerCTXKey - context key for the application logger
	LoggerCTXKey CTXKey = "logger"

	// VersionCTXKey - context key for version of code
	VersionCTXKey CTXKey = "version"
	// CommitCTXKey - context key for the commit of the code
	CommitCTXKey CTXKey = "commit"
	// BuildTimeCTXKey - context key for the build time of code
	BuildTimeCTXKey CTXKey = "build_time"

	// RateLimitPerMinuteCTXKey - the context key for getting the rate limit
	RateLimitPerMinuteCTXKey CTXKey = "rate_limit_per_min"
	// RateLimiterBurstCTXKey - context key for allowing a bursting rate limiter
	RateLimiterBurstCTXKey CTXKey = "rate_limit_burst"
	// RedisAddrCTXKey - context key for the redis url backing shared rate limits
	RedisAddrCTXKey CTXKey = "redis_addr"

	// ShopServerCTXKey - the context key for the storefront api base url
	ShopServerCTXKey CTXKey = "shop_server"
	// KeyCacheExpiryDurationCTXKey - context key for the gateway key cache expiry
	KeyCacheExpiryDurationCTXKey CTXKey = "key_cache_expiry"
	// KeyCachePurgeDurationCTXKey - context key for the gateway key cache purge
	KeyCachePurgeDurationCTXKey CTXKey = "key_cache_purge"
)

var (
	// ErrNotInContext - error you get when you ask for something not in the context.
	ErrNotInContext = errors.New("failed to get value from context")
	// ErrValueWrongType - error you get when you ask for something, and it is not the type you expected
	ErrValueWrongType = errors.New("context value of wrong type")
)
