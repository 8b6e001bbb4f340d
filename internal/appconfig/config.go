// Package appconfig resolves the process's configuration from flags and
// environment variables, following the cobra + envOrDefault pattern used
// throughout the rest of this codebase.
package appconfig

import (
	"os"
	"strconv"
	"time"
)

// Config is the complete set of required configuration per the
// specification's "Environment / CLI" section.
type Config struct {
	// Gateway.
	GatewayURL    string
	ClientVersion string
	Platform      string

	// C4 Account Runtime.
	HeartbeatIntervalSec int
	RPCTimeout           time.Duration

	// C6 Rate Limiter.
	ReadCooldown           time.Duration
	WriteCooldown          time.Duration
	GlobalConcurrency      int
	AccountWriteSerialized bool

	// C5 Runtime Manager.
	AutoStartConcurrency int
	StartRetryMaxAttempts int
	StartRetryBaseDelay   time.Duration
	StartRetryMaxDelay    time.Duration

	// Log persistence.
	LogPersistenceEnabled bool
	LogFlushBatchSize     int
	LogFlushIntervalSec   int

	// Process-wide.
	DataDir  string
	LogLevel string
	HTTPAddr string

	// C7 static allow-lists and super-admin users.
	StaticWhitelistUsers  []string
	StaticWhitelistGroups []string
	SuperAdminUsers       []string
}

// Default returns the baseline configuration before flags/env overrides.
func Default() Config {
	return Config{
		GatewayURL:    envOrDefault("FARMRUNNER_GATEWAY_URL", "wss://gateway.example.invalid/ws"),
		ClientVersion: envOrDefault("FARMRUNNER_CLIENT_VERSION", "1.0.0"),
		Platform:      envOrDefault("FARMRUNNER_PLATFORM", "android"),

		HeartbeatIntervalSec: envOrDefaultInt("FARMRUNNER_HEARTBEAT_INTERVAL_SEC", 30),
		RPCTimeout:           envOrDefaultDuration("FARMRUNNER_RPC_TIMEOUT", 10*time.Second),

		ReadCooldown:           envOrDefaultDuration("FARMRUNNER_READ_COOLDOWN", 1*time.Second),
		WriteCooldown:          envOrDefaultDuration("FARMRUNNER_WRITE_COOLDOWN", 2*time.Second),
		GlobalConcurrency:      envOrDefaultInt("FARMRUNNER_GLOBAL_CONCURRENCY", 4),
		AccountWriteSerialized: envOrDefaultBool("FARMRUNNER_ACCOUNT_WRITE_SERIALIZED", true),

		AutoStartConcurrency:  envOrDefaultInt("FARMRUNNER_AUTO_START_CONCURRENCY", 4),
		StartRetryMaxAttempts: envOrDefaultInt("FARMRUNNER_START_RETRY_MAX_ATTEMPTS", 5),
		StartRetryBaseDelay:   envOrDefaultDuration("FARMRUNNER_START_RETRY_BASE_DELAY", 1*time.Second),
		StartRetryMaxDelay:    envOrDefaultDuration("FARMRUNNER_START_RETRY_MAX_DELAY", 60*time.Second),

		LogPersistenceEnabled: envOrDefaultBool("FARMRUNNER_LOG_PERSISTENCE_ENABLED", true),
		LogFlushBatchSize:     envOrDefaultInt("FARMRUNNER_LOG_FLUSH_BATCH_SIZE", 50),
		LogFlushIntervalSec:   envOrDefaultInt("FARMRUNNER_LOG_FLUSH_INTERVAL_SEC", 30),

		DataDir:  envOrDefault("FARMRUNNER_DATA_DIR", "./data"),
		LogLevel: envOrDefault("FARMRUNNER_LOG_LEVEL", "info"),
		HTTPAddr: envOrDefault("FARMRUNNER_HTTP_ADDR", ":8080"),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
