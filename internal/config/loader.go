package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies HEDGEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known HEDGEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Registry ──
	setStr(&cfg.Registry.PairsFile, "HEDGEBOT_REGISTRY_PAIRS_FILE")

	// ── Feed ──
	setStr(&cfg.Feed.VenueAWsURL, "HEDGEBOT_FEED_VENUE_A_WS_URL")
	setStr(&cfg.Feed.VenueBWsURL, "HEDGEBOT_FEED_VENUE_B_WS_URL")
	setDuration(&cfg.Feed.HeartbeatInterval, "HEDGEBOT_FEED_HEARTBEAT_INTERVAL")
	setInt(&cfg.Feed.HeartbeatFailLimit, "HEDGEBOT_FEED_HEARTBEAT_FAIL_LIMIT")
	setInt(&cfg.Feed.MaxReconnectAttempts, "HEDGEBOT_FEED_MAX_RECONNECT_ATTEMPTS")
	setDuration(&cfg.Feed.BaseReconnectDelay, "HEDGEBOT_FEED_BASE_RECONNECT_DELAY")

	// ── Book ──
	setDuration(&cfg.Book.StalenessHorizon, "HEDGEBOT_BOOK_STALENESS_HORIZON")

	// ── Executor ──
	setFloat64(&cfg.Executor.Notional, "HEDGEBOT_EXECUTOR_NOTIONAL")
	setDuration(&cfg.Executor.PollInterval, "HEDGEBOT_EXECUTOR_POLL_INTERVAL")
	setDuration(&cfg.Executor.MaxFillWait, "HEDGEBOT_EXECUTOR_MAX_FILL_WAIT")
	setDuration(&cfg.Executor.ScanInterval, "HEDGEBOT_EXECUTOR_SCAN_INTERVAL")
	setStr(&cfg.Executor.VenueAOrderURL, "HEDGEBOT_EXECUTOR_VENUE_A_ORDER_URL")
	setStr(&cfg.Executor.VenueBOrderURL, "HEDGEBOT_EXECUTOR_VENUE_B_ORDER_URL")
	setStr(&cfg.Executor.VenueAAPIKey, "HEDGEBOT_EXECUTOR_VENUE_A_API_KEY")
	setStr(&cfg.Executor.VenueBAPIKey, "HEDGEBOT_EXECUTOR_VENUE_B_API_KEY")
	setBool(&cfg.Executor.DryRun, "HEDGEBOT_EXECUTOR_DRY_RUN")

	// ── Timing ──
	setInt(&cfg.Timing.MaxSessions, "HEDGEBOT_TIMING_MAX_SESSIONS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "HEDGEBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.Host, "HEDGEBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "HEDGEBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "HEDGEBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "HEDGEBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "HEDGEBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "HEDGEBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "HEDGEBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "HEDGEBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "HEDGEBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "HEDGEBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "HEDGEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "HEDGEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "HEDGEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "HEDGEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "HEDGEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "HEDGEBOT_REDIS_TLS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "HEDGEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "HEDGEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "HEDGEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "HEDGEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "HEDGEBOT_MODE")
	setStr(&cfg.LogLevel, "HEDGEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
