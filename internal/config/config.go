// Package config defines the top-level configuration for the hedge bot and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by HEDGEBOT_* environment variables.
type Config struct {
	Registry RegistryConfig `toml:"registry"`
	Feed     FeedConfig     `toml:"feed"`
	Book     BookConfig     `toml:"book"`
	Executor ExecutorConfig `toml:"executor"`
	Timing   TimingConfig   `toml:"timing"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// RegistryConfig locates the instrument-pair registry.
type RegistryConfig struct {
	PairsFile string `toml:"pairs_file"`
}

// FeedConfig holds streaming endpoints and the reconnect policy shared by
// both venue connections.
type FeedConfig struct {
	VenueAWsURL string `toml:"venue_a_ws_url"`
	VenueBWsURL string `toml:"venue_b_ws_url"`

	HeartbeatInterval    duration `toml:"heartbeat_interval"`
	HeartbeatFailLimit   int      `toml:"heartbeat_fail_limit"`
	MaxReconnectAttempts int      `toml:"max_reconnect_attempts"`
	BaseReconnectDelay   duration `toml:"base_reconnect_delay"`
}

// BookConfig holds order-book store parameters.
type BookConfig struct {
	StalenessHorizon duration `toml:"staleness_horizon"`
}

// ExecutorConfig holds execution parameters and venue order endpoints.
type ExecutorConfig struct {
	Notional     float64  `toml:"notional"`
	PollInterval duration `toml:"poll_interval"`
	MaxFillWait  duration `toml:"max_fill_wait"`
	ScanInterval duration `toml:"scan_interval"`

	VenueAOrderURL string `toml:"venue_a_order_url"`
	VenueBOrderURL string `toml:"venue_b_order_url"`
	VenueAAPIKey   string `toml:"venue_a_api_key"`
	VenueBAPIKey   string `toml:"venue_b_api_key"`

	// DryRun routes orders to an in-process simulator instead of the venues.
	DryRun bool `toml:"dry_run"`
}

// TimingConfig bounds the in-memory timing session history.
type TimingConfig struct {
	MaxSessions int `toml:"max_sessions"`
}

// PostgresConfig holds PostgreSQL connection parameters for the session
// archive. When Enabled is false the archive is skipped entirely.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the quote mirror and
// event stream. When Enabled is false both are skipped.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5s", "300s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "10s" or "5m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Registry: RegistryConfig{
			PairsFile: "pairs.json",
		},
		Feed: FeedConfig{
			HeartbeatInterval:    duration{10 * time.Second},
			HeartbeatFailLimit:   3,
			MaxReconnectAttempts: 5,
			BaseReconnectDelay:   duration{5 * time.Second},
		},
		Book: BookConfig{
			StalenessHorizon: duration{10 * time.Second},
		},
		Executor: ExecutorConfig{
			Notional:     100.0,
			PollInterval: duration{5 * time.Second},
			MaxFillWait:  duration{300 * time.Second},
			ScanInterval: duration{time.Second},
			DryRun:       true,
		},
		Timing: TimingConfig{
			MaxSessions: 500,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "hedgebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "session_done", "unhedged_open", "feed_fatal"},
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Registry
	if strings.TrimSpace(c.Registry.PairsFile) == "" {
		errs = append(errs, "registry: pairs_file must not be empty")
	}

	// Feed
	if c.Feed.VenueAWsURL == "" {
		errs = append(errs, "feed: venue_a_ws_url must not be empty")
	}
	if c.Feed.VenueBWsURL == "" {
		errs = append(errs, "feed: venue_b_ws_url must not be empty")
	}
	if c.Feed.HeartbeatInterval.Duration <= 0 {
		errs = append(errs, "feed: heartbeat_interval must be > 0")
	}
	if c.Feed.HeartbeatFailLimit < 1 {
		errs = append(errs, "feed: heartbeat_fail_limit must be >= 1")
	}
	if c.Feed.MaxReconnectAttempts < 1 {
		errs = append(errs, "feed: max_reconnect_attempts must be >= 1")
	}
	if c.Feed.BaseReconnectDelay.Duration <= 0 {
		errs = append(errs, "feed: base_reconnect_delay must be > 0")
	}

	// Book
	if c.Book.StalenessHorizon.Duration <= 0 {
		errs = append(errs, "book: staleness_horizon must be > 0")
	}

	// Executor
	if c.Executor.Notional <= 0 {
		errs = append(errs, "executor: notional must be > 0")
	}
	if c.Executor.PollInterval.Duration <= 0 {
		errs = append(errs, "executor: poll_interval must be > 0")
	}
	if c.Executor.MaxFillWait.Duration < c.Executor.PollInterval.Duration {
		errs = append(errs, "executor: max_fill_wait must be >= poll_interval")
	}
	if c.Executor.ScanInterval.Duration <= 0 {
		errs = append(errs, "executor: scan_interval must be > 0")
	}
	if c.Mode == "trade" && !c.Executor.DryRun {
		if c.Executor.VenueAOrderURL == "" {
			errs = append(errs, "executor: venue_a_order_url is required for live trading")
		}
		if c.Executor.VenueBOrderURL == "" {
			errs = append(errs, "executor: venue_b_order_url is required for live trading")
		}
	}

	// Timing
	if c.Timing.MaxSessions < 1 {
		errs = append(errs, "timing: max_sessions must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Telegram token and chat ID must be set together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
