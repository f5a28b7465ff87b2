package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "trade"
log_level = "debug"

[feed]
venue_a_ws_url = "wss://a.example.com/ws"
venue_b_ws_url = "wss://b.example.com/ws"
base_reconnect_delay = "2s"

[executor]
notional = 250.0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Mode != "trade" || cfg.LogLevel != "debug" {
		t.Errorf("top-level overrides not applied: %s %s", cfg.Mode, cfg.LogLevel)
	}
	if cfg.Feed.BaseReconnectDelay.Duration != 2*time.Second {
		t.Errorf("duration decode: got %v", cfg.Feed.BaseReconnectDelay.Duration)
	}
	if cfg.Executor.Notional != 250.0 {
		t.Errorf("notional: got %v", cfg.Executor.Notional)
	}
	// Untouched sections keep their defaults.
	if cfg.Feed.HeartbeatInterval.Duration != 10*time.Second {
		t.Errorf("default heartbeat interval lost: %v", cfg.Feed.HeartbeatInterval.Duration)
	}
	if cfg.Executor.PollInterval.Duration != 5*time.Second {
		t.Errorf("default poll interval lost: %v", cfg.Executor.PollInterval.Duration)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfig(t, `
[executor]
notional = 250.0
`)
	t.Setenv("HEDGEBOT_EXECUTOR_NOTIONAL", "75.5")
	t.Setenv("HEDGEBOT_MODE", "trade")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Executor.Notional != 75.5 {
		t.Errorf("env override not applied: %v", cfg.Executor.Notional)
	}
	if cfg.Mode != "trade" {
		t.Errorf("env mode override not applied: %s", cfg.Mode)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Feed.VenueAWsURL = ""
	cfg.Feed.VenueBWsURL = ""
	cfg.Executor.Notional = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	msg := err.Error()
	for _, want := range []string{"unknown mode", "venue_a_ws_url", "venue_b_ws_url", "notional"} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation message missing %q: %s", want, msg)
		}
	}
}

func TestValidateLiveTradingNeedsOrderURLs(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Feed.VenueAWsURL = "wss://a.example.com/ws"
	cfg.Feed.VenueBWsURL = "wss://b.example.com/ws"
	cfg.Executor.DryRun = false

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "order_url") {
		t.Fatalf("expected order_url errors, got %v", err)
	}

	cfg.Executor.VenueAOrderURL = "https://a.example.com"
	cfg.Executor.VenueBOrderURL = "https://b.example.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "123:abc"

	red := RedactedConfig(&cfg)
	if red.Postgres.Password != "***" || red.Notify.TelegramToken != "***" {
		t.Errorf("secrets not redacted: %+v", red.Notify)
	}
	if cfg.Postgres.Password != "hunter2" {
		t.Error("original config must not be mutated")
	}
	if red.Redis.Password != "" {
		t.Error("empty secrets stay empty")
	}
}
