// Package config loads and saves Guardian's operational configuration:
// persistence paths, HTTP bind address, metrics address, optional EMA
// smoothing overrides, and alert
// destinations. Grounded on the teacher's config/config.go Default/Path/
// Load/Save pattern against a file under the user's config directory.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Config holds Guardian's operational defaults and integrations. Of the
// algorithm tunables, only the two EMA alphas appear here, as optional
// overrides (zero keeps each component's default); scoring weights and
// ring sizes are constructor parameters on the core packages, not config
// fields (spec.md §6 "Tests MUST be able to override these via
// constructor parameters").
type Config struct {
	DataDir     string `json:"data_dir"`
	HTTPAddr    string `json:"http_addr"`
	MetricsAddr string `json:"metrics_addr"`

	BaselineAlpha    float64 `json:"baseline_alpha,omitempty"`
	FingerprintAlpha float64 `json:"fingerprint_alpha,omitempty"`

	Alerts AlertConfig `json:"alerts"`
}

// AlertConfig names the external channels the notify package dispatches
// confirmation requests and Critical-posture transitions to.
type AlertConfig struct {
	Webhook          string `json:"webhook"`
	Command          string `json:"command"`
	Email            string `json:"email"`
	SlackWebhook     string `json:"slack_webhook"`
	TelegramBotToken string `json:"telegram_bot_token"`
	TelegramChatID   string `json:"telegram_chat_id"`
}

// BaselinePath returns the path to the baseline store file under DataDir.
func (c Config) BaselinePath() string { return filepath.Join(c.DataDir, "baselines.json") }

// MemoryPath returns the path to the guardian memory file under DataDir.
func (c Config) MemoryPath() string { return filepath.Join(c.DataDir, "memory.json") }

// AuditPath returns the path to the audit log file under DataDir.
func (c Config) AuditPath() string { return filepath.Join(c.DataDir, "audit.json") }

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		DataDir:     defaultDataDir(),
		HTTPAddr:    "127.0.0.1:8787",
		MetricsAddr: "127.0.0.1:9464",
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "guardian")
}

// Path returns ~/.config/guardian/config.json (or XDG_CONFIG_HOME).
// Returns empty string if the home directory cannot be determined.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // refuse to fall back to /tmp (security risk)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "guardian", "config.json")
}

// Load loads config from disk; returns defaults on error.
func Load(logger *zap.Logger) Config {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := Default()
	p := Path()
	if p == "" {
		return cfg
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warn("config parse error, using defaults", zap.Error(err))
		return Default()
	}
	return cfg
}

// Save writes cfg to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := Path()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
