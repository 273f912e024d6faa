package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/hyperadar/internal/logging"
	"github.com/elonfeng/hyperadar/pkg/hype"
	"github.com/elonfeng/hyperadar/pkg/interact"
	"github.com/elonfeng/hyperadar/pkg/layout"
	"github.com/elonfeng/hyperadar/pkg/token"
	"github.com/elonfeng/hyperadar/pkg/trend"
)

// Config is the root configuration.
type Config struct {
	Source   SourceConfig            `yaml:"source"`
	Schedule ScheduleConfig          `yaml:"schedule"`
	Scoring  hype.Config             `yaml:"scoring"`
	Layout   layout.Config           `yaml:"layout"`
	Viewport interact.ViewportConfig `yaml:"viewport"`
	Trend    trend.Options           `yaml:"trend"`
	Alerts   AlertsConfig            `yaml:"alerts"`
	Server   ServerConfig            `yaml:"server"`
	Log      logging.Config          `yaml:"log"`
}

// SourceConfig configures the upstream aggregator.
type SourceConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Chain       string  `yaml:"chain"`
	MaxTokens   int     `yaml:"max_tokens"`
	RPS         float64 `yaml:"rps"`
	Burst       int     `yaml:"burst"`
	Concurrency int     `yaml:"concurrency"`
	Timeout     string  `yaml:"timeout"`

	// SnapshotFile replays a saved snapshot instead of calling the API.
	SnapshotFile string `yaml:"snapshot_file"`
}

// ParseTimeout returns the request timeout as time.Duration.
func (s SourceConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// ScheduleConfig configures the refresh interval.
type ScheduleConfig struct {
	RefreshInterval string `yaml:"refresh_interval"`
}

// ParseRefreshInterval returns the refresh interval as time.Duration.
func (s ScheduleConfig) ParseRefreshInterval() time.Duration {
	d, err := time.ParseDuration(s.RefreshInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool     `yaml:"enabled"`
	URL     string   `yaml:"url"`
	Secret  string   `yaml:"secret"`
	Kinds   []string `yaml:"kinds"` // hot, selection; empty means both
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port             int      `yaml:"port"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	MetricsNamespace string   `yaml:"metrics_namespace"`
	WriteBuffer      int      `yaml:"write_buffer"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:     "https://api.dexscreener.com",
			Chain:       hype.DefaultChain,
			MaxTokens:   300,
			RPS:         4,
			Burst:       2,
			Concurrency: 4,
			Timeout:     "15s",
		},
		Schedule: ScheduleConfig{RefreshInterval: "1m"},
		Scoring:  hype.DefaultConfig(),
		Layout:   layout.DefaultConfig(),
		Viewport: interact.DefaultViewportConfig(),
		Trend:    trend.DefaultOptions(),
		Alerts:   AlertsConfig{},
		Server: ServerConfig{
			Port:             8080,
			MetricsNamespace: "hyperadar",
			WriteBuffer:      16,
		},
		Log: logging.DefaultConfig(),
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the scoring section and rejects unusable values.
func (c *Config) Validate() error {
	tf, err := token.ParseTimeframe(string(c.Scoring.Timeframe))
	if err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	c.Scoring.Timeframe = tf
	c.Scoring.Limit = hype.ClampLimit(c.Scoring.Limit)
	if c.Scoring.Chain == "" {
		c.Scoring.Chain = c.Source.Chain
	}
	if c.Scoring.MinLiquidity < 0 {
		return fmt.Errorf("scoring: min_liquidity must not be negative")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	for _, k := range c.Alerts.Webhook.Kinds {
		if k != "hot" && k != "selection" {
			return fmt.Errorf("alerts.webhook: unknown kind %q", k)
		}
	}
	return nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HYPERADAR_BASE_URL"); v != "" {
		cfg.Source.BaseURL = v
	}
	if v := os.Getenv("HYPERADAR_CHAIN"); v != "" {
		cfg.Source.Chain = v
		cfg.Scoring.Chain = v
	}
	if v := os.Getenv("HYPERADAR_SNAPSHOT_FILE"); v != "" {
		cfg.Source.SnapshotFile = v
	}
	if v := os.Getenv("HYPERADAR_REFRESH_INTERVAL"); v != "" {
		cfg.Schedule.RefreshInterval = v
	}
	if v := os.Getenv("HYPERADAR_TIMEFRAME"); v != "" {
		cfg.Scoring.Timeframe = token.Timeframe(strings.TrimSpace(v))
	}
	if v := os.Getenv("HYPERADAR_MIN_LIQUIDITY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("HYPERADAR_MIN_LIQUIDITY: %w", err)
		}
		cfg.Scoring.MinLiquidity = f
	}
	if v := os.Getenv("HYPERADAR_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HYPERADAR_PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("HYPERADAR_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
		cfg.Alerts.Webhook.Enabled = true
	}
	if v := os.Getenv("HYPERADAR_WEBHOOK_SECRET"); v != "" {
		cfg.Alerts.Webhook.Secret = v
	}
	return nil
}
