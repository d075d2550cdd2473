package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the top-level christmastech configuration.
type Config struct {
	Tracker   TrackerConfig  `json:"tracker"`
	Notifiers NotifierConfig `json:"notifiers"`
	API       APIConfig      `json:"api"`
}

// TrackerConfig holds ticket tracking settings.
type TrackerConfig struct {
	DataDir           string  `json:"data_dir"`
	SiteBaseURL       string  `json:"site_base_url"`
	DupRadiusMeters   float64 `json:"dup_radius_meters"`
	DupLookbackHours  int     `json:"dup_lookback_hours"`
	BackfillBeforeMin int     `json:"backfill_before_min"`
	BackfillAfterMin  int     `json:"backfill_after_min"`
	BackfillSecret    string  `json:"backfill_secret,omitempty"`
	BackfillSchedule  string  `json:"backfill_schedule,omitempty"` // empty = no periodic sweep
	ReportSchedule    string  `json:"report_schedule"`
}

// NotifierConfig holds settings for crew chat notifiers.
type NotifierConfig struct {
	GroupMe  *GroupMeConfig  `json:"groupme,omitempty"`
	Slack    *SlackConfig    `json:"slack,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

// GroupMeConfig holds GroupMe bot settings.
type GroupMeConfig struct {
	BotID   string `json:"bot_id"`
	PostURL string `json:"post_url,omitempty"`
}

// SlackConfig holds Slack bot settings.
type SlackConfig struct {
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// APIConfig holds REST API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key,omitempty"`
}

// Defaults matching the hosted deployment.
const (
	DefaultDupRadiusMeters   = 25.0
	DefaultDupLookbackHours  = 72
	DefaultBackfillBeforeMin = 3
	DefaultBackfillAfterMin  = 12
	DefaultReportSchedule    = "0 17 * * *"
)

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with CT_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Tracker: TrackerConfig{
			DataDir:           getenv("CT_DATA_DIR", "/data"),
			SiteBaseURL:       os.Getenv("CT_SITE_BASE_URL"),
			DupRadiusMeters:   getenvFloat("CT_DUP_RADIUS_METERS", DefaultDupRadiusMeters),
			DupLookbackHours:  getenvInt("CT_DUP_LOOKBACK_HOURS", DefaultDupLookbackHours),
			BackfillBeforeMin: getenvInt("CT_BACKFILL_BEFORE_MIN", DefaultBackfillBeforeMin),
			BackfillAfterMin:  getenvInt("CT_BACKFILL_AFTER_MIN", DefaultBackfillAfterMin),
			BackfillSecret:    os.Getenv("CT_BACKFILL_SECRET"),
			BackfillSchedule:  os.Getenv("CT_BACKFILL_SCHEDULE"),
			ReportSchedule:    getenv("CT_REPORT_SCHEDULE", DefaultReportSchedule),
		},
		API: APIConfig{
			Host: getenv("CT_API_HOST", "0.0.0.0"),
			Port: getenvInt("CT_API_PORT", 8080),
			Key:  os.Getenv("CT_API_KEY"),
		},
	}

	if botID := os.Getenv("CT_GROUPME_BOT_ID"); botID != "" {
		cfg.Notifiers.GroupMe = &GroupMeConfig{
			BotID:   botID,
			PostURL: os.Getenv("CT_GROUPME_POST_URL"),
		}
	}
	if token := os.Getenv("CT_SLACK_BOT_TOKEN"); token != "" {
		cfg.Notifiers.Slack = &SlackConfig{
			BotToken: token,
			Channel:  os.Getenv("CT_SLACK_CHANNEL"),
		}
	}
	if token := os.Getenv("CT_TELEGRAM_TOKEN"); token != "" {
		chatID, err := strconv.ParseInt(os.Getenv("CT_TELEGRAM_CHAT_ID"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: CT_TELEGRAM_CHAT_ID: invalid integer %q", os.Getenv("CT_TELEGRAM_CHAT_ID"))
		}
		cfg.Notifiers.Telegram = &TelegramConfig{Token: token, ChatID: chatID}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Tracker.DupRadiusMeters == 0 {
		c.Tracker.DupRadiusMeters = DefaultDupRadiusMeters
	}
	if c.Tracker.DupLookbackHours == 0 {
		c.Tracker.DupLookbackHours = DefaultDupLookbackHours
	}
	if c.Tracker.BackfillBeforeMin == 0 {
		c.Tracker.BackfillBeforeMin = DefaultBackfillBeforeMin
	}
	if c.Tracker.BackfillAfterMin == 0 {
		c.Tracker.BackfillAfterMin = DefaultBackfillAfterMin
	}
	if c.Tracker.ReportSchedule == "" {
		c.Tracker.ReportSchedule = DefaultReportSchedule
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Tracker.DataDir == "" {
		errs = append(errs, "tracker.data_dir is required")
	}
	if c.Tracker.DupRadiusMeters <= 0 {
		errs = append(errs, "tracker.dup_radius_meters must be positive")
	}
	if c.Tracker.DupLookbackHours <= 0 {
		errs = append(errs, "tracker.dup_lookback_hours must be positive")
	}
	if c.Tracker.BackfillBeforeMin < 0 {
		errs = append(errs, "tracker.backfill_before_min must not be negative")
	}
	if c.Tracker.BackfillAfterMin < 0 {
		errs = append(errs, "tracker.backfill_after_min must not be negative")
	}
	if _, err := cron.ParseStandard(c.Tracker.ReportSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("tracker.report_schedule: %v", err))
	}
	if c.Tracker.BackfillSchedule != "" {
		if _, err := cron.ParseStandard(c.Tracker.BackfillSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("tracker.backfill_schedule: %v", err))
		}
	}

	if c.Notifiers.GroupMe != nil && c.Notifiers.GroupMe.BotID == "" {
		errs = append(errs, "notifiers.groupme.bot_id is required")
	}
	if s := c.Notifiers.Slack; s != nil {
		if s.BotToken == "" {
			errs = append(errs, "notifiers.slack.bot_token is required")
		}
		if s.Channel == "" {
			errs = append(errs, "notifiers.slack.channel is required")
		}
	}
	if t := c.Notifiers.Telegram; t != nil {
		if t.Token == "" {
			errs = append(errs, "notifiers.telegram.token is required")
		}
		if t.ChatID == 0 {
			errs = append(errs, "notifiers.telegram.chat_id is required")
		}
	}

	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be in 1..65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// DupLookback returns the duplicate lookback window as a duration.
func (c *Config) DupLookback() time.Duration {
	return time.Duration(c.Tracker.DupLookbackHours) * time.Hour
}

// BackfillBefore returns the pre-creation half of the backfill window.
func (c *Config) BackfillBefore() time.Duration {
	return time.Duration(c.Tracker.BackfillBeforeMin) * time.Minute
}

// BackfillAfter returns the post-creation half of the backfill window.
func (c *Config) BackfillAfter() time.Duration {
	return time.Duration(c.Tracker.BackfillAfterMin) * time.Minute
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
