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
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"tracker": {"data_dir": "/tmp/ct", "site_base_url": "https://lights.example.com"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tracker.DupRadiusMeters != 25 {
		t.Errorf("DupRadiusMeters = %v, want 25", cfg.Tracker.DupRadiusMeters)
	}
	if cfg.Tracker.DupLookbackHours != 72 {
		t.Errorf("DupLookbackHours = %d, want 72", cfg.Tracker.DupLookbackHours)
	}
	if cfg.Tracker.ReportSchedule != "0 17 * * *" {
		t.Errorf("ReportSchedule = %q", cfg.Tracker.ReportSchedule)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.API.Port)
	}
	if got := cfg.DupLookback(); got != 72*time.Hour {
		t.Errorf("DupLookback = %v", got)
	}
	if got := cfg.BackfillBefore(); got != 3*time.Minute {
		t.Errorf("BackfillBefore = %v", got)
	}
	if got := cfg.BackfillAfter(); got != 12*time.Minute {
		t.Errorf("BackfillAfter = %v", got)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `{
		"tracker": {
			"data_dir": "/tmp/ct",
			"dup_radius_meters": 40,
			"dup_lookback_hours": 24,
			"backfill_before_min": 5,
			"backfill_after_min": 20,
			"report_schedule": "30 16 * * *"
		},
		"notifiers": {"groupme": {"bot_id": "abc123"}},
		"api": {"host": "127.0.0.1", "port": 9090, "api_key": "secret"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Tracker.DupRadiusMeters != 40 {
		t.Errorf("DupRadiusMeters = %v, want 40", cfg.Tracker.DupRadiusMeters)
	}
	if cfg.Notifiers.GroupMe == nil || cfg.Notifiers.GroupMe.BotID != "abc123" {
		t.Errorf("GroupMe = %+v", cfg.Notifiers.GroupMe)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.API.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	path := writeConfig(t, `{
		"tracker": {"report_schedule": "not a schedule"},
		"notifiers": {"slack": {"bot_token": ""}}
	}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"tracker.data_dir", "tracker.report_schedule", "notifiers.slack.bot_token", "notifiers.slack.channel"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error missing %q: %s", want, msg)
		}
	}
}

func TestValidateBadSchedule(t *testing.T) {
	path := writeConfig(t, `{
		"tracker": {"data_dir": "/tmp/ct", "report_schedule": "61 25 * * *"}
	}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid cron schedule")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CT_DATA_DIR", "/srv/ct")
	t.Setenv("CT_SITE_BASE_URL", "https://lights.example.com")
	t.Setenv("CT_DUP_RADIUS_METERS", "30.5")
	t.Setenv("CT_API_PORT", "9000")
	t.Setenv("CT_GROUPME_BOT_ID", "bot42")
	t.Setenv("CT_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("CT_TELEGRAM_CHAT_ID", "-100123")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Tracker.DataDir != "/srv/ct" {
		t.Errorf("DataDir = %q", cfg.Tracker.DataDir)
	}
	if cfg.Tracker.DupRadiusMeters != 30.5 {
		t.Errorf("DupRadiusMeters = %v", cfg.Tracker.DupRadiusMeters)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("Port = %d", cfg.API.Port)
	}
	if cfg.Notifiers.GroupMe == nil || cfg.Notifiers.GroupMe.BotID != "bot42" {
		t.Errorf("GroupMe = %+v", cfg.Notifiers.GroupMe)
	}
	if cfg.Notifiers.Telegram == nil || cfg.Notifiers.Telegram.ChatID != -100123 {
		t.Errorf("Telegram = %+v", cfg.Notifiers.Telegram)
	}
}

func TestLoadFromEnvBadChatID(t *testing.T) {
	t.Setenv("CT_TELEGRAM_TOKEN", "tg-token")
	t.Setenv("CT_TELEGRAM_CHAT_ID", "not-a-number")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for bad chat id")
	}
}
