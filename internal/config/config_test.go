package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load with missing file: %v", err)
	}

	if cfg.Feed.Host != "127.0.0.1" || cfg.Feed.Port != 9100 {
		t.Errorf("feed defaults = %s:%d", cfg.Feed.Host, cfg.Feed.Port)
	}
	if cfg.Feed.LabelAlignment != "start" {
		t.Errorf("label alignment default = %q", cfg.Feed.LabelAlignment)
	}
	if len(cfg.Schedule.Symbols) != 1 || cfg.Schedule.Symbols[0] != "QGC#" {
		t.Errorf("symbol default = %v", cfg.Schedule.Symbols)
	}
	if len(cfg.Schedule.TradingDays) != 5 {
		t.Errorf("trading days default = %v", cfg.Schedule.TradingDays)
	}
	if cfg.Schedule.DailyHour != 19 {
		t.Errorf("daily hour default = %d", cfg.Schedule.DailyHour)
	}
	if cfg.Schedule.BarsDaily != 100 || cfg.Schedule.Bars2Hours != 100 {
		t.Errorf("bar count defaults = %d/%d", cfg.Schedule.BarsDaily, cfg.Schedule.Bars2Hours)
	}
	if cfg.Schedule.RecurringBars != 1 {
		t.Errorf("recurring bars default = %d", cfg.Schedule.RecurringBars)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
feed:
  host: feedhost
  port: 9200
schedule:
  symbols: ["QGC#", "@ES#"]
  daily_hour: 18
  bars_15min: 50
database:
  sqlite_path: /tmp/bars.db
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FEED_PORT", "9300")
	t.Setenv("SYMBOLS", "QGC#, @NQ#")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Feed.Host != "feedhost" {
		t.Errorf("host = %q", cfg.Feed.Host)
	}
	if cfg.Feed.Port != 9300 {
		t.Errorf("env must override file: port = %d", cfg.Feed.Port)
	}
	if len(cfg.Schedule.Symbols) != 2 || cfg.Schedule.Symbols[1] != "@NQ#" {
		t.Errorf("symbols = %v", cfg.Schedule.Symbols)
	}
	if cfg.Schedule.DailyHour != 18 || cfg.Schedule.Bars15Min != 50 {
		t.Errorf("schedule = %+v", cfg.Schedule)
	}
	if cfg.Database.SQLitePath != "/tmp/bars.db" {
		t.Errorf("sqlite path = %q", cfg.Database.SQLitePath)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, _ := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Feed.Host = "" }},
		{"bad port", func(c *Config) { c.Feed.Port = -1 }},
		{"bad alignment", func(c *Config) { c.Feed.LabelAlignment = "middle" }},
		{"no symbols", func(c *Config) { c.Schedule.Symbols = nil }},
		{"bad trading day", func(c *Config) { c.Schedule.TradingDays = []int{7} }},
		{"bad hour", func(c *Config) { c.Schedule.DailyHour = 24 }},
		{"bad minute", func(c *Config) { c.Schedule.DailyMinute = 60 }},
	}
	for _, tt := range tests {
		cfg := valid()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
