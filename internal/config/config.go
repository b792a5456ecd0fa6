package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Feed struct {
		Host           string `yaml:"host"`
		Port           int    `yaml:"port"`
		LabelAlignment string `yaml:"label_alignment"` // "start" or "end"
	} `yaml:"feed"`
	Schedule struct {
		Symbols     []string `yaml:"symbols"`
		TradingDays []int    `yaml:"trading_days"` // 0=Sunday .. 6=Saturday
		DailyHour   int      `yaml:"daily_hour"`
		DailyMinute int      `yaml:"daily_minute"`

		BarsDaily  int `yaml:"bars_daily"`
		Bars15Min  int `yaml:"bars_15min"`
		Bars30Min  int `yaml:"bars_30min"`
		Bars1Hour  int `yaml:"bars_1hour"`
		Bars2Hours int `yaml:"bars_2hours"`

		// InitialBarsDaily is used for a symbol's first daily load;
		// RecurringBars for steady-state fetches thereafter.
		InitialBarsDaily int `yaml:"initial_bars_daily"`
		RecurringBars    int `yaml:"recurring_bars"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FEED_HOST"); v != "" {
		cfg.Feed.Host = v
	}
	if v := os.Getenv("FEED_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Feed.Port = port
		}
	}
	if v := os.Getenv("FEED_LABEL_ALIGNMENT"); v != "" {
		cfg.Feed.LabelAlignment = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Schedule.Symbols = splitList(v)
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}

	// Defaults
	if cfg.Feed.Host == "" {
		cfg.Feed.Host = "127.0.0.1"
	}
	if cfg.Feed.Port == 0 {
		cfg.Feed.Port = 9100
	}
	if cfg.Feed.LabelAlignment == "" {
		cfg.Feed.LabelAlignment = "start"
	}
	if len(cfg.Schedule.Symbols) == 0 {
		cfg.Schedule.Symbols = []string{"QGC#"}
	}
	if len(cfg.Schedule.TradingDays) == 0 {
		cfg.Schedule.TradingDays = []int{0, 1, 2, 3, 4} // Sun-Thu
	}
	if cfg.Schedule.DailyHour == 0 && cfg.Schedule.DailyMinute == 0 {
		cfg.Schedule.DailyHour = 19 // 7 PM local
	}
	if cfg.Schedule.BarsDaily == 0 {
		cfg.Schedule.BarsDaily = 100
	}
	if cfg.Schedule.Bars15Min == 0 {
		cfg.Schedule.Bars15Min = 100
	}
	if cfg.Schedule.Bars30Min == 0 {
		cfg.Schedule.Bars30Min = 100
	}
	if cfg.Schedule.Bars1Hour == 0 {
		cfg.Schedule.Bars1Hour = 100
	}
	if cfg.Schedule.Bars2Hours == 0 {
		cfg.Schedule.Bars2Hours = 100
	}
	if cfg.Schedule.InitialBarsDaily == 0 {
		cfg.Schedule.InitialBarsDaily = 100
	}
	if cfg.Schedule.RecurringBars == 0 {
		cfg.Schedule.RecurringBars = 1
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/barsentinel.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set and in range.
func (c *Config) Validate() error {
	if c.Feed.Host == "" {
		return fmt.Errorf("feed.host is required")
	}
	if c.Feed.Port <= 0 || c.Feed.Port > 65535 {
		return fmt.Errorf("feed.port must be 1-65535")
	}
	switch strings.ToLower(c.Feed.LabelAlignment) {
	case "start", "end":
	default:
		return fmt.Errorf("feed.label_alignment must be \"start\" or \"end\"")
	}
	if len(c.Schedule.Symbols) == 0 {
		return fmt.Errorf("schedule.symbols is required")
	}
	for _, d := range c.Schedule.TradingDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("schedule.trading_days entries must be 0-6, got %d", d)
		}
	}
	if c.Schedule.DailyHour < 0 || c.Schedule.DailyHour > 23 {
		return fmt.Errorf("schedule.daily_hour must be 0-23")
	}
	if c.Schedule.DailyMinute < 0 || c.Schedule.DailyMinute > 59 {
		return fmt.Errorf("schedule.daily_minute must be 0-59")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
