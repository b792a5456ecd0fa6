package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"BarSentinel/internal/config"
	"BarSentinel/internal/feed"
	"BarSentinel/internal/scheduler"
	"BarSentinel/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] BarSentinel starting...")

	// Optional .env for local development; real env vars win.
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] loaded .env")
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	align, err := feed.ParseLabelAlignment(cfg.Feed.LabelAlignment)
	if err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init feed transport
	transport := feed.NewConnManager(cfg.Feed.Host, cfg.Feed.Port)
	log.Printf("[INFO] feed gateway: %s (label alignment: %s)", transport.Addr, align)

	// Init store
	var st store.Store
	if cfg.Database.SQLitePath != "" {
		ss, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite store failed, using noop: %v", err)
			st = store.NewNoopStore()
		} else {
			st = ss
			defer ss.Close()
		}
	} else {
		st = store.NewNoopStore()
	}

	// Init scheduler
	sched := scheduler.New(transport, st, align, scheduleConfig(cfg))
	if err := sched.Start(); err != nil {
		log.Fatalf("[FATAL] start scheduler: %v", err)
	}
	defer sched.Stop()

	// Optional: fetch everything immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing full fetch now")
		go sched.FetchAllNow("")
	}

	log.Println("[INFO] BarSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
}

func scheduleConfig(cfg *config.Config) scheduler.Config {
	days := make([]time.Weekday, 0, len(cfg.Schedule.TradingDays))
	for _, d := range cfg.Schedule.TradingDays {
		days = append(days, time.Weekday(d))
	}
	return scheduler.Config{
		Symbols:     cfg.Schedule.Symbols,
		TradingDays: days,
		DailyHour:   cfg.Schedule.DailyHour,
		DailyMinute: cfg.Schedule.DailyMinute,
		BarCounts: map[string]int{
			feed.Daily.Name:      cfg.Schedule.BarsDaily,
			feed.FifteenMin.Name: cfg.Schedule.Bars15Min,
			feed.ThirtyMin.Name:  cfg.Schedule.Bars30Min,
			feed.OneHour.Name:    cfg.Schedule.Bars1Hour,
			feed.TwoHours.Name:   cfg.Schedule.Bars2Hours,
		},
		InitialBarsDaily: cfg.Schedule.InitialBarsDaily,
		RecurringBars:    cfg.Schedule.RecurringBars,
	}
}
