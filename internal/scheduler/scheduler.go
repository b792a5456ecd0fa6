package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"BarSentinel/internal/feed"
	"BarSentinel/internal/model"
	"BarSentinel/internal/store"

	"github.com/robfig/cron/v3"
)

// Config drives the scheduler. It is read on every loop tick, so updates
// via SetConfig take effect on the next minute boundary.
type Config struct {
	Symbols     []string
	TradingDays []time.Weekday
	DailyHour   int
	DailyMinute int

	// BarCounts maps timeframe name to the number of bars requested per
	// fetch (manual operations and recovery use these directly).
	BarCounts map[string]int

	// InitialBarsDaily is requested the first time a symbol's daily history
	// is loaded; RecurringBars for scheduled daily fetches thereafter.
	InitialBarsDaily int
	RecurringBars    int
}

func (c Config) barsFor(tf feed.Timeframe) int {
	if n, ok := c.BarCounts[tf.Name]; ok && n > 0 {
		return n
	}
	return 100
}

func (c Config) isTradingDay(t time.Time) bool {
	for _, d := range c.TradingDays {
		if t.Weekday() == d {
			return true
		}
	}
	return false
}

func (c Config) atOrAfterDailyTime(t time.Time) bool {
	if t.Hour() != c.DailyHour {
		return t.Hour() > c.DailyHour
	}
	return t.Minute() >= c.DailyMinute
}

// Fetcher is the per-timeframe fetch contract the scheduler drives.
type Fetcher interface {
	Timeframe() feed.Timeframe
	Fetch(symbol string, barCount int) ([]model.Bar, bool)
}

// MissingDataFunc decides whether a symbol+timeframe needs a recovery fetch
// for data at or after the given time.
type MissingDataFunc func(symbol string, tf feed.Timeframe, since time.Time) bool

// AlwaysMissing is the conservative predicate: every recovery pass
// re-fetches everything regardless of what the store already holds.
func AlwaysMissing(string, feed.Timeframe, time.Time) bool { return true }

// Scheduler owns the background fetch loop: once per minute it evaluates
// the trading calendar and the per-timeframe elapsed-time gates, triggers
// the due fetches, persists their bars, and records a bounded run history.
type Scheduler struct {
	mu       sync.Mutex
	cfg      Config
	history  []FetchStatus
	lastRun  map[string]time.Time
	running  bool
	stopCh   chan struct{}
	done     chan struct{}

	transport feed.Transport
	store     store.Store
	fetchers  map[string]Fetcher
	missing   MissingDataFunc

	cron *cron.Cron
	now  func() time.Time // overridable in tests
	tick time.Duration
}

// New creates a scheduler with one fetcher per supported timeframe. The
// default missing-data predicate asks the store whether bars already exist;
// use SetMissingDataCheck(AlwaysMissing) for the re-fetch-everything policy.
func New(transport feed.Transport, st store.Store, align feed.LabelAlignment, cfg Config) *Scheduler {
	s := &Scheduler{
		cfg:       cfg,
		lastRun:   make(map[string]time.Time),
		transport: transport,
		store:     st,
		fetchers:  make(map[string]Fetcher),
		cron:      cron.New(cron.WithSeconds()),
		now:       time.Now,
		tick:      time.Minute,
	}
	for _, tf := range feed.Timeframes() {
		s.fetchers[tf.Name] = feed.NewHistoryFetcher(transport, tf, align)
	}
	s.missing = s.storeMissing

	// Periodic operator-visible summaries.
	s.cron.AddFunc("0 0 * * * *", s.logFetchSummary)
	s.cron.AddFunc("0 5 0 * * *", func() { log.Printf("[INFO] %s", s.StatusSummary()) })

	return s
}

// SetConfig replaces the schedule configuration.
func (s *Scheduler) SetConfig(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	log.Printf("[INFO] configuration updated: %d symbols, %d trading days",
		len(cfg.Symbols), len(cfg.TradingDays))
}

// Config returns a copy of the current configuration.
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configLocked()
}

func (s *Scheduler) configLocked() Config {
	cfg := s.cfg
	cfg.Symbols = append([]string(nil), s.cfg.Symbols...)
	cfg.TradingDays = append([]time.Weekday(nil), s.cfg.TradingDays...)
	counts := make(map[string]int, len(s.cfg.BarCounts))
	for k, v := range s.cfg.BarCounts {
		counts[k] = v
	}
	cfg.BarCounts = counts
	return cfg
}

// AddSymbol adds a symbol to the configured set if not already present.
func (s *Scheduler) AddSymbol(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range s.cfg.Symbols {
		if sym == symbol {
			return
		}
	}
	s.cfg.Symbols = append(s.cfg.Symbols, symbol)
	log.Printf("[INFO] added symbol: %s", symbol)
}

// RemoveSymbol removes a symbol from the configured set.
func (s *Scheduler) RemoveSymbol(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sym := range s.cfg.Symbols {
		if sym == symbol {
			s.cfg.Symbols = append(s.cfg.Symbols[:i], s.cfg.Symbols[i+1:]...)
			log.Printf("[INFO] removed symbol: %s", symbol)
			return
		}
	}
}

// SetMissingDataCheck replaces the recovery predicate.
func (s *Scheduler) SetMissingDataCheck(fn MissingDataFunc) {
	s.mu.Lock()
	s.missing = fn
	s.mu.Unlock()
}

// storeMissing is the default predicate: data counts as missing when the
// store has no bar for the symbol+timeframe at or after the cutoff. Errors
// err on the side of re-fetching.
func (s *Scheduler) storeMissing(symbol string, tf feed.Timeframe, since time.Time) bool {
	has, err := s.store.HasBarSince(symbol, tf, since)
	if err != nil {
		log.Printf("[WARN] missing-data check for %s %s: %v", symbol, tf.Name, err)
		return true
	}
	return !has
}

// Start validates that the transport and the store are ready, then spawns
// the background loop. Returns an error naming the unready collaborator, or
// if the scheduler is already running.
func (s *Scheduler) Start() error {
	if s.transport == nil || !s.transport.IsReady() {
		return fmt.Errorf("feed transport not ready")
	}
	if s.store == nil || !s.store.IsReady() {
		return fmt.Errorf("store not ready")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.seedGatesLocked(s.now())
	s.mu.Unlock()

	go s.loop()
	s.cron.Start()

	log.Printf("[INFO] scheduler started, monitoring %d symbols, next daily slot %s",
		len(s.Config().Symbols), s.NextDailySchedule().Format("2006-01-02 15:04:05"))
	return nil
}

// Stop signals the loop to exit and waits for it. An in-progress fetch is
// allowed to finish; only the next iteration is prevented. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	s.cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// IsRunning reports whether the background loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// seedGatesLocked backdates every gate so the first eligible tick fires all
// of them.
func (s *Scheduler) seedGatesLocked(now time.Time) {
	for _, tf := range feed.Timeframes() {
		s.lastRun[tf.Name] = now.Add(-(tf.PollEvery + time.Minute))
	}
}

func (s *Scheduler) loop() {
	defer close(s.done)
	log.Println("[INFO] scheduler loop started")

	// One-shot recovery of anything missed in the prior 24 hours.
	s.CheckAndRecoverToday()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			log.Println("[INFO] scheduler loop ended")
			return
		case <-ticker.C:
			s.runCycle()
		}
	}
}

// runCycle is one minute tick. A panicking fetch never kills the loop.
func (s *Scheduler) runCycle() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[ERROR] fetch cycle panic: %v", r)
		}
	}()
	s.evaluateGates(s.now())
	s.pruneHistory()
}

// evaluateGates checks the trading calendar and all five elapsed-time gates
// independently; any gate whose interval has elapsed triggers that
// timeframe's fetch for every configured symbol.
func (s *Scheduler) evaluateGates(now time.Time) {
	cfg := s.Config()

	if !cfg.isTradingDay(now) || !cfg.atOrAfterDailyTime(now) {
		return
	}

	for _, tf := range feed.Timeframes() {
		s.mu.Lock()
		last := s.lastRun[tf.Name]
		s.mu.Unlock()

		if now.Sub(last) < tf.PollEvery {
			continue
		}

		log.Printf("[INFO] %s gate elapsed, fetching %d symbols", tf.Name, len(cfg.Symbols))
		for _, symbol := range cfg.Symbols {
			s.executeFetch(tf, symbol, s.scheduledBarCount(symbol, tf, cfg))
		}

		s.mu.Lock()
		s.lastRun[tf.Name] = now
		s.mu.Unlock()
	}
}

// scheduledBarCount sizes a scheduled fetch: a symbol's first daily load
// pulls the full initial history, later scheduled daily fetches only the
// recent bars. Intraday fetches always use the configured count, since the
// start-label correction consumes the leading rows.
func (s *Scheduler) scheduledBarCount(symbol string, tf feed.Timeframe, cfg Config) int {
	if !tf.IsDaily() {
		return cfg.barsFor(tf)
	}
	has, err := s.store.HasBarSince(symbol, tf, time.Time{})
	if err != nil || !has {
		if cfg.InitialBarsDaily > 0 {
			return cfg.InitialBarsDaily
		}
		return cfg.barsFor(tf)
	}
	if cfg.RecurringBars > 0 {
		return cfg.RecurringBars
	}
	return cfg.barsFor(tf)
}

// executeFetch runs one fetch-and-persist for a (timeframe, symbol) pair
// and records a FetchStatus regardless of outcome.
func (s *Scheduler) executeFetch(tf feed.Timeframe, symbol string, barCount int) bool {
	now := s.now()
	status := FetchStatus{
		Timeframe:     tf.Name,
		Symbol:        symbol,
		ScheduledTime: now,
		ActualTime:    now,
	}

	fetcher, ok := s.fetchers[tf.Name]
	if !ok {
		status.ErrorMessage = "no fetcher for timeframe " + tf.Name
		s.recordStatus(status)
		return false
	}

	bars, ok := fetcher.Fetch(symbol, barCount)
	if !ok {
		status.ErrorMessage = "feed fetch failed"
		log.Printf("[ERROR] %s fetch failed for %s", tf.Name, symbol)
		s.recordStatus(status)
		return false
	}

	status.BarsFetched = len(bars)
	if failed := s.saveBars(symbol, tf, bars); failed > 0 {
		status.ErrorMessage = fmt.Sprintf("%d of %d bars failed to persist", failed, len(bars))
		log.Printf("[ERROR] %s save failed for %s: %s", tf.Name, symbol, status.ErrorMessage)
	} else {
		status.Successful = true
		log.Printf("[INFO] %s fetch completed for %s: %d bars", tf.Name, symbol, len(bars))
	}

	s.recordStatus(status)
	return status.Successful
}

// saveBars upserts a batch; a failing bar is counted but does not abort the
// rest of the batch.
func (s *Scheduler) saveBars(symbol string, tf feed.Timeframe, bars []model.Bar) int {
	failed := 0
	for _, bar := range bars {
		if err := s.store.UpsertBar(symbol, tf, bar); err != nil {
			failed++
			log.Printf("[WARN] upsert %s %s %s: %v", symbol, tf.Name, bar.DateTime(), err)
		}
	}
	return failed
}

// FetchAllNow synchronously fetches every timeframe for the given symbol,
// or for all configured symbols when symbol is empty.
func (s *Scheduler) FetchAllNow(symbol string) bool {
	cfg := s.Config()
	symbols := s.symbolsFor(symbol, cfg)
	log.Printf("[INFO] manual fetch-all for %d symbols", len(symbols))

	ok := true
	for _, sym := range symbols {
		for _, tf := range feed.Timeframes() {
			if !s.executeFetch(tf, sym, cfg.barsFor(tf)) {
				ok = false
			}
		}
	}
	return ok
}

// FetchDailyNow synchronously fetches daily bars.
func (s *Scheduler) FetchDailyNow(symbol string) bool {
	cfg := s.Config()
	ok := true
	for _, sym := range s.symbolsFor(symbol, cfg) {
		if !s.executeFetch(feed.Daily, sym, cfg.barsFor(feed.Daily)) {
			ok = false
		}
	}
	return ok
}

// FetchIntradayNow synchronously fetches one intraday timeframe by name.
func (s *Scheduler) FetchIntradayNow(timeframe, symbol string) bool {
	tf, err := feed.ParseTimeframe(timeframe)
	if err != nil || tf.IsDaily() {
		log.Printf("[ERROR] manual intraday fetch: invalid timeframe %q", timeframe)
		return false
	}

	cfg := s.Config()
	ok := true
	for _, sym := range s.symbolsFor(symbol, cfg) {
		if !s.executeFetch(tf, sym, cfg.barsFor(tf)) {
			ok = false
		}
	}
	return ok
}

func (s *Scheduler) symbolsFor(symbol string, cfg Config) []string {
	if symbol == "" {
		return cfg.Symbols
	}
	return []string{symbol}
}

// CheckAndRecoverToday scans the prior 24 hours for missing data and
// re-fetches whatever the predicate flags.
func (s *Scheduler) CheckAndRecoverToday() bool {
	now := s.now()
	return s.RecoverMissingData(now.Add(-24*time.Hour), now)
}

// RecoverMissingData re-fetches every (symbol, timeframe) pair whose data
// the missing-data predicate reports absent for the window start.
func (s *Scheduler) RecoverMissingData(from, to time.Time) bool {
	log.Printf("[INFO] recovery pass %s .. %s",
		from.Format("2006-01-02 15:04:05"), to.Format("2006-01-02 15:04:05"))

	cfg := s.Config()
	s.mu.Lock()
	missing := s.missing
	s.mu.Unlock()

	ok := true
	for _, symbol := range cfg.Symbols {
		for _, tf := range feed.Timeframes() {
			if !missing(symbol, tf, from) {
				continue
			}
			log.Printf("[INFO] missing %s %s data, recovering", symbol, tf.Name)
			if !s.executeFetch(tf, symbol, cfg.barsFor(tf)) {
				ok = false
			}
		}
	}
	return ok
}
