package scheduler

import (
	"fmt"
	"log"
	"strings"
	"time"
)

// FetchStatus records the outcome of one fetch attempt, manual or
// scheduled. Statuses live only in the scheduler's bounded in-memory
// history; they are never persisted.
type FetchStatus struct {
	Timeframe     string
	Symbol        string
	ScheduledTime time.Time
	ActualTime    time.Time
	Successful    bool
	BarsFetched   int
	ErrorMessage  string
}

// historyWindow bounds the in-memory run history.
const historyWindow = 168 * time.Hour

func (s *Scheduler) recordStatus(status FetchStatus) {
	s.mu.Lock()
	s.history = append(s.history, status)
	s.mu.Unlock()
}

func (s *Scheduler) pruneHistory() {
	cutoff := s.now().Add(-historyWindow)
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.history[:0]
	for _, status := range s.history {
		if !status.ActualTime.Before(cutoff) {
			kept = append(kept, status)
		}
	}
	s.history = kept
}

// RecentHistory returns the fetch statuses from the last N hours,
// oldest-first.
func (s *Scheduler) RecentHistory(hours int) []FetchStatus {
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	s.mu.Lock()
	defer s.mu.Unlock()

	var recent []FetchStatus
	for _, status := range s.history {
		if !status.ActualTime.Before(cutoff) {
			recent = append(recent, status)
		}
	}
	return recent
}

// StatusSummary formats an operator-visible summary of the last 24 hours.
func (s *Scheduler) StatusSummary() string {
	recent := s.RecentHistory(24)

	successful := 0
	for _, status := range recent {
		if status.Successful {
			successful++
		}
	}
	rate := 0
	if len(recent) > 0 {
		rate = successful * 100 / len(recent)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "fetch status (last 24h): total=%d successful=%d failed=%d success_rate=%d%%",
		len(recent), successful, len(recent)-successful, rate)
	fmt.Fprintf(&b, " next_daily=%s", s.NextDailySchedule().Format("2006-01-02 15:04:05"))
	return b.String()
}

// logFetchSummary logs the outcome of every fetch from the last hour.
func (s *Scheduler) logFetchSummary() {
	recent := s.RecentHistory(1)
	if len(recent) == 0 {
		return
	}
	for _, status := range recent {
		result := "SUCCESS"
		if !status.Successful {
			result = "FAILED: " + status.ErrorMessage
		}
		log.Printf("[INFO] fetch summary: %s %s %s (%d bars)",
			status.Symbol, status.Timeframe, result, status.BarsFetched)
	}
}

// NextDailySchedule computes the next trading-day occurrence of the
// configured daily hour:minute.
func (s *Scheduler) NextDailySchedule() time.Time {
	cfg := s.Config()
	now := s.now()

	for daysAhead := 0; daysAhead <= 7; daysAhead++ {
		day := now.AddDate(0, 0, daysAhead)
		if !cfg.isTradingDay(day) {
			continue
		}
		slot := time.Date(day.Year(), day.Month(), day.Day(),
			cfg.DailyHour, cfg.DailyMinute, 0, 0, now.Location())
		if slot.After(now) {
			return slot
		}
	}
	return now.Add(24 * time.Hour)
}
