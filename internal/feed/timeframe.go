package feed

import (
	"fmt"
	"time"
)

// Timeframe describes one supported bar interval: the feed interval code,
// the interval length, and how often the scheduler polls it.
type Timeframe struct {
	Name         string        // "daily", "15min", "30min", "1hour", "2hours"
	IntervalCode string        // interval length in seconds, or "DAILY"
	Interval     time.Duration // zero for daily bars
	PollEvery    time.Duration // scheduler cadence
}

var (
	Daily      = Timeframe{Name: "daily", IntervalCode: "DAILY", PollEvery: 24 * time.Hour}
	FifteenMin = Timeframe{Name: "15min", IntervalCode: "900", Interval: 15 * time.Minute, PollEvery: 15 * time.Minute}
	ThirtyMin  = Timeframe{Name: "30min", IntervalCode: "1800", Interval: 30 * time.Minute, PollEvery: 30 * time.Minute}
	OneHour    = Timeframe{Name: "1hour", IntervalCode: "3600", Interval: time.Hour, PollEvery: time.Hour}
	TwoHours   = Timeframe{Name: "2hours", IntervalCode: "7200", Interval: 2 * time.Hour, PollEvery: 2 * time.Hour}
)

// Timeframes returns all supported timeframes, daily first.
func Timeframes() []Timeframe {
	return []Timeframe{Daily, FifteenMin, ThirtyMin, OneHour, TwoHours}
}

// IntradayTimeframes returns the supported intraday timeframes.
func IntradayTimeframes() []Timeframe {
	return []Timeframe{FifteenMin, ThirtyMin, OneHour, TwoHours}
}

// ParseTimeframe resolves a timeframe by its name.
func ParseTimeframe(name string) (Timeframe, error) {
	for _, tf := range Timeframes() {
		if tf.Name == name {
			return tf, nil
		}
	}
	return Timeframe{}, fmt.Errorf("unknown timeframe: %s", name)
}

// IsDaily reports whether this timeframe uses the daily bulk-history command.
func (tf Timeframe) IsDaily() bool { return tf.IntervalCode == "DAILY" }
