package model

// Bar represents a single OHLCV observation for a symbol over a fixed interval.
type Bar struct {
	Date         string // YYYY-MM-DD
	Time         string // HH:MM:SS, empty for daily bars
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Volume       int64
	OpenInterest int64 // daily bars only
}

// DateTime returns "YYYY-MM-DD HH:MM:SS" for intraday bars and "YYYY-MM-DD"
// for daily bars.
func (b Bar) DateTime() string {
	if b.Time == "" {
		return b.Date
	}
	return b.Date + " " + b.Time
}
