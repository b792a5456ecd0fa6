package store

import (
	"time"

	"BarSentinel/internal/feed"
	"BarSentinel/internal/model"
)

// Store persists historical bars per timeframe.
type Store interface {
	// IsReady reports whether the backing database is reachable.
	IsReady() bool
	// UpsertBar inserts or updates one bar. It is idempotent on the natural
	// key symbol+timeframe+date(+time).
	UpsertBar(symbol string, tf feed.Timeframe, bar model.Bar) error
	// HasBarSince reports whether any bar for symbol+timeframe exists at or
	// after the cutoff. Used by the scheduler's startup recovery pass.
	HasBarSince(symbol string, tf feed.Timeframe, cutoff time.Time) (bool, error)
	Close() error
}
