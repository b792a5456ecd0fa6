package store

import (
	"time"

	"BarSentinel/internal/feed"
	"BarSentinel/internal/model"
)

// NoopStore is a no-op implementation used when SQLite is not configured.
// HasBarSince always answers false, so recovery re-fetches everything.
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) IsReady() bool { return true }

func (n *NoopStore) UpsertBar(_ string, _ feed.Timeframe, _ model.Bar) error { return nil }

func (n *NoopStore) HasBarSince(_ string, _ feed.Timeframe, _ time.Time) (bool, error) {
	return false, nil
}

func (n *NoopStore) Close() error { return nil }
