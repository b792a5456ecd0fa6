package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"BarSentinel/internal/feed"
	"BarSentinel/internal/model"
)

// SQLiteStore persists historical bars to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so status readers don't block the fetch loop's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS symbols (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL UNIQUE
		)`,

		`CREATE TABLE IF NOT EXISTS historical_bars (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol_id     INTEGER NOT NULL REFERENCES symbols(id),
			timeframe     TEXT NOT NULL,
			bar_date      TEXT NOT NULL,
			bar_time      TEXT NOT NULL DEFAULT '',
			open_price    REAL NOT NULL,
			high_price    REAL NOT NULL,
			low_price     REAL NOT NULL,
			close_price   REAL NOT NULL,
			volume        INTEGER NOT NULL,
			open_interest INTEGER NOT NULL DEFAULT 0,
			data_source   TEXT NOT NULL DEFAULT 'iqfeed',
			fetched_at    INTEGER NOT NULL,
			UNIQUE(symbol_id, timeframe, bar_date, bar_time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bars_lookup
			ON historical_bars(symbol_id, timeframe, bar_date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// IsReady reports whether the database answers a ping.
func (s *SQLiteStore) IsReady() bool {
	return s.db.Ping() == nil
}

// UpsertBar inserts the bar or, on natural-key conflict, updates its OHLCV
// values in place. Re-fetching the same window is therefore idempotent.
func (s *SQLiteStore) UpsertBar(symbol string, tf feed.Timeframe, bar model.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbolID, err := s.symbolID(symbol)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`INSERT INTO historical_bars
		(symbol_id, timeframe, bar_date, bar_time,
		 open_price, high_price, low_price, close_price,
		 volume, open_interest, fetched_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol_id, timeframe, bar_date, bar_time) DO UPDATE SET
			open_price    = excluded.open_price,
			high_price    = excluded.high_price,
			low_price     = excluded.low_price,
			close_price   = excluded.close_price,
			volume        = excluded.volume,
			open_interest = excluded.open_interest,
			fetched_at    = excluded.fetched_at`,
		symbolID, tf.Name, bar.Date, bar.Time,
		bar.Open, bar.High, bar.Low, bar.Close,
		bar.Volume, bar.OpenInterest, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s %s bar %s: %w", symbol, tf.Name, bar.DateTime(), err)
	}
	return nil
}

// HasBarSince reports whether any bar exists at or after the cutoff.
func (s *SQLiteStore) HasBarSince(symbol string, tf feed.Timeframe, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var query, bound string
	if tf.IsDaily() {
		query = `SELECT EXISTS(
			SELECT 1 FROM historical_bars b
			JOIN symbols s ON s.id = b.symbol_id
			WHERE s.symbol = ? AND b.timeframe = ? AND b.bar_date >= ?)`
		bound = cutoff.Format("2006-01-02")
	} else {
		query = `SELECT EXISTS(
			SELECT 1 FROM historical_bars b
			JOIN symbols s ON s.id = b.symbol_id
			WHERE s.symbol = ? AND b.timeframe = ?
			  AND b.bar_date || ' ' || b.bar_time >= ?)`
		bound = cutoff.Format("2006-01-02 15:04:05")
	}

	var exists bool
	if err := s.db.QueryRow(query, symbol, tf.Name, bound).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s %s since %s: %w", symbol, tf.Name, bound, err)
	}
	return exists, nil
}

// symbolID returns the id for a symbol, creating the row on first use.
func (s *SQLiteStore) symbolID(symbol string) (int64, error) {
	if _, err := s.db.Exec(
		`INSERT INTO symbols (symbol) VALUES (?) ON CONFLICT(symbol) DO NOTHING`, symbol); err != nil {
		return 0, fmt.Errorf("ensure symbol %s: %w", symbol, err)
	}

	var id int64
	if err := s.db.QueryRow(`SELECT id FROM symbols WHERE symbol = ?`, symbol).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup symbol %s: %w", symbol, err)
	}
	return id, nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
