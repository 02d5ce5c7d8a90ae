package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ BarStore = (*SQLiteStore)(nil)

const dayLayout = "2006-01-02"

const schema = `
CREATE TABLE IF NOT EXISTS bars (
	symbol TEXT NOT NULL,
	adjust TEXT NOT NULL,
	day    TEXT NOT NULL,
	open   REAL NOT NULL,
	high   REAL NOT NULL,
	low    REAL NOT NULL,
	close  REAL NOT NULL,
	volume INTEGER NOT NULL,
	PRIMARY KEY (symbol, adjust, day)
);
CREATE TABLE IF NOT EXISTS coverage (
	symbol     TEXT NOT NULL,
	adjust     TEXT NOT NULL,
	start_day  TEXT NOT NULL,
	end_day    TEXT NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (symbol, adjust, start_day, end_day)
);`

// SQLiteStore is a BarStore backed by SQLite. Alongside the bars it records
// which day ranges were fetched from upstream, so it can act as a cache.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// its tables exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteBars upserts bars in one transaction.
func (s *SQLiteStore) WriteBars(ctx context.Context, adjust string, bars []Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO bars
		(symbol, adjust, day, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, strings.ToUpper(b.Symbol), adjust,
			b.Timestamp.UTC().Format(dayLayout), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("inserting %s %s: %w", b.Symbol, b.Timestamp.Format(dayLayout), err)
		}
	}
	return tx.Commit()
}

// ReadBars returns bars for symbol within [start, end], ordered by day.
func (s *SQLiteStore) ReadBars(ctx context.Context, symbol, adjust string, start, end time.Time) ([]Bar, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, day, open, high, low, close, volume
		FROM bars WHERE symbol = ? AND adjust = ? AND day >= ? AND day <= ? ORDER BY day`,
		strings.ToUpper(symbol), adjust, start.UTC().Format(dayLayout), end.UTC().Format(dayLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var b Bar
		var day string
		if err := rows.Scan(&b.Symbol, &day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		if b.Timestamp, err = time.Parse(dayLayout, day); err != nil {
			return nil, fmt.Errorf("parsing day %q: %w", day, err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ListSymbols returns all symbols with bars under adjust.
func (s *SQLiteStore) ListSymbols(ctx context.Context, adjust string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT symbol FROM bars WHERE adjust = ? ORDER BY symbol`, adjust)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// MarkCovered records that [start, end] was fetched from upstream at now.
func (s *SQLiteStore) MarkCovered(ctx context.Context, symbol, adjust string, start, end, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO coverage
		(symbol, adjust, start_day, end_day, fetched_at) VALUES (?, ?, ?, ?, ?)`,
		strings.ToUpper(symbol), adjust, start.UTC().Format(dayLayout), end.UTC().Format(dayLayout), now.Unix())
	return err
}

// Covered reports whether a single fetch recorded after notBefore spans
// [start, end].
func (s *SQLiteStore) Covered(ctx context.Context, symbol, adjust string, start, end, notBefore time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coverage
		WHERE symbol = ? AND adjust = ? AND start_day <= ? AND end_day >= ? AND fetched_at >= ?`,
		strings.ToUpper(symbol), adjust, start.UTC().Format(dayLayout), end.UTC().Format(dayLayout),
		notBefore.Unix()).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
