// Package store persists adjusted daily bars for the development market-data
// backend.
package store

import (
	"context"
	"time"
)

// Bar is one daily OHLCV bar for a symbol under a given price adjustment.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// BarStore persists and retrieves daily bars. Bars are partitioned by
// adjustment mode, since the same day has different prices under each.
type BarStore interface {
	// WriteBars persists a batch of bars, replacing any existing bar for the
	// same symbol and day.
	WriteBars(ctx context.Context, adjust string, bars []Bar) error

	// ReadBars returns bars for symbol within [start, end] in chronological
	// order.
	ReadBars(ctx context.Context, symbol, adjust string, start, end time.Time) ([]Bar, error)

	// ListSymbols returns all symbols with bars under adjust, sorted.
	ListSymbols(ctx context.Context, adjust string) ([]string, error)
}

func inRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}
