// Package marketdata serves adjusted daily bars to the development backend,
// either from local storage or from Alpaca through a SQLite cache.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"insights/internal/store"
	"insights/pkg/insights"
)

// ErrUnknownAdjust is returned for an adjustment mode outside
// CASHDIVIDENDS, TOTALRETURN, and CAPITAL.
var ErrUnknownAdjust = errors.New("unknown adjust")

// ValidAdjust reports whether adjust is a supported adjustment mode.
func ValidAdjust(adjust string) bool {
	switch adjust {
	case insights.AdjustCashDividends, insights.AdjustTotalReturn, insights.AdjustCapital:
		return true
	}
	return false
}

// Source returns daily bars for symbol within [start, end] in chronological
// order.
type Source interface {
	Bars(ctx context.Context, symbol, adjust string, start, end time.Time) ([]store.Bar, error)
}

// Catalog lists the symbols a source can serve without going upstream.
type Catalog interface {
	Symbols(ctx context.Context, adjust string) ([]string, error)
}

// Provider is a Source that also knows its symbols.
type Provider interface {
	Source
	Catalog
}

// StoreSource serves bars straight from a BarStore.
type StoreSource struct {
	store store.BarStore
}

var _ Provider = (*StoreSource)(nil)

// NewStoreSource wraps s.
func NewStoreSource(s store.BarStore) *StoreSource {
	return &StoreSource{store: s}
}

// Bars reads from the store.
func (s *StoreSource) Bars(ctx context.Context, symbol, adjust string, start, end time.Time) ([]store.Bar, error) {
	if !ValidAdjust(adjust) {
		return nil, fmt.Errorf("%w %q", ErrUnknownAdjust, adjust)
	}
	return s.store.ReadBars(ctx, symbol, adjust, start, end)
}

// Symbols lists the stored symbols.
func (s *StoreSource) Symbols(ctx context.Context, adjust string) ([]string, error) {
	return s.store.ListSymbols(ctx, adjust)
}

// Sync copies bars for symbols from src into dst using at most workers
// concurrent fetches. A symbol that fails is logged and skipped; the first
// write error aborts the run.
func Sync(ctx context.Context, src Source, dst store.BarStore, symbols []string, adjust string, start, end time.Time, workers int) error {
	log := slog.Default().With("component", "sync", "adjust", adjust)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for _, sym := range symbols {
		g.Go(func() error {
			bars, err := src.Bars(ctx, sym, adjust, start, end)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("fetch failed", "symbol", sym, "error", err)
				return nil
			}
			if err := dst.WriteBars(ctx, adjust, bars); err != nil {
				return fmt.Errorf("writing %s: %w", sym, err)
			}
			log.Info("synced", "symbol", sym, "bars", len(bars))
			return nil
		})
	}
	return g.Wait()
}
