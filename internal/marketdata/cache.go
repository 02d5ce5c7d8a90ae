package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"insights/internal/store"
)

// DefaultCacheTTL is how long a fetched range is served from cache.
const DefaultCacheTTL = 12 * time.Hour

// CachedSource serves bars from a SQLite cache, falling back to upstream for
// ranges not fetched within the TTL.
type CachedSource struct {
	upstream Source
	cache    *store.SQLiteStore
	ttl      time.Duration
	now      func() time.Time
	log      *slog.Logger
}

var _ Provider = (*CachedSource)(nil)

// NewCachedSource wraps upstream with cache. A non-positive ttl uses
// DefaultCacheTTL.
func NewCachedSource(upstream Source, cache *store.SQLiteStore, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{
		upstream: upstream,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
		log:      slog.Default().With("source", "cache"),
	}
}

// Bars returns cached bars when the range is fresh and otherwise refreshes it
// from upstream.
func (c *CachedSource) Bars(ctx context.Context, symbol, adjust string, start, end time.Time) ([]store.Bar, error) {
	if !ValidAdjust(adjust) {
		return nil, fmt.Errorf("%w %q", ErrUnknownAdjust, adjust)
	}
	now := c.now()
	hit, err := c.cache.Covered(ctx, symbol, adjust, start, end, now.Add(-c.ttl))
	if err != nil {
		return nil, fmt.Errorf("checking cache: %w", err)
	}
	if hit {
		c.log.Debug("cache hit", "symbol", symbol, "adjust", adjust)
		return c.cache.ReadBars(ctx, symbol, adjust, start, end)
	}

	bars, err := c.upstream.Bars(ctx, symbol, adjust, start, end)
	if err != nil {
		return nil, err
	}
	if err := c.cache.WriteBars(ctx, adjust, bars); err != nil {
		return nil, fmt.Errorf("caching bars: %w", err)
	}
	if err := c.cache.MarkCovered(ctx, symbol, adjust, start, end, now); err != nil {
		return nil, fmt.Errorf("recording coverage: %w", err)
	}
	c.log.Debug("cache fill", "symbol", symbol, "adjust", adjust, "bars", len(bars))
	return bars, nil
}

// Symbols lists every symbol the cache holds.
func (c *CachedSource) Symbols(ctx context.Context, adjust string) ([]string, error) {
	return c.cache.ListSymbols(ctx, adjust)
}
