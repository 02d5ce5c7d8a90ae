package dashboard

import (
	"context"

	"golang.org/x/sync/semaphore"

	"insights/internal/util"
)

// DefaultFetchWorkers caps concurrent price-history fetches when no explicit
// limit is configured.
const DefaultFetchWorkers = 4

// FetchPool bounds how many card fetches run at once and, optionally, how
// fast they start. Waiting callers queue on the semaphore.
type FetchPool struct {
	sem     *semaphore.Weighted
	limiter *util.RateLimiter
}

// NewFetchPool creates a pool with the given worker count. limiter may be
// nil for no rate limit.
func NewFetchPool(workers int, limiter *util.RateLimiter) *FetchPool {
	if workers <= 0 {
		workers = DefaultFetchWorkers
	}
	return &FetchPool{
		sem:     semaphore.NewWeighted(int64(workers)),
		limiter: limiter,
	}
}

// Do runs fn once a worker slot and a rate-limit token are available. It
// returns ctx's error if cancelled while waiting.
func (p *FetchPool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}
