package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"insights/internal/config"
	"insights/internal/store"
	"insights/internal/util"
	"insights/pkg/insights"
)

// alpacaAdjustments maps the service's adjustment modes onto Alpaca's.
var alpacaAdjustments = map[string]amd.Adjustment{
	insights.AdjustCashDividends: amd.Dividend,
	insights.AdjustTotalReturn:   amd.All,
	insights.AdjustCapital:       amd.Split,
}

// AlpacaSource fetches daily bars from the Alpaca market-data API.
type AlpacaSource struct {
	client  *amd.Client
	feed    string
	limiter *util.RateLimiter
	log     *slog.Logger
}

var _ Source = (*AlpacaSource)(nil)

// NewAlpacaSource creates a source from the alpaca config section. limiter
// may be nil.
func NewAlpacaSource(cfg config.Alpaca, limiter *util.RateLimiter) *AlpacaSource {
	opts := amd.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return &AlpacaSource{
		client:  amd.NewClient(opts),
		feed:    cfg.Feed,
		limiter: limiter,
		log:     slog.Default().With("source", "alpaca"),
	}
}

// NewAlpacaSourceFromConfig creates a source throttled by the alpaca
// section's own rate_limit_per_min.
func NewAlpacaSourceFromConfig(cfg config.Alpaca) *AlpacaSource {
	return NewAlpacaSource(cfg, util.NewRateLimiter(cfg.RateLimitPerMin))
}

// Bars fetches one symbol's daily bars, retrying transient failures.
func (a *AlpacaSource) Bars(ctx context.Context, symbol, adjust string, start, end time.Time) ([]store.Bar, error) {
	adj, ok := alpacaAdjustments[adjust]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownAdjust, adjust)
	}
	req := amd.GetBarsRequest{
		TimeFrame:  amd.OneDay,
		Adjustment: adj,
		Start:      start,
		End:        end,
	}
	if a.feed != "" {
		req.Feed = amd.Feed(a.feed)
	}

	var raw []amd.Bar
	err := util.Retry(ctx, 3, time.Second, func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		raw, err = a.client.GetBars(symbol, req)
		if err != nil {
			a.log.Debug("GetBars failed", "symbol", symbol, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]store.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, store.Bar{
			Symbol:    strings.ToUpper(symbol),
			Timestamp: ab.Timestamp.UTC(),
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    int64(ab.Volume),
		})
	}
	return bars, nil
}
