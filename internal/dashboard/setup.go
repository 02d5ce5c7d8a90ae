package dashboard

import (
	"log/slog"

	"insights/internal/config"
	"insights/internal/util"
	"insights/pkg/insights"
)

// NewFromConfig wires a Dashboard to the configured services. The returned
// dashboard starts with the configured default symbols as its input.
func NewFromConfig(cfg *config.Config, log *slog.Logger) *Dashboard {
	client := insights.NewClient(cfg.Services.AnalysisURL)
	client.SetMarketDataURL(cfg.Services.MarketDataURL)
	if cfg.Services.Timeout > 0 {
		client.SetTimeout(cfg.Services.Timeout)
	}

	d := New(client, client, Options{
		AccountID:     cfg.Dashboard.AccountID,
		Benchmark:     cfg.Dashboard.Benchmark,
		Strategy:      cfg.Dashboard.Strategy,
		HistoryMonths: cfg.Dashboard.HistoryMonths,
		Pool:          NewFetchPool(cfg.Dashboard.FetchWorkers, util.NewRateLimiter(cfg.Dashboard.RateLimitPerMin)),
		Logger:        log,
	})
	d.SetSymbolsText(cfg.Dashboard.DefaultSymbols)
	return d
}
