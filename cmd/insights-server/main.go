package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"insights/internal/config"
	"insights/internal/httpapi"
	"insights/internal/marketdata"
	"insights/internal/store"
	"insights/internal/util"
	"insights/pkg/insights"
)

func main() {
	syncSymbols := flag.String("sync", "", "copy bars for these comma-separated symbols from Alpaca into the Parquet store, then exit")
	syncMonths := flag.Int("sync-months", 24, "months of history to sync")
	flag.Parse()

	cfgPath := "config/insights.yaml"
	if p := os.Getenv("INSIGHTS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.Logging.Level)
	util.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *syncSymbols != "" {
		if err := runSync(ctx, cfg, insights.ParseSymbols(*syncSymbols), *syncMonths); err != nil {
			log.Error("sync failed", "error", err)
			os.Exit(1)
		}
		return
	}

	source, closeSource, err := openSource(cfg)
	if err != nil {
		log.Error("opening bar source", "error", err)
		os.Exit(1)
	}
	defer closeSource()

	positions := make([]httpapi.Position, len(cfg.Server.Positions))
	for i, p := range cfg.Server.Positions {
		positions[i] = httpapi.Position{Symbol: p.Symbol, Qty: p.Qty}
	}
	if len(positions) == 0 {
		positions = nil
	}

	srv := httpapi.New(source, httpapi.Options{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AnalysisMonths: cfg.Server.AnalysisMonths,
		Positions:      positions,
		Logger:         log,
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
	}
}

// openSource picks the bar source named by server.source.
func openSource(cfg *config.Config) (marketdata.Provider, func(), error) {
	switch cfg.Server.Source {
	case "", "parquet":
		slog.Info("serving bars from parquet store", "dir", cfg.Storage.DataDir)
		return marketdata.NewStoreSource(store.NewParquetStore(cfg.Storage.DataDir)), func() {}, nil

	case "alpaca":
		if cfg.Alpaca.APIKey == "" {
			return nil, nil, errors.New("alpaca source needs APCA_API_KEY_ID / APCA_API_SECRET_KEY")
		}
		dbPath := cfg.Storage.SQLitePath
		if dbPath == "" {
			dbPath = filepath.Join(cfg.Storage.DataDir, "cache.db")
		}
		cache, err := store.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, nil, err
		}
		upstream := marketdata.NewAlpacaSourceFromConfig(cfg.Alpaca)
		slog.Info("serving bars from alpaca", "cache", dbPath, "feed", cfg.Alpaca.Feed)
		return marketdata.NewCachedSource(upstream, cache, cfg.Server.CacheTTL), func() { cache.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown server.source %q", cfg.Server.Source)
	}
}

// runSync fills the Parquet store from Alpaca for every adjustment mode.
func runSync(ctx context.Context, cfg *config.Config, symbols []string, months int) error {
	if len(symbols) == 0 {
		return errors.New("no symbols to sync")
	}
	upstream := marketdata.NewAlpacaSourceFromConfig(cfg.Alpaca)
	dst := store.NewParquetStore(cfg.Storage.DataDir)

	end := time.Now().UTC()
	start := end.AddDate(0, -months, 0)
	for _, adjust := range []string{insights.AdjustCashDividends, insights.AdjustTotalReturn, insights.AdjustCapital} {
		if err := marketdata.Sync(ctx, upstream, dst, symbols, adjust, start, end, cfg.Alpaca.Workers); err != nil {
			return fmt.Errorf("syncing %s: %w", adjust, err)
		}
	}
	return nil
}
