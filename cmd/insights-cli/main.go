package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"insights/internal/config"
	"insights/internal/dashboard"
	"insights/internal/render"
	"insights/internal/sparkline"
	"insights/internal/util"
	"insights/pkg/insights"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: insights-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version                      Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  analyze [flags] [SYMBOLS]    Review holdings and print the dashboard\n")
	fmt.Fprintf(os.Stderr, "  bars [flags] SYMBOL          Print a symbol's price history sparkline\n")
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfgPath := "config/insights.yaml"
	if p := os.Getenv("INSIGHTS_CONFIG"); p != "" {
		cfgPath = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("insights-cli %s\n", version)
		return
	case "analyze":
		err = runAnalyze(ctx, cfgPath, os.Args[2:])
	case "bars":
		err = runBars(ctx, cfgPath, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	// Logs go to stderr so stdout carries only the report.
	util.SetDefault(util.NewLoggerTo(os.Stderr, cfg.Logging.Level))
	return cfg, nil
}

func runAnalyze(ctx context.Context, cfgPath string, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	svgDir := fs.String("svg", "", "write one <SYMBOL>.svg sparkline per card into this directory")
	htmlPath := fs.String("html", "", "write an HTML report to this file")
	width := fs.Int("width", 110, "terminal width for the card grid")
	timeout := fs.Duration("timeout", 2*time.Minute, "give up after this long")
	fs.Parse(args)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	d := dashboard.NewFromConfig(cfg, util.NewLoggerTo(os.Stderr, cfg.Logging.Level))
	defer d.Close()
	if fs.NArg() > 0 {
		d.SetSymbolsText(strings.Join(fs.Args(), ","))
	}
	d.Submit()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	if err := d.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for analysis: %w", err)
	}

	v := d.Snapshot()
	fmt.Println(render.Status(v, ""))
	if out := render.Cards(v.Cards, *width, ""); out != "" {
		fmt.Println(out)
	}

	if *svgDir != "" {
		if err := writeSVGs(*svgDir, v.Cards); err != nil {
			return err
		}
	}
	if *htmlPath != "" {
		if err := writeHTML(*htmlPath, v); err != nil {
			return err
		}
	}
	if v.Phase == dashboard.PhaseFailed {
		return fmt.Errorf("analysis failed: %s", v.Error)
	}
	return nil
}

func writeSVGs(dir string, cards []dashboard.CardView) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, c := range cards {
		s := sparkline.Render(nil)
		if c.Sparkline != nil {
			s = *c.Sparkline
		}
		// Duplicate symbols get their position appended.
		name := c.Symbol + ".svg"
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			name = fmt.Sprintf("%s-%d.svg", c.Symbol, i)
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(s.SVG()), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}

func writeHTML(path string, v dashboard.View) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.HTML(f, v); err != nil {
		f.Close()
		return fmt.Errorf("rendering report: %w", err)
	}
	return f.Close()
}

func runBars(ctx context.Context, cfgPath string, args []string) error {
	fs := flag.NewFlagSet("bars", flag.ExitOnError)
	months := fs.Int("months", 6, "months of history")
	adjust := fs.String("adjust", insights.AdjustCashDividends, "CASHDIVIDENDS, TOTALRETURN or CAPITAL")
	cols := fs.Int("cols", 60, "sparkline width in columns")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("bars takes exactly one SYMBOL")
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	client := insights.NewClient(cfg.Services.AnalysisURL)
	client.SetMarketDataURL(cfg.Services.MarketDataURL)

	symbol := fs.Arg(0)
	resp, err := client.GetBars(ctx, symbol, dashboard.HistoryStart(time.Now(), *months), *adjust)
	if err != nil {
		return err
	}
	closes := resp.Closes()
	s := sparkline.Render(closes)
	last := 0.0
	if len(closes) > 0 {
		last = closes[len(closes)-1]
	}
	fmt.Printf("%s  %d bars  last %s  trend %s\n", symbol, len(closes), dashboard.FormatPrice(last), s.Trend)
	fmt.Println(s.Terminal(*cols))
	return nil
}
