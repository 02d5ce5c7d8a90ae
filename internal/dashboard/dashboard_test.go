package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insights/internal/config"
	"insights/internal/util"
	"insights/pkg/insights"
)

type analyzerFunc func(ctx context.Context, req insights.PortfolioRequest) (*insights.PortfolioResponse, error)

func (f analyzerFunc) KeepOrReplace(ctx context.Context, req insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
	return f(ctx, req)
}

type fetcherFunc func(ctx context.Context, symbol string, start time.Time, adjust string) (*insights.BarsResponse, error)

func (f fetcherFunc) GetBars(ctx context.Context, symbol string, start time.Time, adjust string) (*insights.BarsResponse, error) {
	return f(ctx, symbol, start, adjust)
}

// lockedBuffer lets a logger be written from card goroutines while a test
// reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var fixedNow = time.Date(2024, 8, 31, 15, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bars(closes ...float64) *insights.BarsResponse {
	resp := &insights.BarsResponse{}
	for _, c := range closes {
		resp.Bars = append(resp.Bars, insights.Bar{Close: c})
	}
	return resp
}

func item(symbol string, action insights.Action, replacements ...string) insights.VerdictItem {
	return insights.VerdictItem{
		Symbol:       symbol,
		AsOf:         "2024-08-30",
		Action:       action,
		Metrics:      insights.Metrics{TrendOK: true, Return3M: 0.1234, Return6M: -0.05, Drawdown: -0.2},
		Replacements: replacements,
	}
}

func responseFor(asOf string, symbols ...string) *insights.PortfolioResponse {
	resp := &insights.PortfolioResponse{AsOf: asOf}
	for _, s := range symbols {
		resp.Items = append(resp.Items, item(s, insights.ActionKeep))
	}
	return resp
}

func echoAnalyzer(asOf string) Analyzer {
	return analyzerFunc(func(_ context.Context, req insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
		return responseFor(asOf, req.Symbols...), nil
	})
}

var okFetcher = fetcherFunc(func(context.Context, string, time.Time, string) (*insights.BarsResponse, error) {
	return bars(1, 2, 3), nil
})

func newTestDashboard(a Analyzer, f BarFetcher, log *slog.Logger) *Dashboard {
	if log == nil {
		log = discardLogger()
	}
	return New(a, f, Options{Logger: log, Now: func() time.Time { return fixedNow }})
}

func waitSettled(t *testing.T, d *Dashboard) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func TestDashboardStartsIdle(t *testing.T) {
	d := newTestDashboard(echoAnalyzer("x"), okFetcher, nil)
	defer d.Close()

	v := d.Snapshot()
	assert.Equal(t, PhaseIdle, v.Phase)
	assert.True(t, v.CanSubmit)
	assert.Empty(t, v.Cards)
}

func TestSubmitBuildsRequest(t *testing.T) {
	got := make(chan insights.PortfolioRequest, 1)
	a := analyzerFunc(func(_ context.Context, req insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
		got <- req
		return &insights.PortfolioResponse{}, nil
	})
	d := newTestDashboard(a, okFetcher, nil)
	defer d.Close()

	d.SetSymbolsText(" AAPL, MSFT ,,TSLA")
	assert.Equal(t, " AAPL, MSFT ,,TSLA", d.SymbolsText())
	want := insights.PortfolioRequest{
		AccountID: "demo",
		Symbols:   []string{"AAPL", "MSFT", "TSLA"},
		Benchmark: "SPY",
		Strategy:  "momo_trend@0.1.0",
	}
	assert.Equal(t, want, d.Request())
	d.Submit()

	req := <-got
	assert.Equal(t, want, req)
}

func TestSubmitEmptyInputStillCallsService(t *testing.T) {
	var calls atomic.Int32
	a := analyzerFunc(func(_ context.Context, req insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
		calls.Add(1)
		assert.Empty(t, req.Symbols)
		return &insights.PortfolioResponse{AsOf: "2024-08-30"}, nil
	})
	d := newTestDashboard(a, okFetcher, nil)
	defer d.Close()

	d.SetSymbolsText(" , ")
	d.Submit()
	waitSettled(t, d)

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, PhaseLoaded, d.State().Phase())
}

func TestSubmitDisabledWhileLoading(t *testing.T) {
	release := make(chan struct{})
	a := analyzerFunc(func(context.Context, insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
		<-release
		return &insights.PortfolioResponse{}, nil
	})
	d := newTestDashboard(a, okFetcher, nil)
	defer d.Close()

	d.Submit()
	assert.False(t, d.CanSubmit())
	assert.Equal(t, PhaseLoading, d.Snapshot().Phase)

	close(release)
	waitSettled(t, d)
	assert.True(t, d.CanSubmit())
}

func TestSubmitFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"service body", &insights.APIError{StatusCode: 422, Body: "unknown strategy"}, "unknown strategy"},
		{"empty body", &insights.APIError{StatusCode: 502}, FallbackError},
		{"transport", errors.New("dial tcp: connection refused"), FallbackError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := analyzerFunc(func(context.Context, insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
				return nil, tt.err
			})
			d := newTestDashboard(a, okFetcher, nil)
			defer d.Close()

			d.Submit()
			waitSettled(t, d)

			v := d.Snapshot()
			assert.Equal(t, PhaseFailed, v.Phase)
			assert.Equal(t, tt.want, v.Error)
			assert.True(t, v.CanSubmit)
		})
	}
}

func TestResubmitAfterFailureClearsError(t *testing.T) {
	var calls atomic.Int32
	a := analyzerFunc(func(_ context.Context, req insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
		if calls.Add(1) == 1 {
			return nil, &insights.APIError{StatusCode: 500, Body: "boom"}
		}
		return responseFor("2024-08-30", req.Symbols...), nil
	})
	d := newTestDashboard(a, okFetcher, nil)
	defer d.Close()

	d.SetSymbolsText("AAPL")
	d.Submit()
	waitSettled(t, d)
	require.Equal(t, "boom", d.Snapshot().Error)

	d.Submit()
	assert.Empty(t, d.State().Err())
	waitSettled(t, d)

	v := d.Snapshot()
	assert.Equal(t, PhaseLoaded, v.Phase)
	assert.Empty(t, v.Error)
	assert.Equal(t, "2024-08-30", v.AsOf)
	require.Len(t, v.Cards, 1)
}

func TestStaleResponseIsIgnored(t *testing.T) {
	release := make(chan struct{})
	a := analyzerFunc(func(_ context.Context, req insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
		if req.Symbols[0] == "OLD" {
			<-release
		}
		return responseFor("asof-"+req.Symbols[0], req.Symbols...), nil
	})
	logs := &lockedBuffer{}
	d := newTestDashboard(a, okFetcher, util.NewLoggerTo(logs, "debug"))
	defer d.Close()

	d.SetSymbolsText("OLD")
	d.Submit()
	d.SetSymbolsText("NEW")
	d.Submit()
	waitSettled(t, d)

	close(release)
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "dropping stale analysis outcome")
	}, 2*time.Second, 5*time.Millisecond)

	v := d.Snapshot()
	assert.Equal(t, PhaseLoaded, v.Phase)
	assert.Equal(t, "asof-NEW", v.AsOf)
	require.Len(t, v.Cards, 1)
	assert.Equal(t, "NEW", v.Cards[0].Symbol)
}

func TestSupersededRequestIsCancelledNotFailed(t *testing.T) {
	cancelled := make(chan struct{})
	a := analyzerFunc(func(ctx context.Context, req insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
		if req.Symbols[0] == "OLD" {
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}
		return responseFor("new", req.Symbols...), nil
	})
	logs := &lockedBuffer{}
	d := newTestDashboard(a, okFetcher, util.NewLoggerTo(logs, "debug"))
	defer d.Close()

	d.SetSymbolsText("OLD")
	d.Submit()
	d.SetSymbolsText("NEW")
	d.Submit()

	<-cancelled
	waitSettled(t, d)
	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "dropping stale analysis outcome")
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, PhaseLoaded, d.State().Phase())
	assert.Empty(t, d.State().Err())
}

func TestCardFailureIsIsolated(t *testing.T) {
	f := fetcherFunc(func(_ context.Context, symbol string, _ time.Time, _ string) (*insights.BarsResponse, error) {
		if symbol == "MSFT" {
			return nil, &insights.APIError{StatusCode: 404, Body: "No data found"}
		}
		return bars(10, 11, 12), nil
	})
	d := newTestDashboard(echoAnalyzer("2024-08-30"), f, nil)
	defer d.Close()

	d.SetSymbolsText("AAPL,MSFT,TSLA")
	d.Submit()
	waitSettled(t, d)

	v := d.Snapshot()
	assert.Equal(t, PhaseLoaded, v.Phase)
	assert.Empty(t, v.Error)
	require.Len(t, v.Cards, 3)
	require.Len(t, d.Cards(), 3)

	for _, c := range v.Cards {
		if c.Symbol == "MSFT" {
			assert.Equal(t, PhaseFailed, c.Phase)
			assert.Nil(t, c.Sparkline)
			assert.Equal(t, PlaceholderUnavailable, c.Placeholder)
			continue
		}
		assert.Equal(t, PhaseLoaded, c.Phase)
		require.NotNil(t, c.Sparkline)
		assert.Len(t, c.Sparkline.Points, 3)
		assert.Equal(t, "12.00", c.LastClose)
	}
}

func TestCardRequestsSixMonthsOfDividendAdjustedBars(t *testing.T) {
	type call struct {
		symbol string
		start  time.Time
		adjust string
	}
	calls := make(chan call, 1)
	f := fetcherFunc(func(_ context.Context, symbol string, start time.Time, adjust string) (*insights.BarsResponse, error) {
		calls <- call{symbol, start, adjust}
		return bars(), nil
	})
	d := newTestDashboard(echoAnalyzer("x"), f, nil)
	defer d.Close()

	d.SetSymbolsText("AAPL")
	d.Submit()
	c := <-calls
	waitSettled(t, d)

	assert.Equal(t, "AAPL", c.symbol)
	assert.Equal(t, insights.AdjustCashDividends, c.adjust)
	// Aug 31 minus six months rolls over Feb 31 into March.
	assert.Equal(t, "2024-03-02", c.start.Format("2006-01-02"))

	// An empty series still loads and renders an empty canvas.
	v := d.Snapshot().Cards[0]
	assert.Equal(t, PhaseLoaded, v.Phase)
	require.NotNil(t, v.Sparkline)
	assert.True(t, v.Sparkline.Empty())
}

func TestHistoryStart(t *testing.T) {
	tests := []struct {
		now  time.Time
		want string
	}{
		{time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), "2023-09-15"},
		{time.Date(2024, 8, 31, 12, 0, 0, 0, time.UTC), "2024-03-02"},
		{time.Date(2023, 8, 31, 12, 0, 0, 0, time.UTC), "2023-03-03"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HistoryStart(tt.now, 6).Format("2006-01-02"), "now=%s", tt.now)
	}
}

func TestCardsReusedAcrossSubmits(t *testing.T) {
	var mu sync.Mutex
	fetches := map[string]int{}
	f := fetcherFunc(func(_ context.Context, symbol string, _ time.Time, _ string) (*insights.BarsResponse, error) {
		mu.Lock()
		fetches[symbol]++
		mu.Unlock()
		return bars(1, 2), nil
	})
	d := newTestDashboard(echoAnalyzer("x"), f, nil)
	defer d.Close()

	d.SetSymbolsText("AAPL,MSFT")
	d.Submit()
	waitSettled(t, d)
	first := d.Cards()

	d.SetSymbolsText("MSFT,NVDA")
	d.Submit()
	waitSettled(t, d)
	second := d.Cards()

	require.Len(t, second, 2)
	assert.Same(t, first[1], second[0], "MSFT card should be kept")
	assert.Equal(t, "NVDA", second[1].Symbol())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"AAPL": 1, "MSFT": 1, "NVDA": 1}, fetches)
}

func TestDuplicateSymbolsEachGetACard(t *testing.T) {
	d := newTestDashboard(echoAnalyzer("x"), okFetcher, nil)
	defer d.Close()

	d.SetSymbolsText("AAPL,AAPL")
	d.Submit()
	waitSettled(t, d)

	cards := d.Cards()
	require.Len(t, cards, 2)
	assert.NotSame(t, cards[0], cards[1])
}

func TestEndToEndReplaceVerdicts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analysis/portfolio/keep_or_replace", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"as_of":"2024-08-30","items":[
			{"symbol":"AAPL","as_of":"2024-08-30","action":"REPLACE",
			 "metrics":{"trend_ok":false,"r3m":-0.05,"r6m":-0.1,"drawdown":-0.25},"replacements":["NVDA"]},
			{"symbol":"MSFT","as_of":"2024-08-30","action":"REPLACE",
			 "metrics":{"trend_ok":false,"r3m":-0.02,"r6m":-0.04,"drawdown":-0.3},"replacements":["AVGO"]}]}`))
	})
	mux.HandleFunc("GET /v1/md/bars", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("adjust") != insights.AdjustCashDividends {
			http.Error(w, "bad adjust", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"bars":[{"c":100},{"c":98},{"c":95}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := insights.NewClient(srv.URL)
	d := newTestDashboard(client, client, nil)
	defer d.Close()

	d.SetSymbolsText("AAPL,MSFT")
	d.Submit()
	waitSettled(t, d)

	v := d.Snapshot()
	require.Equal(t, PhaseLoaded, v.Phase)
	require.Len(t, v.Cards, 2)

	want := map[string][]string{"AAPL": {"NVDA"}, "MSFT": {"AVGO"}}
	for _, c := range v.Cards {
		assert.Equal(t, "REPLACE", c.Badge.Label)
		assert.Equal(t, want[c.Symbol], c.Replacements)
		assert.Equal(t, "Broken", c.Trend)
		require.NotNil(t, c.Sparkline)
		assert.Equal(t, "#dc2626", c.Sparkline.Color)
	}
	assert.Equal(t, "-5.0%", v.Cards[0].Return3M)
}

func TestItemWithoutActionFailsRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analysis/portfolio/keep_or_replace", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"symbol":"AAPL","metrics":{},"replacements":[]}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := insights.NewClient(srv.URL)
	d := newTestDashboard(client, client, nil)
	defer d.Close()

	d.SetSymbolsText("AAPL")
	d.Submit()
	waitSettled(t, d)

	var v View
	require.NotPanics(t, func() { v = d.Snapshot() })
	assert.Equal(t, PhaseFailed, v.Phase)
	assert.Equal(t, FallbackError, v.Error)
	assert.Empty(t, v.Cards)
	assert.True(t, v.CanSubmit)
}

func TestCloseDropsLateResults(t *testing.T) {
	release := make(chan struct{})
	a := analyzerFunc(func(context.Context, insights.PortfolioRequest) (*insights.PortfolioResponse, error) {
		<-release
		return responseFor("x", "AAPL"), nil
	})
	d := newTestDashboard(a, okFetcher, nil)

	d.SetSymbolsText("AAPL")
	d.Submit()
	d.Close()
	close(release)

	assert.Never(t, func() bool { return len(d.Cards()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.False(t, d.CanSubmit())
}

func TestNewFromConfig(t *testing.T) {
	reqs := make(chan insights.PortfolioRequest, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analysis/portfolio/keep_or_replace", func(w http.ResponseWriter, r *http.Request) {
		var req insights.PortfolioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reqs <- req
		w.Write([]byte(`{"as_of":"2024-08-30","items":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.Default()
	cfg.Services.AnalysisURL = srv.URL
	cfg.Services.MarketDataURL = srv.URL
	cfg.Dashboard.AccountID = "acct-9"
	cfg.Dashboard.DefaultSymbols = "NVDA, AMD"

	d := NewFromConfig(cfg, discardLogger())
	defer d.Close()
	assert.Equal(t, "NVDA, AMD", d.SymbolsText())

	d.Submit()
	waitSettled(t, d)

	assert.Equal(t, PhaseLoaded, d.State().Phase())
	got := <-reqs
	assert.Equal(t, "acct-9", got.AccountID)
	assert.Equal(t, []string{"NVDA", "AMD"}, got.Symbols)
}
