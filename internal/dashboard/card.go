package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"insights/internal/badge"
	"insights/internal/sparkline"
	"insights/pkg/insights"
)

// Card placeholders shown instead of a sparkline.
const (
	PlaceholderLoading     = "loading…"
	PlaceholderUnavailable = "unavailable"
)

// BarFetcher retrieves adjusted daily bars for one symbol.
type BarFetcher interface {
	GetBars(ctx context.Context, symbol string, start time.Time, adjust string) (*insights.BarsResponse, error)
}

// HistoryStart returns the first day of a card's price window: months
// calendar months before now, normalised the way time.AddDate does, in UTC.
func HistoryStart(now time.Time, months int) time.Time {
	return now.AddDate(0, -months, 0).UTC()
}

// cardEnv is what every card of one dashboard shares.
type cardEnv struct {
	ctx     context.Context
	fetcher BarFetcher
	pool    *FetchPool
	months  int
	now     func() time.Time
	log     *slog.Logger
	notify  func()
}

// Card owns one verdict's price history. A fetch result is applied only if
// its generation is still current, so a symbol change or Close makes any
// in-flight fetch harmless.
type Card struct {
	env *cardEnv

	mu     sync.Mutex
	item   *insights.VerdictItem
	gen    uint64
	cancel context.CancelFunc
	state  RequestState[[]float64]
	closed bool
}

func newCard(item *insights.VerdictItem, env *cardEnv) *Card {
	c := &Card{env: env, item: item}
	c.mu.Lock()
	c.fetchLocked()
	c.mu.Unlock()
	return c
}

// Symbol returns the card's current key.
func (c *Card) Symbol() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.item.Symbol
}

// Item returns the verdict the card currently renders. Callers must not
// modify it.
func (c *Card) Item() *insights.VerdictItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.item
}

// State returns the price-history request state.
func (c *Card) State() RequestState[[]float64] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetItem points the card at a new verdict. The price history is re-fetched
// only when the symbol differs.
func (c *Card) SetItem(item *insights.VerdictItem) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev := c.item.Symbol
	c.item = item
	if item.Symbol != prev {
		c.fetchLocked()
	}
	c.mu.Unlock()
	c.env.notify()
}

// Close cancels any outstanding fetch. Results arriving later are dropped.
func (c *Card) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Card) fetchLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(c.env.ctx)
	c.cancel = cancel
	c.state = Loading[[]float64]()

	symbol := c.item.Symbol
	start := HistoryStart(c.env.now(), c.env.months)

	go func() {
		var closes []float64
		err := c.env.pool.Do(ctx, func(ctx context.Context) error {
			resp, err := c.env.fetcher.GetBars(ctx, symbol, start, insights.AdjustCashDividends)
			if err != nil {
				return err
			}
			closes = resp.Closes()
			return nil
		})
		c.finish(gen, symbol, closes, err)
	}()
}

func (c *Card) finish(gen uint64, symbol string, closes []float64, err error) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		c.env.log.Debug("dropping stale price history", "symbol", symbol, "gen", gen)
		return
	}
	c.cancel()
	c.cancel = nil
	if err != nil {
		c.state = Failed[[]float64](err.Error())
	} else {
		c.state = Loaded(closes)
	}
	c.mu.Unlock()

	if err != nil {
		c.env.log.Debug("price history unavailable", "symbol", symbol, "error", err)
	} else {
		c.env.log.Debug("price history loaded", "symbol", symbol, "points", len(closes))
	}
	c.env.notify()
}

// CardView is a render-ready snapshot of one card.
type CardView struct {
	Symbol       string
	AsOf         string
	Badge        badge.Style
	Phase        Phase
	Sparkline    *sparkline.Sparkline // nil unless loaded
	Placeholder  string               // set when Sparkline is nil
	LastClose    string
	Trend        string
	Return3M     string
	Return6M     string
	Drawdown     string
	Replacements []string // nil when there are none
}

// View snapshots the card for rendering.
func (c *Card) View() CardView {
	c.mu.Lock()
	item, state := c.item, c.state
	c.mu.Unlock()

	m := item.Metrics
	v := CardView{
		Symbol:    item.Symbol,
		AsOf:      item.AsOf,
		Badge:     badge.Present(item.Action),
		Phase:     state.Phase(),
		LastClose: "-",
		Trend:     FormatTrend(m.TrendOK),
		Return3M:  FormatPercent(m.Return3M),
		Return6M:  FormatPercent(m.Return6M),
		Drawdown:  FormatPercent(m.Drawdown),
	}
	if len(item.Replacements) > 0 {
		v.Replacements = append([]string(nil), item.Replacements...)
	}

	switch state.Phase() {
	case PhaseLoaded:
		series, _ := state.Value()
		s := sparkline.Render(series)
		v.Sparkline = &s
		if len(series) > 0 {
			v.LastClose = FormatPrice(series[len(series)-1])
		}
	case PhaseFailed:
		v.Placeholder = PlaceholderUnavailable
	default:
		v.Placeholder = PlaceholderLoading
	}
	return v
}
