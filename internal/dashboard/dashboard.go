// Package dashboard holds the keep-or-replace dashboard state machines: the
// dashboard controller that submits a portfolio, and one card controller
// per returned verdict that loads its price history independently.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"insights/pkg/insights"
)

// FallbackError is shown when a failed analysis carries no error text.
const FallbackError = "request failed"

// Analyzer submits a portfolio for review.
type Analyzer interface {
	KeepOrReplace(ctx context.Context, req insights.PortfolioRequest) (*insights.PortfolioResponse, error)
}

// Options configures a Dashboard. Zero fields take defaults.
type Options struct {
	AccountID     string
	Benchmark     string
	Strategy      string
	HistoryMonths int
	Pool          *FetchPool
	Logger        *slog.Logger
	Now           func() time.Time
}

func (o *Options) setDefaults() {
	if o.AccountID == "" {
		o.AccountID = "demo"
	}
	if o.Benchmark == "" {
		o.Benchmark = "SPY"
	}
	if o.Strategy == "" {
		o.Strategy = "momo_trend@0.1.0"
	}
	if o.HistoryMonths <= 0 {
		o.HistoryMonths = 6
	}
	if o.Pool == nil {
		o.Pool = NewFetchPool(DefaultFetchWorkers, nil)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Dashboard owns the symbol input, the analysis request lifecycle, and the
// cards built from the latest successful response. Only the most recent
// Submit can change state; outcomes of superseded submits are discarded.
type Dashboard struct {
	analyzer Analyzer
	opts     Options
	log      *slog.Logger
	env      *cardEnv
	stop     context.CancelFunc
	changes  chan struct{}

	mu     sync.Mutex
	text   string
	gen    uint64
	cancel context.CancelFunc
	state  RequestState[*insights.PortfolioResponse]
	cards  []*Card
	closed bool
}

// New creates an idle dashboard.
func New(analyzer Analyzer, fetcher BarFetcher, opts Options) *Dashboard {
	opts.setDefaults()
	ctx, stop := context.WithCancel(context.Background())

	d := &Dashboard{
		analyzer: analyzer,
		opts:     opts,
		log:      opts.Logger.With("component", "dashboard"),
		stop:     stop,
		changes:  make(chan struct{}, 1),
	}
	d.env = &cardEnv{
		ctx:     ctx,
		fetcher: fetcher,
		pool:    opts.Pool,
		months:  opts.HistoryMonths,
		now:     opts.Now,
		log:     opts.Logger.With("component", "card"),
		notify:  d.notify,
	}
	return d
}

// Changes is signalled after any state change of the dashboard or one of
// its cards. Signals coalesce; receivers should re-read Snapshot.
func (d *Dashboard) Changes() <-chan struct{} { return d.changes }

func (d *Dashboard) notify() {
	select {
	case d.changes <- struct{}{}:
	default:
	}
}

// SetSymbolsText stores the raw input verbatim.
func (d *Dashboard) SetSymbolsText(text string) {
	d.mu.Lock()
	d.text = text
	d.mu.Unlock()
	d.notify()
}

// SymbolsText returns the raw input.
func (d *Dashboard) SymbolsText() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// CanSubmit is false while a request is loading; front ends disable their
// submit control on it.
func (d *Dashboard) CanSubmit() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed && d.state.Phase() != PhaseLoading
}

// State returns the analysis request state.
func (d *Dashboard) State() RequestState[*insights.PortfolioResponse] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Cards returns the current cards in response order.
func (d *Dashboard) Cards() []*Card {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Card(nil), d.cards...)
}

// Request builds the portfolio request for the current input. An input with
// no symbols still yields a request; the service decides what that means.
func (d *Dashboard) Request() insights.PortfolioRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.requestLocked()
}

func (d *Dashboard) requestLocked() insights.PortfolioRequest {
	return insights.PortfolioRequest{
		AccountID: d.opts.AccountID,
		Symbols:   insights.ParseSymbols(d.text),
		Benchmark: d.opts.Benchmark,
		Strategy:  d.opts.Strategy,
	}
}

// Submit starts a new analysis request and supersedes any outstanding one.
// It returns immediately; progress is reported through Changes.
func (d *Dashboard) Submit() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.gen++
	gen := d.gen
	ctx, cancel := context.WithCancel(d.env.ctx)
	d.cancel = cancel
	d.state = Loading[*insights.PortfolioResponse]()
	req := d.requestLocked()
	d.mu.Unlock()

	d.log.Info("submitting portfolio", "gen", gen, "symbols", len(req.Symbols))
	d.notify()

	go func() {
		resp, err := d.analyzer.KeepOrReplace(ctx, req)
		d.finish(gen, resp, err)
	}()
}

func (d *Dashboard) finish(gen uint64, resp *insights.PortfolioResponse, err error) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		d.log.Debug("dropping stale analysis outcome", "gen", gen, "error", err)
		return
	}
	d.cancel()
	d.cancel = nil

	if err != nil {
		d.state = Failed[*insights.PortfolioResponse](failureMessage(err))
		d.mu.Unlock()
		d.log.Warn("analysis failed", "gen", gen, "error", err)
		d.notify()
		return
	}

	d.state = Loaded(resp)
	d.reconcileLocked(resp.Items)
	d.mu.Unlock()

	d.log.Info("analysis loaded", "gen", gen, "asOf", resp.AsOf, "items", len(resp.Items))
	d.notify()
}

// failureMessage prefers the service's own error text.
func failureMessage(err error) string {
	var apiErr *insights.APIError
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		return apiErr.Body
	}
	return FallbackError
}

// reconcileLocked replaces the card list with one card per item. Cards are
// keyed by symbol: an existing card with the same symbol is kept (no
// re-fetch) and each existing card is claimed at most once, so duplicate
// symbols in a response each get a card. Unclaimed cards are closed.
func (d *Dashboard) reconcileLocked(items []insights.VerdictItem) {
	existing := make(map[string][]*Card, len(d.cards))
	for _, c := range d.cards {
		sym := c.Symbol()
		existing[sym] = append(existing[sym], c)
	}

	next := make([]*Card, 0, len(items))
	for i := range items {
		item := &items[i]
		if q := existing[item.Symbol]; len(q) > 0 {
			existing[item.Symbol] = q[1:]
			q[0].SetItem(item)
			next = append(next, q[0])
			continue
		}
		next = append(next, newCard(item, d.env))
	}

	for _, q := range existing {
		for _, c := range q {
			c.Close()
		}
	}
	d.cards = next
}

// Close cancels every outstanding request. The dashboard ignores later
// outcomes and further submits.
func (d *Dashboard) Close() {
	d.mu.Lock()
	d.closed = true
	cards := d.cards
	d.mu.Unlock()

	d.stop()
	for _, c := range cards {
		c.Close()
	}
}

// View is a render-ready snapshot of the whole dashboard.
type View struct {
	SymbolsText string
	Phase       Phase
	Error       string
	AsOf        string
	CanSubmit   bool
	Cards       []CardView
}

// Snapshot captures the dashboard and all cards for rendering.
func (d *Dashboard) Snapshot() View {
	d.mu.Lock()
	v := View{
		SymbolsText: d.text,
		Phase:       d.state.Phase(),
		Error:       d.state.Err(),
		CanSubmit:   !d.closed && d.state.Phase() != PhaseLoading,
	}
	if resp, ok := d.state.Value(); ok {
		v.AsOf = resp.AsOf
	}
	cards := append([]*Card(nil), d.cards...)
	d.mu.Unlock()

	v.Cards = make([]CardView, len(cards))
	for i, c := range cards {
		v.Cards[i] = c.View()
	}
	return v
}

// Settled reports whether the dashboard and every card have left Loading.
func (d *Dashboard) Settled() bool {
	if d.State().Phase() == PhaseLoading {
		return false
	}
	for _, c := range d.Cards() {
		if c.State().Phase() == PhaseLoading {
			return false
		}
	}
	return true
}

// Wait blocks until the dashboard is settled or ctx is done.
func (d *Dashboard) Wait(ctx context.Context) error {
	for !d.Settled() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.changes:
		}
	}
	return nil
}
