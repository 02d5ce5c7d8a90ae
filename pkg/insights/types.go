// Package insights holds the wire types of the keep-or-replace analysis and
// market-data services together with a Go client for both.
package insights

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the closed set of verdicts the analysis service can return.
type Action string

const (
	ActionKeep    Action = "KEEP"
	ActionWatch   Action = "WATCH"
	ActionReplace Action = "REPLACE"
)

// Actions lists every valid Action in display order.
var Actions = []Action{ActionKeep, ActionWatch, ActionReplace}

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionKeep, ActionWatch, ActionReplace:
		return true
	}
	return false
}

// UnmarshalJSON rejects values outside the closed enum so that a malformed
// response fails decoding instead of reaching the presenter.
func (a *Action) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v := Action(s)
	if !v.Valid() {
		return fmt.Errorf("unknown action %q", s)
	}
	*a = v
	return nil
}

// PortfolioRequest is the body of POST /v1/analysis/portfolio/keep_or_replace.
type PortfolioRequest struct {
	AccountID string   `json:"account_id"`
	Symbols   []string `json:"symbols"`
	Benchmark string   `json:"benchmark"`
	Strategy  string   `json:"strategy"`
}

// Metrics are the per-symbol figures backing a verdict. Returns and drawdown
// are fractions (0.05 = 5%).
type Metrics struct {
	TrendOK  bool    `json:"trend_ok"`
	Return3M float64 `json:"r3m"`
	Return6M float64 `json:"r6m"`
	Drawdown float64 `json:"drawdown"`
}

// VerdictItem is one symbol's decision.
type VerdictItem struct {
	Symbol       string   `json:"symbol"`
	AsOf         string   `json:"as_of"`
	Action       Action   `json:"action"`
	Metrics      Metrics  `json:"metrics"`
	Replacements []string `json:"replacements"`
}

// PortfolioResponse is the analysis service's success body. Items are in
// render order.
type PortfolioResponse struct {
	AsOf  string        `json:"as_of"`
	Items []VerdictItem `json:"items"`
}

// Validate checks fields that decoding alone cannot enforce. An item with no
// "action" key decodes to the empty Action without calling UnmarshalJSON.
func (r *PortfolioResponse) Validate() error {
	for i, item := range r.Items {
		if !item.Action.Valid() {
			return fmt.Errorf("item %d (%s): unknown action %q", i, item.Symbol, item.Action)
		}
	}
	return nil
}

// Bar is one adjusted daily bar from GET /v1/md/bars.
type Bar struct {
	TS     string  `json:"ts,omitempty"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume float64 `json:"v"`
}

// BarsResponse is the market-data service's success body.
type BarsResponse struct {
	Symbol string `json:"symbol,omitempty"`
	Adjust string `json:"adjust,omitempty"`
	Bars   []Bar  `json:"bars"`
}

// Closes extracts the close of every bar in returned order.
func (r BarsResponse) Closes() []float64 {
	out := make([]float64, len(r.Bars))
	for i, b := range r.Bars {
		out[i] = b.Close
	}
	return out
}

// Price adjustment modes understood by the market-data service.
const (
	AdjustCashDividends = "CASHDIVIDENDS"
	AdjustTotalReturn   = "TOTALRETURN"
	AdjustCapital       = "CAPITAL"
)

// ParseSymbols splits free text on commas, trims each entry, and drops empty
// ones. Order and duplicates are preserved.
func ParseSymbols(text string) []string {
	symbols := []string{}
	for _, s := range strings.Split(text, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}
