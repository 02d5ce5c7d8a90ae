// Package review is the development backend's stand-in for the analysis
// service: it scores held symbols on trend, momentum, and drawdown and
// suggests replacements ranked by the momo_trend strategy.
package review

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"insights/pkg/insights"
)

// Review windows in trading days.
const (
	FastMA      = 50
	SlowMA      = 200
	Lookback3M  = 63
	Lookback6M  = 126
	MaxReplaced = 3

	// KeepDrawdown is the deepest drawdown a fully healthy holding may
	// carry and still be kept.
	KeepDrawdown = -0.2
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrNoData          = errors.New("no data")
)

// History is one symbol's daily closes with their dates, oldest first.
type History struct {
	Dates  []time.Time
	Closes []float64
}

// Last returns the date of the most recent bar.
func (h History) Last() (time.Time, bool) {
	if len(h.Dates) == 0 {
		return time.Time{}, false
	}
	return h.Dates[len(h.Dates)-1], true
}

// Evaluate computes a holding's metrics and verdict. Metrics that need more
// history than is available are reported as zero.
func Evaluate(closes []float64) (insights.Action, insights.Metrics) {
	m := insights.Metrics{
		TrendOK:  trendOK(closes, FastMA, SlowMA),
		Drawdown: drawdown(closes),
	}
	m.Return3M, _ = pctChange(closes, Lookback3M)
	m.Return6M, _ = pctChange(closes, Lookback6M)

	score := 0
	if m.TrendOK {
		score++
	}
	if m.Return3M > 0 {
		score++
	}
	if m.Return6M > 0 {
		score++
	}

	switch {
	case score == 3 && m.Drawdown > KeepDrawdown:
		return insights.ActionKeep, m
	case score >= 1:
		return insights.ActionWatch, m
	default:
		return insights.ActionReplace, m
	}
}

// strategies maps a strategy name (the part before "@") to its ranker.
var strategies = map[string]MomoTrend{
	"momo_trend": DefaultMomoTrend,
}

// KeepOrReplace reviews the requested symbols present in universe, in
// request order, and attaches up to three non-held replacement candidates
// to every REPLACE verdict. Requested symbols without data are skipped.
func KeepOrReplace(req insights.PortfolioRequest, universe map[string]History) (*insights.PortfolioResponse, error) {
	name, _, _ := strings.Cut(req.Strategy, "@")
	strategy, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownStrategy, req.Strategy)
	}

	var asOf time.Time
	for _, h := range universe {
		if d, ok := h.Last(); ok && d.After(asOf) {
			asOf = d
		}
	}
	if asOf.IsZero() {
		return nil, ErrNoData
	}
	asOfText := asOf.Format("2006-01-02")

	held := make(map[string]bool, len(req.Symbols))
	for _, s := range req.Symbols {
		held[s] = true
	}
	var candidates []string
	for _, s := range strategy.Rank(universe) {
		if len(candidates) == MaxReplaced {
			break
		}
		if !held[s] {
			candidates = append(candidates, s)
		}
	}

	resp := &insights.PortfolioResponse{AsOf: asOfText, Items: []insights.VerdictItem{}}
	for _, s := range req.Symbols {
		h, ok := universe[s]
		if !ok || len(h.Closes) == 0 {
			continue
		}
		action, metrics := Evaluate(h.Closes)
		item := insights.VerdictItem{
			Symbol:       s,
			AsOf:         asOfText,
			Action:       action,
			Metrics:      metrics,
			Replacements: []string{},
		}
		if action == insights.ActionReplace {
			item.Replacements = append(item.Replacements, candidates...)
		}
		resp.Items = append(resp.Items, item)
	}
	return resp, nil
}
