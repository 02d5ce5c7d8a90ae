package review

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// MomoTrend ranks symbols by a blend of relative momentum, trend, and
// volatility-adjusted recent return.
type MomoTrend struct {
	Lookbacks     [3]int
	FastMA        int
	SlowMA        int
	VolWindow     int
	RecentWindow  int
	RelWeight     float64
	TrendWeight   float64
	VolAdjWeight  float64
	VolAdjCeiling float64
}

// DefaultMomoTrend is the momo_trend@0.1.0 parameter set.
var DefaultMomoTrend = MomoTrend{
	Lookbacks:     [3]int{21, 63, 126},
	FastMA:        50,
	SlowMA:        200,
	VolWindow:     14,
	RecentWindow:  21,
	RelWeight:     0.5,
	TrendWeight:   0.3,
	VolAdjWeight:  0.2,
	VolAdjCeiling: 5,
}

// Score returns the composite score for one close series. It reports false
// when the history is too short for any component or volatility is zero.
func (m MomoTrend) Score(closes []float64) (float64, bool) {
	var rel float64
	for _, lb := range m.Lookbacks {
		r, ok := pctChange(closes, lb)
		if !ok {
			return 0, false
		}
		rel += r
	}
	rel /= float64(len(m.Lookbacks))

	trend := 0.0
	if trendOK(closes, m.FastMA, m.SlowMA) {
		trend = 1
	}

	rets := returns(closes)
	if len(rets) < m.VolWindow || len(rets) < m.RecentWindow {
		return 0, false
	}
	vol := stdDev(rets[len(rets)-m.VolWindow:])
	if vol == 0 || math.IsNaN(vol) {
		return 0, false
	}
	volAdj := clamp(floats.Sum(rets[len(rets)-m.RecentWindow:])/vol, -m.VolAdjCeiling, m.VolAdjCeiling)

	return m.RelWeight*rel + m.TrendWeight*trend + m.VolAdjWeight*volAdj, true
}

// Rank scores every series and returns the symbols in descending score
// order. Unscorable symbols are left out; ties break by symbol.
func (m MomoTrend) Rank(universe map[string]History) []string {
	type scored struct {
		symbol string
		score  float64
	}
	var all []scored
	for sym, h := range universe {
		if s, ok := m.Score(h.Closes); ok {
			all = append(all, scored{sym, s})
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].symbol < all[j].symbol
	})

	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.symbol
	}
	return out
}
