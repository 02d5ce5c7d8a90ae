package review

import (
	"math"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// sma returns the simple moving average of the last n closes, or false when
// there are fewer than n.
func sma(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n {
		return 0, false
	}
	out := talib.Sma(closes, n)
	v := out[len(out)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// pctChange is the fractional change of the last close over n bars earlier.
func pctChange(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) <= n {
		return 0, false
	}
	prev := closes[len(closes)-1-n]
	if prev == 0 {
		return 0, false
	}
	return closes[len(closes)-1]/prev - 1, true
}

// drawdown is the last close relative to the running peak, minus one.
func drawdown(closes []float64) float64 {
	if len(closes) == 0 {
		return 0
	}
	peak := floats.Max(closes)
	if peak == 0 {
		return 0
	}
	return closes[len(closes)-1]/peak - 1
}

// returns are the daily fractional changes; len(closes)-1 entries.
func returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		out[i-1] = closes[i]/closes[i-1] - 1
	}
	return out
}

// trendOK reports whether the fast moving average is above the slow one.
// Too little history counts as a broken trend.
func trendOK(closes []float64, fast, slow int) bool {
	f, ok1 := sma(closes, fast)
	s, ok2 := sma(closes, slow)
	return ok1 && ok2 && f > s
}

func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.StdDev(xs, nil)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
