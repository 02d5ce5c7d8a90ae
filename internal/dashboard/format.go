package dashboard

import (
	"fmt"
	"math"
)

// FormatPercent formats a fraction as a percentage with one decimal:
// 0.1234 → "12.3%", -0.05 → "-5.0%".
func FormatPercent(x float64) string {
	return fmt.Sprintf("%.1f%%", x*100)
}

// FormatPrice formats a price with two decimals, or "-" when absent.
func FormatPrice(p float64) string {
	if p == 0 || math.IsNaN(p) {
		return "-"
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatTrend labels the trend flag.
func FormatTrend(ok bool) string {
	if ok {
		return "OK"
	}
	return "Broken"
}
