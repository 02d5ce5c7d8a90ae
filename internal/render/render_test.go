package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insights/internal/badge"
	"insights/internal/dashboard"
	"insights/internal/sparkline"
	"insights/pkg/insights"
)

func loadedCard() dashboard.CardView {
	s := sparkline.Render([]float64{10, 12, 11, 14})
	return dashboard.CardView{
		Symbol:       "AAPL",
		AsOf:         "2024-08-30",
		Badge:        badge.Present(insights.ActionReplace),
		Phase:        dashboard.PhaseLoaded,
		Sparkline:    &s,
		LastClose:    "14.00",
		Trend:        "Broken",
		Return3M:     "-5.0%",
		Return6M:     "12.3%",
		Drawdown:     "-20.0%",
		Replacements: []string{"NVDA", "AMD"},
	}
}

func failedCard() dashboard.CardView {
	return dashboard.CardView{
		Symbol:      "MSFT",
		AsOf:        "2024-08-30",
		Badge:       badge.Present(insights.ActionKeep),
		Phase:       dashboard.PhaseFailed,
		Placeholder: dashboard.PlaceholderUnavailable,
		LastClose:   "-",
		Trend:       "OK",
		Return3M:    "1.0%",
		Return6M:    "2.0%",
		Drawdown:    "0.0%",
	}
}

func TestCard(t *testing.T) {
	out := Card(loadedCard(), "")
	for _, want := range []string{"AAPL", "REPLACE", "as of 2024-08-30", "Broken", "-5.0%", "12.3%", "-20.0%", "Replace with", "NVDA", "AMD"} {
		assert.Contains(t, out, want)
	}

	out = Card(failedCard(), "")
	assert.Contains(t, out, "unavailable")
	assert.Contains(t, out, "KEEP")
	assert.NotContains(t, out, "Replace with")
}

func TestCardLoadingShowsSpinner(t *testing.T) {
	v := failedCard()
	v.Phase = dashboard.PhaseLoading
	v.Placeholder = dashboard.PlaceholderLoading

	assert.Contains(t, Card(v, "⣾"), "⣾ loading…")
	assert.Contains(t, Card(v, ""), "loading…")
}

func TestCardsWrapRows(t *testing.T) {
	cards := []dashboard.CardView{loadedCard(), failedCard(), loadedCard()}

	narrow := Cards(cards, CardWidth, "")
	wide := Cards(cards, CardWidth*3, "")
	assert.Greater(t, strings.Count(narrow, "\n"), strings.Count(wide, "\n"))
	assert.Empty(t, Cards(nil, 80, ""))
}

func TestStatus(t *testing.T) {
	assert.Contains(t, Status(dashboard.View{Phase: dashboard.PhaseFailed, Error: "boom"}, ""), "boom")
	assert.Contains(t, Status(dashboard.View{Phase: dashboard.PhaseLoading}, "*"), "Analyzing")
	assert.Contains(t, Status(dashboard.View{Phase: dashboard.PhaseLoaded, AsOf: "2024-08-30"}, ""), "As of 2024-08-30")
	assert.Contains(t, Status(dashboard.View{}, ""), "press enter")
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	err := HTML(&buf, dashboard.View{
		Phase: dashboard.PhaseLoaded,
		AsOf:  "2024-08-30",
		Cards: []dashboard.CardView{loadedCard(), failedCard()},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<polyline")
	assert.Contains(t, out, "background:#fee2e2;color:#991b1b")
	assert.Contains(t, out, `<span class="chip">NVDA</span>`)
	assert.Contains(t, out, "unavailable")
	assert.Contains(t, out, "As of 2024-08-30")
}
