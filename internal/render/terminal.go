// Package render draws dashboard snapshots for the terminal and as a static
// HTML report.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"insights/internal/dashboard"
)

// CardWidth is the outer width of one terminal card.
const CardWidth = 36

// sparkCols leaves room for the border and padding.
const sparkCols = CardWidth - 4

var (
	symbolStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	gainStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	chipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("238")).Padding(0, 1)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	cardBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Width(CardWidth - 2)
)

// signed colors a formatted percentage by its sign.
func signed(s string) string {
	if strings.HasPrefix(s, "-") {
		return lossStyle.Render(s)
	}
	return gainStyle.Render(s)
}

// Card draws one card. spinner replaces the loading placeholder's glyph
// when non-empty.
func Card(v dashboard.CardView, spinner string) string {
	var b strings.Builder

	b.WriteString(symbolStyle.Render(v.Symbol))
	b.WriteString(" ")
	b.WriteString(v.Badge.Terminal())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("as of " + v.AsOf))
	b.WriteString("\n")

	switch {
	case v.Sparkline != nil:
		b.WriteString(v.Sparkline.Terminal(sparkCols))
	case v.Phase == dashboard.PhaseLoading && spinner != "":
		b.WriteString(dimStyle.Render(spinner + " " + v.Placeholder))
	default:
		b.WriteString(dimStyle.Render(v.Placeholder))
	}
	b.WriteString("\n")

	trend := gainStyle.Render(v.Trend)
	if v.Trend != dashboard.FormatTrend(true) {
		trend = lossStyle.Render(v.Trend)
	}
	fmt.Fprintf(&b, "Trend %s  Last %s\n", trend, v.LastClose)
	fmt.Fprintf(&b, "3M %s  6M %s  DD %s", signed(v.Return3M), signed(v.Return6M), signed(v.Drawdown))

	if len(v.Replacements) > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Replace with "))
		chips := make([]string, len(v.Replacements))
		for i, r := range v.Replacements {
			chips[i] = chipStyle.Render(r)
		}
		b.WriteString(strings.Join(chips, " "))
	}

	return cardBoxStyle.Render(b.String())
}

// Cards lays cards out in rows that fit width.
func Cards(cards []dashboard.CardView, width int, spinner string) string {
	if len(cards) == 0 {
		return ""
	}
	perRow := max(width/CardWidth, 1)

	var rows []string
	for i := 0; i < len(cards); i += perRow {
		end := min(i+perRow, len(cards))
		row := make([]string, 0, end-i)
		for _, c := range cards[i:end] {
			row = append(row, Card(c, spinner))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return strings.Join(rows, "\n")
}

// Status is the one-line summary of the analysis request.
func Status(v dashboard.View, spinner string) string {
	switch v.Phase {
	case dashboard.PhaseLoading:
		return dimStyle.Render(strings.TrimSpace(spinner + " Analyzing…"))
	case dashboard.PhaseFailed:
		return errorStyle.Render(v.Error)
	case dashboard.PhaseLoaded:
		return dimStyle.Render(fmt.Sprintf("As of %s · %d holdings", v.AsOf, len(v.Cards)))
	default:
		return dimStyle.Render("Enter comma-separated symbols and press enter")
	}
}
