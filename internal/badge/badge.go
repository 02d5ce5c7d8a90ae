// Package badge maps a verdict action to its fixed visual style.
package badge

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"insights/pkg/insights"
)

// Style is the visual record for one action.
type Style struct {
	Label        string
	Background   string
	Foreground   string
	PaddingX     int // px
	PaddingY     int // px
	BorderRadius int // px
	FontWeight   int
	FontSize     int // px
}

func style(label, bg, fg string) Style {
	return Style{
		Label:        label,
		Background:   bg,
		Foreground:   fg,
		PaddingX:     6,
		PaddingY:     2,
		BorderRadius: 6,
		FontWeight:   600,
		FontSize:     12,
	}
}

var styles = map[insights.Action]Style{
	insights.ActionKeep:    style("KEEP", "#dcfce7", "#166534"),
	insights.ActionWatch:   style("WATCH", "#fef9c3", "#854d0e"),
	insights.ActionReplace: style("REPLACE", "#fee2e2", "#991b1b"),
}

// Present returns the style for action. The action set is closed, so an
// unknown value is a programming error and panics.
func Present(action insights.Action) Style {
	s, ok := styles[action]
	if !ok {
		panic(fmt.Sprintf("badge: unknown action %q", string(action)))
	}
	return s
}

// CSS renders the style as an inline style attribute value.
func (s Style) CSS() string {
	return fmt.Sprintf("background:%s;color:%s;padding:%dpx %dpx;border-radius:%dpx;font-weight:%d;font-size:%dpx",
		s.Background, s.Foreground, s.PaddingY, s.PaddingX, s.BorderRadius, s.FontWeight, s.FontSize)
}

// Terminal renders the label with the badge colors.
func (s Style) Terminal() string {
	return lipgloss.NewStyle().
		Bold(s.FontWeight >= 600).
		Background(lipgloss.Color(s.Background)).
		Foreground(lipgloss.Color(s.Foreground)).
		Padding(0, 1).
		Render(s.Label)
}
