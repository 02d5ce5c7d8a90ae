// Package sparkline renders a price series as a compact, axis-less line.
package sparkline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gonum.org/v1/gonum/floats"
)

// Default canvas size and stroke.
const (
	DefaultWidth       = 120
	DefaultHeight      = 36
	DefaultStrokeWidth = 2
)

// Trend classifies a series by comparing its last value with its first.
type Trend int

const (
	// Flat marks an empty canvas; no line is drawn.
	Flat Trend = iota
	// Up means last >= first.
	Up
	// Down means last < first.
	Down
)

func (t Trend) String() string {
	switch t {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "flat"
	}
}

// Palette maps each drawn trend to a stroke color.
type Palette struct {
	Up   string
	Down string
}

// DefaultPalette is green for rising series and red for falling ones.
var DefaultPalette = Palette{Up: "#16a34a", Down: "#dc2626"}

// Color returns the stroke color for t. Flat has no stroke.
func (p Palette) Color(t Trend) string {
	switch t {
	case Up:
		return p.Up
	case Down:
		return p.Down
	default:
		return ""
	}
}

// Point is a canvas coordinate; y grows downward.
type Point struct {
	X, Y float64
}

// Sparkline is the rendered geometry of one series.
type Sparkline struct {
	Width       float64
	Height      float64
	StrokeWidth float64
	Points      []Point
	Trend       Trend
	Color       string
}

// Empty reports whether no line is drawn.
func (s Sparkline) Empty() bool { return len(s.Points) == 0 }

type options struct {
	width, height, stroke float64
	palette               Palette
}

// Option adjusts Render.
type Option func(*options)

// WithSize sets the canvas width and height.
func WithSize(width, height float64) Option {
	return func(o *options) { o.width, o.height = width, height }
}

// WithStrokeWidth sets the line thickness.
func WithStrokeWidth(w float64) Option {
	return func(o *options) { o.stroke = w }
}

// WithPalette replaces the trend colors.
func WithPalette(p Palette) Option {
	return func(o *options) { o.palette = p }
}

// Render maps series onto the canvas. Fewer than two points yields an empty
// canvas of the configured size. A constant series uses a range of 1, so
// all of its points share one finite y position (y = height) and never
// divide by zero.
func Render(series []float64, opts ...Option) Sparkline {
	o := options{
		width:   DefaultWidth,
		height:  DefaultHeight,
		stroke:  DefaultStrokeWidth,
		palette: DefaultPalette,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := Sparkline{Width: o.width, Height: o.height, StrokeWidth: o.stroke}
	n := len(series)
	if n < 2 {
		return s
	}

	lo, hi := floats.Min(series), floats.Max(series)
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}
	stepX := o.width / float64(n-1)

	s.Points = make([]Point, n)
	for i, v := range series {
		s.Points[i] = Point{
			X: float64(i) * stepX,
			Y: o.height - (v-lo)/rng*o.height,
		}
	}

	s.Trend = Down
	if series[n-1] >= series[0] {
		s.Trend = Up
	}
	s.Color = o.palette.Color(s.Trend)
	return s
}

// SVG encodes the sparkline as a standalone <svg> element.
func (s Sparkline) SVG() string {
	w, h := num(s.Width), num(s.Height)
	if s.Empty() {
		return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s"></svg>`, w, h)
	}

	pts := make([]string, len(s.Points))
	for i, p := range s.Points {
		pts[i] = num(p.X) + "," + num(p.Y)
	}
	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s"><polyline fill="none" stroke="%s" stroke-width="%s" points="%s"/></svg>`,
		w, h, s.Color, num(s.StrokeWidth), strings.Join(pts, " "))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Block elements for sub-character vertical resolution (1/8 to 8/8).
var blockChars = [9]rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Terminal draws the line as a single row of block glyphs, cols wide,
// colored by trend. An empty sparkline yields cols spaces.
func (s Sparkline) Terminal(cols int) string {
	if cols <= 0 {
		return ""
	}
	if s.Empty() {
		return strings.Repeat(" ", cols)
	}

	// Sample the y coordinate at each column's x position.
	var sb strings.Builder
	for c := 0; c < cols; c++ {
		x := s.Width * float64(c) / float64(max(cols-1, 1))
		y := s.yAt(x)
		level := 1
		if s.Height > 0 {
			level = min(max(1+int((s.Height-y)/s.Height*7+0.5), 1), 8)
		}
		sb.WriteRune(blockChars[level])
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color)).Render(sb.String())
}

// yAt linearly interpolates the line at x.
func (s Sparkline) yAt(x float64) float64 {
	pts := s.Points
	if x <= pts[0].X {
		return pts[0].Y
	}
	for i := 1; i < len(pts); i++ {
		if x <= pts[i].X {
			a, b := pts[i-1], pts[i]
			if b.X == a.X {
				return b.Y
			}
			return a.Y + (b.Y-a.Y)*(x-a.X)/(b.X-a.X)
		}
	}
	return pts[len(pts)-1].Y
}
