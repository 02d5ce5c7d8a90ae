package render

import (
	"html/template"
	"io"

	"insights/internal/dashboard"
)

var reportTmpl = template.Must(template.New("report").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Keep or Replace</title>
<style>
body{font-family:system-ui,sans-serif;margin:16px}
.grid{display:grid;grid-template-columns:repeat(auto-fill,minmax(260px,1fr));gap:12px}
.card{border:1px solid #e5e7eb;border-radius:8px;padding:12px}
.chip{background:#f3f4f6;border-radius:6px;padding:2px 6px;margin-right:4px}
.muted{color:#6b7280}
</style></head><body>
<h2>Holdings Review</h2>
{{if .Error}}<p style="color:#b91c1c">{{.Error}}</p>{{end}}
{{if .AsOf}}<p class="muted">As of {{.AsOf}}</p>{{end}}
<div class="grid">
{{range .Cards}}<div class="card">
<div><strong>{{.Symbol}}</strong> <span style="{{.BadgeCSS}}">{{.Badge.Label}}</span></div>
<div class="muted">as of {{.AsOf}}</div>
<div>{{if .SVG}}{{.SVG}}{{else}}<span class="muted">{{.Placeholder}}</span>{{end}}</div>
<div>Trend: {{.Trend}} · 3M: {{.Return3M}} · 6M: {{.Return6M}} · DD: {{.Drawdown}}</div>
{{if .Replacements}}<div>Replace with: {{range .Replacements}}<span class="chip">{{.}}</span>{{end}}</div>{{end}}
</div>
{{end}}</div>
</body></html>
`))

type htmlCard struct {
	dashboard.CardView
	BadgeCSS template.CSS
	SVG      template.HTML
}

// HTML writes v as a standalone page with inline SVG sparklines.
func HTML(w io.Writer, v dashboard.View) error {
	data := struct {
		Error string
		AsOf  string
		Cards []htmlCard
	}{Error: v.Error, AsOf: v.AsOf}

	for _, c := range v.Cards {
		hc := htmlCard{CardView: c, BadgeCSS: template.CSS(c.Badge.CSS())}
		if c.Sparkline != nil {
			hc.SVG = template.HTML(c.Sparkline.SVG())
		}
		data.Cards = append(data.Cards, hc)
	}
	return reportTmpl.Execute(w, data)
}
