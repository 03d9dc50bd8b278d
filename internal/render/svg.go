package render

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"math"
	"strings"

	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/pkg/errors"
)

// SVG draws the snapshot on a 100x100 viewBox.
func SVG(s *graph.Snapshot) string {
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" role="img" aria-label="Student knowledge graph">` + "\n")
	b.WriteString(`  <style>.node-score{font:bold 2.6px sans-serif;fill:#0f172a}.node-label{font:2.4px sans-serif;fill:#cbd5e1}</style>` + "\n")

	for _, e := range EdgeStyles(s) {
		fmt.Fprintf(&b, `  <line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s" stroke-opacity="%s" stroke-width="%s"/>`+"\n",
			num(e.X1), num(e.Y1), num(e.X2), num(e.Y2), e.Stroke, num(e.Opacity), num(e.Width))
	}

	for _, n := range s.Nodes {
		radius := NodeRadius(n.Importance)
		color := TierFor(n.Mastery).Color
		label := html.EscapeString(n.Label)
		score := math.Round(n.Mastery)

		b.WriteString("  <g>\n")
		fmt.Fprintf(&b, `    <circle cx="%s" cy="%s" r="%s" fill="%s" fill-opacity="0.22"/>`+"\n",
			num(n.X), num(n.Y), num(radius+1.4), color)
		fmt.Fprintf(&b, `    <circle cx="%s" cy="%s" r="%s" fill="%s" stroke="rgba(255, 255, 255, 0.5)" stroke-width="0.4"/>`+"\n",
			num(n.X), num(n.Y), num(radius), color)
		fmt.Fprintf(&b, `    <text x="%s" y="%s" class="node-score" text-anchor="middle">%.0f</text>`+"\n",
			num(n.X), num(n.Y+1), score)
		fmt.Fprintf(&b, `    <text x="%s" y="%s" class="node-label" text-anchor="middle">%s</text>`+"\n",
			num(n.X), num(n.Y+radius+5), label)
		fmt.Fprintf(&b, "    <title>%s: %.0f%% mastery</title>\n", label, score)
		b.WriteString("  </g>\n")
	}

	b.WriteString("</svg>\n")
	return b.String()
}

// num formats a coordinate without trailing zeros.
func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

// PageOptions controls the HTML page.
type PageOptions struct {
	Title  string
	Notice string
	Error  string
	// Live adds a websocket client that replaces the graph on every push.
	Live bool
}

// SignalRow is one formatted signal.
type SignalRow struct {
	Label string
	Value string
}

type pageData struct {
	PageOptions
	SVG       template.HTML
	Signals   []SignalRow
	Tiers     []Tier
	Readiness float64
	Empty     bool
	Source    string
	Warnings  []string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{background:#0b1120;color:#e2e8f0;font-family:system-ui,sans-serif;margin:2rem}
main{display:flex;gap:2rem;flex-wrap:wrap}
#graph{width:min(640px,100%);background:#111827;border-radius:12px}
.panel{min-width:240px}
.tier{display:inline-block;padding:2px 8px;border-radius:8px;margin:2px;color:#0f172a}
.notice{color:#93c5fd}.error{color:#f87171}.muted{color:#64748b}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<main>
<div id="graph">{{if .Empty}}<p class="muted">No course graph data yet. Enroll in courses and build progress to activate it.</p>{{else}}{{.SVG}}{{end}}</div>
<div class="panel">
<h3>Live Signals</h3>
<table id="signals">{{range .Signals}}<tr><td>{{.Label}}</td><td>{{.Value}}</td></tr>{{end}}</table>
<h3>Mastery Legend</h3>
<div>{{range .Tiers}}<span class="tier" style="background:{{.Color}}">{{.Range}} {{.Label}}</span>{{end}}</div>
<p>Graph Readiness <strong id="readiness">{{printf "%.0f" .Readiness}}%</strong></p>
<p class="muted" id="source">source: {{.Source}}{{range .Warnings}} · {{.}}{{end}}</p>
</div>
</main>
<p class="notice" id="notice">{{.Notice}}</p>
<p class="error" id="error">{{.Error}}</p>
{{if .Live}}<script>
(function(){
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");
  ws.onmessage = function(ev){
    var view = JSON.parse(ev.data);
    if (view.svg !== undefined) { document.getElementById("graph").innerHTML = view.svg; }
    document.getElementById("notice").textContent = view.notice || "";
    document.getElementById("error").textContent = view.error || "";
    document.getElementById("readiness").textContent = Math.round(view.readiness || 0) + "%";
  };
})();
</script>{{end}}
</body>
</html>
`))

// HTML renders a standalone page with the graph, signals, legend and readiness.
func HTML(s *graph.Snapshot, opts PageOptions) ([]byte, error) {
	if opts.Title == "" {
		opts.Title = "Living Concept Map"
	}

	data := pageData{
		PageOptions: opts,
		SVG:         template.HTML(SVG(s)),
		Signals:     SignalRows(s.Signals),
		Tiers:       Tiers,
		Readiness:   Readiness(s.Nodes),
		Empty:       len(s.Nodes) == 0,
		Source:      s.Meta.Source,
		Warnings:    s.Meta.Warnings,
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, errors.Wrap(err, "render html page")
	}
	return buf.Bytes(), nil
}

// SignalRows formats signals the way every view displays them.
func SignalRows(s graph.Signals) []SignalRow {
	return []SignalRow{
		{Label: "Quiz Accuracy", Value: fmt.Sprintf("%.1f%%", s.QuizAccuracy)},
		{Label: "Time Spent", Value: fmt.Sprintf("%.1fh", s.TimeSpentHours)},
		{Label: "Flashcards", Value: fmt.Sprintf("%.1f%%", s.FlashcardsPerformance)},
		{Label: "Doubts Asked", Value: fmt.Sprintf("%d", s.DoubtsAsked)},
	}
}
