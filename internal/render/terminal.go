package render

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/msalah0e/kgraph/internal/ui"
)

const (
	canvasCols = 64
	canvasRows = 16
	ruleWidth  = 66
	maxEdges   = 12
)

// TerminalOptions carries view state shown next to the graph.
type TerminalOptions struct {
	Notice    string
	Error     string
	UpdatedAt time.Time
	// Footer is printed dimmed as the last line, e.g. refresh interval hints.
	Footer string
}

// Terminal writes a text rendering of s: a position canvas, a per-node mastery
// table, the edge list, signals and legend.
func Terminal(w io.Writer, s *graph.Snapshot, opts TerminalOptions) {
	rule := "  " + strings.Repeat("─", ruleWidth-2)

	header := "Living Concept Map"
	if !opts.UpdatedAt.IsZero() {
		header += ui.Subtle.Sprintf("  %s", opts.UpdatedAt.Format("15:04:05"))
	}
	ui.FprintBanner(w, header)

	if len(s.Nodes) == 0 {
		ui.Subtle.Fprintln(w, "  No course graph data yet. Enroll in courses and build progress to activate it.")
		footer(w, rule, opts)
		return
	}

	order := columnOrder(s.Nodes)
	index := make(map[string]int, len(order))
	for i, n := range order {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i + 1
		}
	}

	ui.Subtle.Fprintln(w, rule)
	for _, line := range canvas(order) {
		fmt.Fprintln(w, "  "+line)
	}
	ui.Subtle.Fprintln(w, rule)

	for i, n := range order {
		tier := TierFor(n.Mastery)
		c := ui.Tier(tier.Name)
		fmt.Fprintf(w, "  %3d  %-24s %s %5.1f%%  %s  %s\n",
			i+1,
			ui.Truncate(n.Label, 24),
			ui.Bar(n.Mastery, 16, c),
			n.Mastery,
			importanceDots(n.Importance),
			c.Sprint(tier.Label),
		)
	}

	if styles := EdgeStyles(s); len(styles) > 0 {
		ui.Subtle.Fprintln(w, rule)
		for i, e := range styles {
			if i == maxEdges {
				ui.Subtle.Fprintf(w, "  … %d more edges\n", len(styles)-maxEdges)
				break
			}
			arrow := ui.Subtle.Sprint("→")
			if e.Stroke == strongStroke {
				arrow = ui.Info.Sprint("→")
			}
			fmt.Fprintf(w, "  %3d %s %-3d", index[e.Edge.Source], arrow, index[e.Edge.Target])
			if e.Edge.Relation != "" {
				ui.Subtle.Fprintf(w, "  %s", e.Edge.Relation)
			}
			fmt.Fprintln(w)
		}
	}

	ui.Subtle.Fprintln(w, rule)
	for _, row := range SignalRows(s.Signals) {
		fmt.Fprintf(w, "  %-14s %s\n", row.Label, row.Value)
	}
	fmt.Fprintf(w, "  %-14s %s\n", "Readiness", ui.Brand.Sprintf("%.0f%%", Readiness(s.Nodes)))

	legend := make([]string, 0, len(Tiers))
	for _, t := range Tiers {
		legend = append(legend, ui.Tier(t.Name).Sprintf("● %s %s", t.Range, t.Label))
	}
	fmt.Fprintln(w, "  "+strings.Join(legend, "  "))

	footer(w, rule, opts)
}

func footer(w io.Writer, rule string, opts TerminalOptions) {
	if opts.Notice != "" {
		ui.Info.Fprintln(w, "  "+opts.Notice)
	}
	if opts.Error != "" {
		ui.Bad.Fprintln(w, "  "+opts.Error)
	}
	if opts.Footer != "" {
		ui.Subtle.Fprintln(w, rule)
		ui.Subtle.Fprintln(w, "  "+opts.Footer)
	}
}

// columnOrder sorts nodes left to right, then top to bottom.
func columnOrder(nodes []graph.Node) []graph.Node {
	order := make([]graph.Node, len(nodes))
	copy(order, nodes)
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].X != order[j].X {
			return order[i].X < order[j].X
		}
		if order[i].Y != order[j].Y {
			return order[i].Y < order[j].Y
		}
		return order[i].ID < order[j].ID
	})
	return order
}

// canvas plots node numbers at their scaled positions. Later nodes overwrite
// earlier ones when they collide.
func canvas(order []graph.Node) []string {
	cells := make([][]string, canvasRows)
	for r := range cells {
		cells[r] = make([]string, canvasCols)
		for c := range cells[r] {
			cells[r][c] = " "
		}
	}

	for i, n := range order {
		label := strconv.Itoa(i + 1)
		row := min(max(int(n.Y/100*float64(canvasRows-1)), 0), canvasRows-1)
		col := min(max(int(n.X/100*float64(canvasCols-1)), 0), canvasCols-len(label))
		c := ui.Tier(TierFor(n.Mastery).Name)
		for k, ch := range label {
			cells[row][col+k] = c.Sprint(string(ch))
		}
	}

	lines := make([]string, canvasRows)
	for r := range cells {
		lines[r] = strings.TrimRight(strings.Join(cells[r], ""), " ")
	}
	return lines
}

func importanceDots(importance int) string {
	importance = min(max(importance, 0), 5)
	return strings.Repeat("●", importance) + ui.Subtle.Sprint(strings.Repeat("○", 5-importance))
}
