// Package render turns raw or partial graph snapshots into fully normalized ones
// and draws them as SVG, HTML or terminal output.
//
// Normalization never fails on missing or out-of-range fields. Numbers are clamped
// and defaulted; self-edges are dropped.
package render

import (
	"math"

	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/pkg/errors"
)

// ErrNoSnapshot is returned by Normalize when there is nothing to normalize.
var ErrNoSnapshot = errors.New("no snapshot to normalize")

const (
	defaultMastery    = 0
	defaultImportance = 1
	defaultPosition   = 50

	untitled = "Untitled"
)

// Tier is a mastery band used for color and legend purposes.
type Tier struct {
	Name  string
	Label string
	Range string
	Color string
	Min   float64
}

// Tiers lists mastery bands from highest to lowest. Lower bounds are inclusive.
var Tiers = []Tier{
	{Name: "strong", Label: "Strong", Range: "80-100", Color: "#34d399", Min: 80},
	{Name: "growing", Label: "Growing", Range: "60-79", Color: "#60a5fa", Min: 60},
	{Name: "at_risk", Label: "At Risk", Range: "40-59", Color: "#fbbf24", Min: 40},
	{Name: "needs_support", Label: "Needs Support", Range: "0-39", Color: "#f87171", Min: 0},
}

// TierFor returns the band a mastery value falls in.
func TierFor(mastery float64) Tier {
	for _, t := range Tiers {
		if mastery >= t.Min {
			return t
		}
	}
	return Tiers[len(Tiers)-1]
}

// Normalize maps a raw snapshot to one ready for drawing. Mastery and positions
// are clamped to [0, 100], importance to [1, 5], and missing values defaulted.
// Nodes without an id are skipped. Meta counts reflect the normalized content.
func Normalize(raw *graph.RawSnapshot) (*graph.Snapshot, error) {
	if raw == nil {
		return nil, ErrNoSnapshot
	}

	nodes := make([]graph.Node, 0, len(raw.Nodes))
	for _, n := range raw.Nodes {
		if n.ID == "" {
			continue
		}
		nodes = append(nodes, NormalizeNode(n))
	}
	edges := FilterEdges(raw.Edges)

	meta := raw.Meta
	meta.NodeCount = len(nodes)
	meta.EdgeCount = len(edges)
	if meta.Warnings != nil {
		meta.Warnings = append([]string(nil), meta.Warnings...)
	}

	return &graph.Snapshot{
		Nodes:   nodes,
		Edges:   edges,
		Signals: NormalizeSignals(raw.Signals),
		Meta:    meta,
	}, nil
}

// NormalizeNode clamps and defaults a single node.
func NormalizeNode(n graph.RawNode) graph.Node {
	return graph.Node{
		ID:         string(n.ID),
		Label:      n.Label.Or(untitled),
		Mastery:    clamp(n.Mastery.Or(defaultMastery), 0, 100),
		Importance: int(math.Round(clamp(n.Importance.Or(defaultImportance), 1, 5))),
		Category:   n.Category.Or("other"),
		Level:      n.Level.Or(graph.LevelAllLevels),
		X:          clamp(n.X.Or(defaultPosition), 0, 100),
		Y:          clamp(n.Y.Or(defaultPosition), 0, 100),
	}
}

// NormalizeSignals defaults missing signals to zero.
func NormalizeSignals(s graph.RawSignals) graph.Signals {
	return graph.Signals{
		QuizAccuracy:          s.QuizAccuracy.Or(0),
		TimeSpentHours:        s.TimeSpentHours.Or(0),
		FlashcardsPerformance: s.FlashcardsPerformance.Or(0),
		FlashcardsGenerated:   int(math.Round(s.FlashcardsGenerated.Or(0))),
		DoubtsAsked:           int(math.Round(s.DoubtsAsked.Or(0))),
	}
}

// FilterEdges converts raw edges, dropping self-edges and edges with a blank endpoint.
// Edges that reference missing nodes are kept; drawing code skips them.
func FilterEdges(raw []graph.RawEdge) []graph.Edge {
	edges := make([]graph.Edge, 0, len(raw))
	for _, e := range raw {
		if e.Source == "" || e.Target == "" || e.Source == e.Target {
			continue
		}
		edges = append(edges, graph.Edge{
			Source:   string(e.Source),
			Target:   string(e.Target),
			Relation: string(e.Relation),
		})
	}
	return edges
}

// Readiness is the mean mastery of all nodes, or 0 for an empty graph.
func Readiness(nodes []graph.Node) float64 {
	if len(nodes) == 0 {
		return 0
	}
	var sum float64
	for _, n := range nodes {
		sum += n.Mastery
	}
	return sum / float64(len(nodes))
}

// NodeRadius is the drawn radius of a node in viewBox units.
func NodeRadius(importance int) float64 {
	return 4 + 1.4*float64(importance)
}

// EdgeStyle is a drawable edge with endpoint coordinates resolved.
type EdgeStyle struct {
	Edge     graph.Edge
	X1, Y1   float64
	X2, Y2   float64
	Strength float64
	Stroke   string
	Opacity  float64
	Width    float64
}

const (
	strongStroke = "#60a5fa"
	weakStroke   = "#94a3b8"
)

// StyleEdge derives stroke attributes from the masteries of both endpoints.
func StyleEdge(source, target graph.Node) EdgeStyle {
	strength := clamp((source.Mastery+target.Mastery)/200, 0.2, 1)
	stroke := weakStroke
	if source.Mastery >= 60 {
		stroke = strongStroke
	}
	return EdgeStyle{
		Edge:     graph.Edge{Source: source.ID, Target: target.ID},
		X1:       source.X,
		Y1:       source.Y,
		X2:       target.X,
		Y2:       target.Y,
		Strength: strength,
		Stroke:   stroke,
		Opacity:  0.2 + 0.6*strength,
		Width:    0.55 + 0.85*strength,
	}
}

// EdgeStyles styles every edge of s whose endpoints both exist.
func EdgeStyles(s *graph.Snapshot) []EdgeStyle {
	byID := make(map[string]graph.Node, len(s.Nodes))
	for _, n := range s.Nodes {
		if _, dup := byID[n.ID]; !dup {
			byID[n.ID] = n
		}
	}

	styles := make([]EdgeStyle, 0, len(s.Edges))
	for _, e := range s.Edges {
		if e.Source == e.Target {
			continue
		}
		source, ok := byID[e.Source]
		if !ok {
			continue
		}
		target, ok := byID[e.Target]
		if !ok {
			continue
		}
		style := StyleEdge(source, target)
		style.Edge = e
		styles = append(styles, style)
	}
	return styles
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
