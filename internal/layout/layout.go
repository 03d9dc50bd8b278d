// Package layout assigns deterministic 2-D positions to knowledge graph nodes.
//
// Coordinates are percentages of the drawing area. Graphs with edges are laid out
// in columns by topological depth (longest-path layering); edge-less graphs fall
// back to a grid of at most four columns.
package layout

import (
	"math"
	"sort"
	"strings"

	"github.com/msalah0e/kgraph/internal/graph"
)

const (
	minX = 12.0
	maxX = 88.0

	minY = 10.0
	maxY = 90.0

	gridMinY    = 20.0
	gridMaxY    = 80.0
	gridColumns = 4
	gridCenter  = 50.0
)

type point struct {
	x, y float64
}

// Apply returns a copy of nodes with X and Y assigned. The input slice is never
// modified. Edges whose endpoints are missing from nodes, and self-edges, are
// ignored. Cyclic input terminates; nodes on or behind a cycle land in level 0.
func Apply(nodes []graph.Node, edges []graph.Edge) []graph.Node {
	out := make([]graph.Node, len(nodes))
	copy(out, nodes)
	if len(out) == 0 {
		return out
	}

	if len(edges) == 0 {
		placeGrid(out)
		return out
	}

	levels := Levels(out, edges)
	maxLevel := 0
	for _, l := range levels {
		maxLevel = max(maxLevel, l)
	}

	labels := make(map[string]string, len(out))
	buckets := make(map[int][]string)
	for _, n := range out {
		if _, seen := labels[n.ID]; seen {
			continue
		}
		labels[n.ID] = n.Label
		buckets[levels[n.ID]] = append(buckets[levels[n.ID]], n.ID)
	}

	positions := make(map[string]point, len(labels))
	for level, ids := range buckets {
		sort.SliceStable(ids, func(i, j int) bool {
			return lessLabel(labels[ids[i]], labels[ids[j]], ids[i], ids[j])
		})

		x := minX
		if maxLevel > 0 {
			x = minX + float64(level)*(maxX-minX)/float64(maxLevel)
		}
		for i, id := range ids {
			y := float64(i+1) * 100 / float64(len(ids)+1)
			positions[id] = point{x: round2(x), y: round2(clamp(y, minY, maxY))}
		}
	}

	for i := range out {
		p := positions[out[i].ID]
		out[i].X, out[i].Y = p.x, p.y
	}
	return out
}

// Levels computes the topological depth of every node id using a Kahn-style
// forward pass. Only nodes whose remaining in-degree reaches exactly zero are
// enqueued, so the pass performs at most one dequeue per node.
func Levels(nodes []graph.Node, edges []graph.Edge) map[string]int {
	ids := make([]string, 0, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		if _, seen := inDegree[n.ID]; seen {
			continue
		}
		inDegree[n.ID] = 0
		ids = append(ids, n.ID)
	}

	adjacency := make(map[string][]string, len(ids))
	for _, e := range edges {
		if e.Source == e.Target {
			continue
		}
		if _, ok := inDegree[e.Source]; !ok {
			continue
		}
		if _, ok := inDegree[e.Target]; !ok {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inDegree[e.Target]++
	}

	levels := make(map[string]int, len(ids))
	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		levels[id] = 0
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	visited := make(map[string]bool, len(ids))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		visited[current] = true

		for _, next := range adjacency[current] {
			levels[next] = max(levels[next], levels[current]+1)
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	for _, id := range ids {
		if !visited[id] {
			levels[id] = 0
		}
	}
	return levels
}

// placeGrid arranges nodes alphabetically into at most four columns.
func placeGrid(nodes []graph.Node) {
	order := make([]int, len(nodes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := nodes[order[i]], nodes[order[j]]
		return lessLabel(a.Label, b.Label, a.ID, b.ID)
	})

	columns := min(gridColumns, len(nodes))
	rows := (len(nodes) + columns - 1) / columns

	for rank, idx := range order {
		row, col := rank/columns, rank%columns

		x := gridCenter
		if columns > 1 {
			x = minX + float64(col)*(maxX-minX)/float64(columns-1)
		}
		y := gridCenter
		if rows > 1 {
			y = gridMinY + float64(row)*(gridMaxY-gridMinY)/float64(rows-1)
		}
		nodes[idx].X = round2(x)
		nodes[idx].Y = round2(y)
	}
}

// lessLabel orders labels case-insensitively, then by exact label, then by id.
func lessLabel(a, b, idA, idB string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	if a != b {
		return a < b
	}
	return idA < idB
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
