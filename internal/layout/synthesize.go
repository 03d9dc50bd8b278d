package layout

import (
	"sort"

	"github.com/msalah0e/kgraph/internal/graph"
)

const defaultCategory = "other"

// SynthesizeEdges infers edges for graphs that arrive without any. Nodes are
// grouped by category; each group of two or more is ordered by difficulty rank,
// then label, and chained so every node points at the next one.
//
// The chain approximates a curriculum. It is not derived from real prerequisite
// data, which the client does not have.
func SynthesizeEdges(nodes []graph.Node) []graph.Edge {
	groups := make(map[string][]graph.Node)
	for _, n := range nodes {
		category := n.Category
		if category == "" {
			category = defaultCategory
		}
		groups[category] = append(groups[category], n)
	}

	categories := make([]string, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	edges := make([]graph.Edge, 0)
	seen := make(map[[2]string]bool)

	for _, category := range categories {
		group := groups[category]
		if len(group) < 2 {
			continue
		}

		sort.SliceStable(group, func(i, j int) bool {
			ri, rj := graph.LevelRank(group[i].Level), graph.LevelRank(group[j].Level)
			if ri != rj {
				return ri < rj
			}
			return lessLabel(group[i].Label, group[j].Label, group[i].ID, group[j].ID)
		})

		for i := 1; i < len(group); i++ {
			source, target := group[i-1].ID, group[i].ID
			key := [2]string{source, target}
			if source == target || seen[key] {
				continue
			}
			seen[key] = true
			edges = append(edges, graph.Edge{
				Source:   source,
				Target:   target,
				Relation: graph.RelationPrerequisite,
			})
		}
	}

	return edges
}
