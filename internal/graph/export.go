package graph

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportJSON returns the snapshot as pretty-printed JSON.
func (s *Snapshot) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// ExportYAML returns the snapshot as YAML.
func (s *Snapshot) ExportYAML() ([]byte, error) {
	return yaml.Marshal(s)
}

// ExportDOT returns the snapshot in Graphviz DOT format. Nodes are emitted in id
// order and carry their computed position as a pos hint.
func (s *Snapshot) ExportDOT() string {
	var b strings.Builder
	b.WriteString("digraph knowledge_graph {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=circle, style=filled];\n\n")

	nodes := make([]Node, len(s.Nodes))
	copy(nodes, s.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	for _, n := range nodes {
		label := dotQuote(n.Label) + fmt.Sprintf(`\n%.0f%%`, n.Mastery)
		fmt.Fprintf(&b, "  \"%s\" [label=\"%s\", pos=\"%.2f,%.2f!\"];\n", dotQuote(n.ID), label, n.X, 100-n.Y)
	}

	b.WriteString("\n")
	for _, e := range s.Edges {
		if e.Relation != "" {
			fmt.Fprintf(&b, "  \"%s\" -> \"%s\" [label=\"%s\"];\n", dotQuote(e.Source), dotQuote(e.Target), dotQuote(e.Relation))
			continue
		}
		fmt.Fprintf(&b, "  \"%s\" -> \"%s\";\n", dotQuote(e.Source), dotQuote(e.Target))
	}

	b.WriteString("}\n")
	return b.String()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r\n", `\n`, "\n", `\n`, "\r", `\n`)

// dotQuote escapes s for use inside a double-quoted DOT string.
func dotQuote(s string) string {
	return dotEscaper.Replace(s)
}
