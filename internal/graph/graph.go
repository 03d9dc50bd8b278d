package graph

import (
	"encoding/hex"
	"encoding/json"

	"lukechampine.com/blake3"
)

// Course difficulty levels as reported by the LMS.
const (
	LevelBeginner     = "beginner"
	LevelAllLevels    = "all_levels"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Source values recorded in Meta.Source.
const (
	SourcePrimary  = "live_backend"
	SourceFallback = "live_backend_fallback"
	SourceCache    = "cache"
)

// RelationPrerequisite marks an edge inferred from course ordering.
const RelationPrerequisite = "prerequisite"

var levelOrder = map[string]int{
	LevelBeginner:     1,
	LevelAllLevels:    2,
	LevelIntermediate: 3,
	LevelAdvanced:     4,
}

// LevelRank maps a difficulty level to its ordinal. Unknown levels rank as all_levels.
func LevelRank(level string) int {
	if r, ok := levelOrder[level]; ok {
		return r
	}
	return levelOrder[LevelAllLevels]
}

// Node is a course or topic in the learner's graph.
type Node struct {
	ID         string  `json:"id" yaml:"id"`
	Label      string  `json:"label" yaml:"label"`
	Mastery    float64 `json:"mastery" yaml:"mastery"`
	Importance int     `json:"importance" yaml:"importance"`
	Category   string  `json:"category" yaml:"category"`
	Level      string  `json:"level" yaml:"level"`
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
}

// Edge means Source should logically precede Target.
type Edge struct {
	Source   string `json:"source" yaml:"source"`
	Target   string `json:"target" yaml:"target"`
	Relation string `json:"relation,omitempty" yaml:"relation,omitempty"`
}

// Signals are auxiliary learner metrics shown next to the graph.
type Signals struct {
	QuizAccuracy          float64 `json:"quiz_accuracy" yaml:"quiz_accuracy"`
	TimeSpentHours        float64 `json:"time_spent_hours" yaml:"time_spent_hours"`
	FlashcardsPerformance float64 `json:"flashcards_performance" yaml:"flashcards_performance"`
	FlashcardsGenerated   int     `json:"flashcards_generated" yaml:"flashcards_generated"`
	DoubtsAsked           int     `json:"doubts_asked" yaml:"doubts_asked"`
}

// Meta describes where a snapshot came from.
type Meta struct {
	Source    string   `json:"source" yaml:"source"`
	NodeCount int      `json:"node_count" yaml:"node_count"`
	EdgeCount int      `json:"edge_count" yaml:"edge_count"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Snapshot is one complete graph value produced by a single resolver run.
// Snapshots are never mutated after construction; a refresh replaces the whole value.
type Snapshot struct {
	Nodes   []Node  `json:"nodes" yaml:"nodes"`
	Edges   []Edge  `json:"edges" yaml:"edges"`
	Signals Signals `json:"signals" yaml:"signals"`
	Meta    Meta    `json:"meta" yaml:"meta"`
}

// Empty returns a snapshot with no nodes for the given source.
func Empty(source string) *Snapshot {
	return &Snapshot{
		Nodes: []Node{},
		Edges: []Edge{},
		Meta:  Meta{Source: source},
	}
}

// NodeByID looks up a node by id.
func (s *Snapshot) NodeByID(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Fingerprint returns a short BLAKE3 digest of the snapshot content.
// Equal graphs produce equal fingerprints regardless of meta.
func (s *Snapshot) Fingerprint() string {
	data, err := json.Marshal(struct {
		Nodes   []Node  `json:"nodes"`
		Edges   []Edge  `json:"edges"`
		Signals Signals `json:"signals"`
	}{s.Nodes, s.Edges, s.Signals})
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:16])
}
