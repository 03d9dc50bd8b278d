package graph

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Number is a JSON scalar that accepts numbers, numeric strings, booleans and null.
// Anything else, or a non-finite value, leaves it invalid.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a valid Number.
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Or returns the value, or fallback when the number is missing.
func (n Number) Or(fallback float64) float64 {
	if !n.Valid {
		return fallback
	}
	return n.Value
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		n.set(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			n.set(f)
		}
	case bool:
		if t {
			n.set(1)
		} else {
			n.set(0)
		}
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Number) set(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	n.Value = v
	n.Valid = true
}

// Text is a JSON scalar rendered as a string. Numbers and booleans keep their
// literal spelling; null, objects and arrays become empty.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*t = ""
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*t = Text(s)
	case '{', '[', 'n':
	default:
		*t = Text(data)
	}
	return nil
}

// Or returns the text, or fallback when empty.
func (t Text) Or(fallback string) string {
	if t == "" {
		return fallback
	}
	return string(t)
}

// RawNode is a node as received from the backend, before normalization.
type RawNode struct {
	ID         Text   `json:"id"`
	Label      Text   `json:"label"`
	Mastery    Number `json:"mastery"`
	Importance Number `json:"importance"`
	Category   Text   `json:"category"`
	Level      Text   `json:"level"`
	X          Number `json:"x"`
	Y          Number `json:"y"`
}

// Positioned reports whether the backend supplied both coordinates.
func (n RawNode) Positioned() bool {
	return n.X.Valid && n.Y.Valid
}

// RawEdge is an edge as received from the backend.
type RawEdge struct {
	Source   Text `json:"source"`
	Target   Text `json:"target"`
	Relation Text `json:"relation"`
}

// RawSignals are signals as received from the backend.
type RawSignals struct {
	QuizAccuracy          Number `json:"quiz_accuracy"`
	TimeSpentHours        Number `json:"time_spent_hours"`
	FlashcardsPerformance Number `json:"flashcards_performance"`
	FlashcardsGenerated   Number `json:"flashcards_generated"`
	DoubtsAsked           Number `json:"doubts_asked"`
}

// RawSnapshot is a partially trusted graph payload. Malformed node and edge
// entries are skipped during decoding; only a non-object payload is an error.
type RawSnapshot struct {
	Nodes   []RawNode
	Edges   []RawEdge
	Signals RawSignals
	Meta    Meta
}

// ErrNotObject is returned when a snapshot payload is not a JSON object.
var ErrNotObject = errors.New("graph payload is not an object")

func (r *RawSnapshot) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return ErrNotObject
	}

	*r = RawSnapshot{}
	for _, item := range rawItems(fields["nodes"]) {
		var n RawNode
		if json.Unmarshal(item, &n) == nil {
			r.Nodes = append(r.Nodes, n)
		}
	}
	for _, item := range rawItems(fields["edges"]) {
		var e RawEdge
		if json.Unmarshal(item, &e) == nil {
			r.Edges = append(r.Edges, e)
		}
	}
	if sig, ok := fields["signals"]; ok {
		_ = json.Unmarshal(sig, &r.Signals)
	}
	if meta, ok := fields["meta"]; ok {
		var m Meta
		if json.Unmarshal(meta, &m) == nil {
			r.Meta = m
		}
	}
	return nil
}

// rawItems returns the elements of a JSON array, or nil when data is not one.
func rawItems(data json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if len(data) == 0 || json.Unmarshal(data, &items) != nil {
		return nil
	}
	return items
}

// FromNodes builds a raw snapshot from already-typed nodes and edges.
func FromNodes(nodes []Node, edges []Edge) *RawSnapshot {
	r := &RawSnapshot{
		Nodes: make([]RawNode, 0, len(nodes)),
		Edges: make([]RawEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		r.Nodes = append(r.Nodes, RawNode{
			ID:         Text(n.ID),
			Label:      Text(n.Label),
			Mastery:    Num(n.Mastery),
			Importance: Num(float64(n.Importance)),
			Category:   Text(n.Category),
			Level:      Text(n.Level),
			X:          Num(n.X),
			Y:          Num(n.Y),
		})
	}
	for _, e := range edges {
		r.Edges = append(r.Edges, RawEdge{
			Source:   Text(e.Source),
			Target:   Text(e.Target),
			Relation: Text(e.Relation),
		})
	}
	return r
}
