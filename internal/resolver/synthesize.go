package resolver

import (
	"math"

	"github.com/msalah0e/kgraph/internal/api"
	"github.com/msalah0e/kgraph/internal/graph"
)

const untitledCourse = "Untitled Course"

// Synthesize builds one node per distinct course id across both lists, in
// first-seen order. Progress rows overwrite course mastery since progress is
// more current than course metadata.
func Synthesize(courses []api.Course, progress []api.ProgressRow) []graph.Node {
	var order []string
	byID := make(map[string]*graph.Node)

	put := func(n graph.Node) {
		if existing, ok := byID[n.ID]; ok {
			*existing = n
			return
		}
		order = append(order, n.ID)
		byID[n.ID] = &n
	}

	for _, c := range courses {
		id := string(c.ID)
		if id == "" {
			continue
		}
		lessons := c.TotalLessons.Or(0)
		level := c.Level.Or(graph.LevelAllLevels)

		importance := lessonImportance(lessons)
		if graph.LevelRank(level) >= 3 {
			importance++
		}

		put(graph.Node{
			ID:         id,
			Label:      c.Title.Or(untitledCourse),
			Mastery:    mastery(c.ProgressPercentage),
			Importance: clampImportance(importance),
			Category:   c.Category.Or("other"),
			Level:      level,
		})
	}

	for _, row := range progress {
		id := string(row.CourseID)
		if id == "" {
			continue
		}
		lessons := row.TotalLessons.Or(0)

		if current, ok := byID[id]; ok {
			current.Mastery = mastery(row.ProgressPercentage)
			if lessons >= 8 {
				current.Importance = min(5, current.Importance+1)
			}
			continue
		}

		put(graph.Node{
			ID:         id,
			Label:      row.CourseTitle.Or(untitledCourse),
			Mastery:    mastery(row.ProgressPercentage),
			Importance: clampImportance(lessonImportance(lessons)),
			Category:   "other",
			Level:      graph.LevelAllLevels,
		})
	}

	nodes := make([]graph.Node, 0, len(order))
	for _, id := range order {
		nodes = append(nodes, *byID[id])
	}
	return nodes
}

// lessonImportance starts at 1 and adds one at 4 lessons and one more at 8.
func lessonImportance(lessons float64) int {
	importance := 1
	if lessons >= 4 {
		importance++
	}
	if lessons >= 8 {
		importance++
	}
	return importance
}

func clampImportance(v int) int {
	return min(max(v, 1), 5)
}

// mastery clamps a percentage to [0, 100] and rounds it to one decimal.
func mastery(n graph.Number) float64 {
	v := math.Max(0, math.Min(100, n.Or(0)))
	return math.Round(v*10) / 10
}
