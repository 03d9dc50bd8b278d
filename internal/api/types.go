package api

import "github.com/msalah0e/kgraph/internal/graph"

// Course is one entry of the enrolled-course list.
type Course struct {
	ID                 graph.Text   `json:"id"`
	Title              graph.Text   `json:"title"`
	TotalLessons       graph.Number `json:"total_lessons"`
	ProgressPercentage graph.Number `json:"progress_percentage"`
	Level              graph.Text   `json:"level"`
	Category           graph.Text   `json:"category"`
}

// ProgressRow is one entry of the per-course progress list.
type ProgressRow struct {
	CourseID           graph.Text   `json:"course_id"`
	CourseTitle        graph.Text   `json:"course_title"`
	ProgressPercentage graph.Number `json:"progress_percentage"`
	TotalLessons       graph.Number `json:"total_lessons"`
}

// DashboardSummary holds the dashboard fields kgraph reads.
type DashboardSummary struct {
	AverageQuizScore      graph.Number `json:"average_quiz_score"`
	TotalEnrolledCourses  graph.Number `json:"total_enrolled_courses"`
	CompletedCourses      graph.Number `json:"completed_courses"`
	TotalLessonsCompleted graph.Number `json:"total_lessons_completed"`
	OverallProgress       graph.Number `json:"overall_progress"`
}

// Paths are the endpoint paths, relative to the base URL.
type Paths struct {
	Graph        string
	Courses      string
	Progress     string
	Dashboard    string
	TokenRefresh string
}

// DefaultPaths match the LMS student API.
var DefaultPaths = Paths{
	Graph:        "students/knowledge-graph/",
	Courses:      "students/courses/?page_size=100",
	Progress:     "students/progress/",
	Dashboard:    "students/dashboard/",
	TokenRefresh: "auth/token/refresh/",
}
