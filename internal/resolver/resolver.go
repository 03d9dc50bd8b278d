// Package resolver produces one graph snapshot per call. It prefers the
// knowledge-graph endpoint and falls back to synthesizing a graph from the
// course, progress and dashboard endpoints.
package resolver

import (
	"context"
	"fmt"

	"github.com/msalah0e/kgraph/internal/api"
	"github.com/msalah0e/kgraph/internal/ctxlog"
	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/msalah0e/kgraph/internal/layout"
	"github.com/msalah0e/kgraph/internal/parallel"
	"github.com/msalah0e/kgraph/internal/render"
)

// State classifies a resolution outcome.
type State string

const (
	// StateReady means the primary endpoint answered.
	StateReady State = "ready"
	// StateDegraded means the graph was synthesized from fallback data.
	StateDegraded State = "degraded"
	// StateEmpty means data loaded but produced no nodes.
	StateEmpty State = "empty"
	// StateFailed means neither path produced data.
	StateFailed State = "failed"
)

// User-facing messages.
const (
	NoticeDegraded = "Knowledge graph API unavailable. Showing live fallback from course/progress data."
	NoticeEmpty    = "No course graph data yet. Enroll in courses and build progress to activate it."
)

// Meta warnings attached to fallback snapshots.
const (
	WarningGraphUnavailable = "knowledge_graph_endpoint_unavailable"
	warningSuffix           = "_unavailable"
)

// Fallback task names. They double as warning prefixes.
const (
	taskCourses   = "courses"
	taskProgress  = "progress"
	taskDashboard = "dashboard"
)

// Source is the backend the resolver reads. *api.Client satisfies it.
type Source interface {
	FetchGraph(ctx context.Context) (*graph.RawSnapshot, error)
	FetchCourses(ctx context.Context) ([]api.Course, error)
	FetchProgress(ctx context.Context) ([]api.ProgressRow, error)
	FetchDashboard(ctx context.Context) (*api.DashboardSummary, error)
}

// Result is the outcome of one resolution cycle.
type Result struct {
	// Snapshot is nil only when State is StateFailed.
	Snapshot *graph.Snapshot
	State    State
	Notice   string
	Error    string
	// Err is the primary-path failure, if any. It is kept for logging.
	Err error
}

// Resolver turns backend data into snapshots. It is safe for concurrent use.
type Resolver struct {
	source    Source
	recompute bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRecompute forces the layout engine over primary graphs even when the
// server supplied positions.
func WithRecompute(recompute bool) Option {
	return func(r *Resolver) {
		r.recompute = recompute
	}
}

// New creates a resolver reading from source.
func New(source Source, opts ...Option) *Resolver {
	r := &Resolver{source: source}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs one cycle. It never returns an error; failures are described
// by the Result.
func (r *Resolver) Resolve(ctx context.Context) Result {
	logger := ctxlog.FromContext(ctx)

	raw, err := r.source.FetchGraph(ctx)
	if err == nil {
		var snap *graph.Snapshot
		if snap, err = r.primary(raw); err == nil {
			logger.Debug("knowledge graph loaded", "nodes", len(snap.Nodes), "edges", len(snap.Edges))
			if len(snap.Nodes) == 0 {
				return Result{Snapshot: snap, State: StateEmpty, Notice: NoticeEmpty}
			}
			return Result{Snapshot: snap, State: StateReady}
		}
	}

	logger.Info("knowledge graph endpoint unavailable, using fallback", "error", err)
	return r.fallback(ctx, err)
}

// primary normalizes a server graph, running the layout engine when positions
// are missing or recompute is set.
func (r *Resolver) primary(raw *graph.RawSnapshot) (*graph.Snapshot, error) {
	needsLayout := r.recompute
	for _, n := range raw.Nodes {
		if !n.Positioned() {
			needsLayout = true
			break
		}
	}

	snap, err := render.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if needsLayout {
		snap.Nodes = layout.Apply(snap.Nodes, snap.Edges)
	}
	if snap.Meta.Source == "" {
		snap.Meta.Source = graph.SourcePrimary
	}
	return snap, nil
}

// fallback fetches courses, progress and the dashboard concurrently. Each
// fetch settles on its own; the graph is built from whatever succeeded.
func (r *Resolver) fallback(ctx context.Context, primaryErr error) Result {
	results := parallel.Settle(ctx, []parallel.Task{
		{Name: taskCourses, Fn: func(ctx context.Context) (any, error) {
			courses, err := r.source.FetchCourses(ctx)
			return courses, err
		}},
		{Name: taskProgress, Fn: func(ctx context.Context) (any, error) {
			rows, err := r.source.FetchProgress(ctx)
			return rows, err
		}},
		{Name: taskDashboard, Fn: func(ctx context.Context) (any, error) {
			summary, err := r.source.FetchDashboard(ctx)
			return summary, err
		}},
	}, 3)
	coursesRes, progressRes, dashboardRes := results[0], results[1], results[2]

	logger := ctxlog.FromContext(ctx)
	logger.Info("fallback sources settled", "summary", parallel.Summary(results), "failed", parallel.Failed(results))
	for _, res := range results {
		if !res.OK {
			logger.Warn("fallback source unavailable", "source", res.Name, "error", res.Err)
		}
	}

	if !coursesRes.OK && !progressRes.OK {
		return Result{
			State: StateFailed,
			Error: FailureMessage(primaryErr),
			Err:   primaryErr,
		}
	}

	courses, _ := coursesRes.Value.([]api.Course)
	progress, _ := progressRes.Value.([]api.ProgressRow)

	warnings := []string{WarningGraphUnavailable}
	for _, name := range parallel.Failed(results) {
		warnings = append(warnings, name+warningSuffix)
	}

	nodes := Synthesize(courses, progress)
	if len(nodes) == 0 {
		snap := graph.Empty(graph.SourceFallback)
		snap.Meta.Warnings = warnings
		return Result{Snapshot: snap, State: StateEmpty, Notice: NoticeEmpty, Err: primaryErr}
	}

	edges := layout.SynthesizeEdges(nodes)
	snap, err := render.Normalize(graph.FromNodes(layout.Apply(nodes, edges), edges))
	if err != nil {
		return Result{State: StateFailed, Error: FailureMessage(primaryErr), Err: err}
	}

	if dashboardRes.OK {
		if summary, ok := dashboardRes.Value.(*api.DashboardSummary); ok && summary != nil {
			snap.Signals.QuizAccuracy = summary.AverageQuizScore.Or(0)
		}
	}
	snap.Meta.Source = graph.SourceFallback
	snap.Meta.Warnings = warnings

	return Result{Snapshot: snap, State: StateDegraded, Notice: NoticeDegraded, Err: primaryErr}
}

// FailureMessage describes a total failure, including the upstream status
// code and detail of err when available.
func FailureMessage(err error) string {
	status, detail := api.StatusDetail(err)

	msg := "Unable to load live knowledge graph data from backend"
	if status != 0 {
		msg += fmt.Sprintf(" (%d)", status)
	}
	if detail != "" {
		return msg + ": " + detail
	}
	return msg + "."
}
