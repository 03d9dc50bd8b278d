package parallel

import (
	"context"
	"fmt"
	"time"

	"github.com/msalah0e/kgraph/internal/ctxlog"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Result holds the outcome of a settled task.
type Result struct {
	Name    string
	OK      bool
	Value   any
	Err     error
	Elapsed time.Duration
}

// Task is a function that runs concurrently with its siblings.
type Task struct {
	Name string
	Fn   func(ctx context.Context) (any, error)
}

// Settle runs every task concurrently with the given limit and waits for all of
// them. A failing or panicking task never cancels the others; each outcome is
// reported on its own. Results are returned in the order tasks were submitted.
func Settle(ctx context.Context, tasks []Task, concurrency int) []Result {
	if concurrency < 1 {
		concurrency = 4
	}
	logger := ctxlog.FromContext(ctx)

	results := make([]Result, len(tasks))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, task := range tasks {
		g.Go(func() error {
			start := time.Now()
			value, err := call(ctx, task)
			elapsed := time.Since(start)

			if err != nil {
				results[i] = Result{Name: task.Name, OK: false, Err: err, Elapsed: elapsed}
				logger.Debug("task failed", "task", task.Name, "elapsed", elapsed, "error", err)
			} else {
				results[i] = Result{Name: task.Name, OK: true, Value: value, Elapsed: elapsed}
				logger.Debug("task settled", "task", task.Name, "elapsed", elapsed)
			}

			return nil // never fail the group, collect results instead
		})
	}

	_ = g.Wait()
	return results
}

// call runs one task, turning a panic into an error.
func call(ctx context.Context, task Task) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, task.Name)
	}
	return task.Fn(ctx)
}

// Failed returns the names of tasks that did not succeed.
func Failed(results []Result) []string {
	var names []string
	for _, r := range results {
		if !r.OK {
			names = append(names, r.Name)
		}
	}
	return names
}

// Summary describes results as "n/m ok".
func Summary(results []Result) string {
	ok := 0
	for _, r := range results {
		if r.OK {
			ok++
		}
	}
	return fmt.Sprintf("%d/%d ok", ok, len(results))
}
