package parallel

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestSettle_Success(t *testing.T) {
	tasks := []Task{
		{Name: "task1", Fn: func(context.Context) (any, error) { return 1, nil }},
		{Name: "task2", Fn: func(context.Context) (any, error) { return 2, nil }},
		{Name: "task3", Fn: func(context.Context) (any, error) { return 3, nil }},
	}

	results := Settle(context.Background(), tasks, 4)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if !r.OK {
			t.Errorf("task %s should be OK", r.Name)
		}
		if r.Err != nil {
			t.Errorf("task %s should have no error", r.Name)
		}
		if r.Value != i+1 {
			t.Errorf("task %s: expected value %d, got %v", r.Name, i+1, r.Value)
		}
	}
}

func TestSettle_WithErrors(t *testing.T) {
	tasks := []Task{
		{Name: "ok-task", Fn: func(context.Context) (any, error) {
			time.Sleep(20 * time.Millisecond)
			return "done", nil
		}},
		{Name: "fail-task", Fn: func(context.Context) (any, error) { return nil, fmt.Errorf("simulated failure") }},
	}

	results := Settle(context.Background(), tasks, 4)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	// The failure must not cancel the slower sibling
	if !results[0].OK || results[0].Value != "done" {
		t.Errorf("first task should be OK, got %+v", results[0])
	}
	if results[1].OK {
		t.Error("second task should have failed")
	}
	if results[1].Err == nil {
		t.Error("second task should have error")
	}
	if got := Failed(results); !reflect.DeepEqual(got, []string{"fail-task"}) {
		t.Errorf("expected [fail-task], got %v", got)
	}
	if got := Summary(results); got != "1/2 ok" {
		t.Errorf("expected 1/2 ok, got %q", got)
	}
}

func TestSettle_Panic(t *testing.T) {
	tasks := []Task{
		{Name: "boom", Fn: func(context.Context) (any, error) { panic("kaboom") }},
		{Name: "fine", Fn: func(context.Context) (any, error) { return true, nil }},
	}

	results := Settle(context.Background(), tasks, 2)
	if results[0].OK || results[0].Err == nil {
		t.Errorf("panicking task should fail, got %+v", results[0])
	}
	if !results[1].OK {
		t.Error("sibling of a panicking task should succeed")
	}
}

func TestSettle_Concurrency(t *testing.T) {
	var maxConcurrent int64
	var current int64

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = Task{
			Name: fmt.Sprintf("task-%d", i),
			Fn: func(context.Context) (any, error) {
				c := atomic.AddInt64(&current, 1)
				// Track max concurrent
				for {
					old := atomic.LoadInt64(&maxConcurrent)
					if c <= old || atomic.CompareAndSwapInt64(&maxConcurrent, old, c) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt64(&current, -1)
				return nil, nil
			},
		}
	}

	results := Settle(context.Background(), tasks, 2) // Limit to 2 concurrent

	if len(results) != 10 {
		t.Fatalf("expected 10 results, got %d", len(results))
	}

	if maxConcurrent > 2 {
		t.Errorf("max concurrent should be <= 2, got %d", maxConcurrent)
	}
}

func TestSettle_DefaultConcurrency(t *testing.T) {
	tasks := []Task{
		{Name: "test", Fn: func(context.Context) (any, error) { return nil, nil }},
	}

	// Should not panic with 0 concurrency (defaults to 4)
	results := Settle(context.Background(), tasks, 0)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestSettle_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	results := Settle(ctx, []Task{{Name: "late", Fn: func(context.Context) (any, error) {
		called.Store(true)
		return nil, nil
	}}}, 1)

	if results[0].OK {
		t.Error("task on a canceled context should fail")
	}
	if called.Load() {
		t.Error("task should not run on a canceled context")
	}
}

func TestSettle_TimingTracked(t *testing.T) {
	tasks := []Task{
		{Name: "slow", Fn: func(context.Context) (any, error) {
			time.Sleep(50 * time.Millisecond)
			return nil, nil
		}},
	}

	results := Settle(context.Background(), tasks, 1)
	if results[0].Elapsed < 50*time.Millisecond {
		t.Errorf("expected elapsed >= 50ms, got %v", results[0].Elapsed)
	}
}
