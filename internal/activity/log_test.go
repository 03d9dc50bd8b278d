package activity

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-config")
	if Path() != "/tmp/test-config/kgraph/activity.jsonl" {
		t.Errorf("unexpected path %q", Path())
	}
}

func TestRead_Empty(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	entries, err := Read(10)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestLogRead(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, state := range []string{"ready", "degraded", "failed"} {
		err := Log(Entry{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			State:     state,
			Nodes:     i,
		})
		if err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	entries, err := Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].State != "failed" || entries[2].State != "ready" {
		t.Errorf("expected newest first, got %s ... %s", entries[0].State, entries[2].State)
	}

	limited, _ := Read(2)
	if len(limited) != 2 || limited[1].State != "degraded" {
		t.Errorf("unexpected limited read: %+v", limited)
	}
}

func TestLog_SetsTimestamp(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	before := time.Now().Add(-time.Second)
	Log(Entry{State: "ready"})

	entries, _ := Read(1)
	if len(entries) != 1 || entries[0].Timestamp.Before(before) {
		t.Errorf("expected timestamp to be set, got %+v", entries)
	}
}

func TestRead_SkipsMalformed(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	Log(Entry{State: "ready"})
	f, _ := os.OpenFile(Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	f.WriteString("not json\n\n")
	f.Close()
	Log(Entry{State: "empty"})

	entries, err := Read(0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 valid entries, got %d", len(entries))
	}
}

func TestSearch(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	Log(Entry{State: "ready", Source: "live_backend"})
	Log(Entry{State: "failed", Error: "Unable to load live knowledge graph data from backend (503)"})
	Log(Entry{State: "degraded", Source: "live_backend_fallback"})

	results, err := Search("FALLBACK", 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].State != "degraded" {
		t.Errorf("unexpected results: %+v", results)
	}

	results, _ = Search("503", 0)
	if len(results) != 1 || results[0].State != "failed" {
		t.Errorf("unexpected results: %+v", results)
	}

	results, _ = Search("", 2)
	if len(results) != 2 {
		t.Errorf("expected limit of 2, got %d", len(results))
	}
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if err := Clear(); err != nil {
		t.Errorf("Clear on missing log failed: %v", err)
	}

	Log(Entry{State: "ready"})
	if err := Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "kgraph", "activity.jsonl")); !os.IsNotExist(err) {
		t.Error("expected log file to be removed")
	}
}
