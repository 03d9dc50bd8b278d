// Package activity keeps a JSON-lines journal of refresh cycles.
package activity

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Entry is one resolver run as recorded in the journal.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	Cycle       string    `json:"cycle,omitempty"`
	Command     string    `json:"command,omitempty"`
	State       string    `json:"state"`
	Source      string    `json:"source,omitempty"`
	Nodes       int       `json:"nodes"`
	Edges       int       `json:"edges"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	Error       string    `json:"error,omitempty"`
	Duration    float64   `json:"duration,omitempty"`
}

// Path returns the journal file location.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "kgraph", "activity.jsonl")
}

// Log appends an entry. A zero timestamp is set to now.
func Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating activity dir")
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "opening activity log")
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "encoding entry")
	}
	_, err = fmt.Fprintf(f, "%s\n", data)
	return errors.Wrap(err, "writing entry")
}

// Read returns the last count entries, newest first. Zero means all.
// Malformed lines are skipped.
func Read(count int) ([]Entry, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading activity log")
	}

	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if json.Unmarshal(line, &e) == nil {
			entries = append(entries, e)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	if count > 0 && len(entries) > count {
		entries = entries[:count]
	}
	return entries, nil
}

// Search returns entries whose state, source, command or error contains query,
// case-insensitively.
func Search(query string, count int) ([]Entry, error) {
	all, err := Read(0)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var results []Entry
	for _, e := range all {
		haystack := strings.ToLower(strings.Join([]string{e.State, e.Source, e.Command, e.Error}, " "))
		if strings.Contains(haystack, q) {
			results = append(results, e)
			if count > 0 && len(results) >= count {
				break
			}
		}
	}
	return results, nil
}

// Clear removes all entries.
func Clear() error {
	if err := os.Remove(Path()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing activity log")
	}
	return nil
}
