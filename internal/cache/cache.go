// Package cache keeps the last good snapshot on disk so kgraph can render
// without network access.
package cache

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/msalah0e/kgraph/internal/graph"
	"github.com/pkg/errors"
)

const fileName = "snapshot.json.zst"

// Entry is a cached snapshot with bookkeeping.
type Entry struct {
	SavedAt     time.Time       `json:"saved_at"`
	Fingerprint string          `json:"fingerprint"`
	Snapshot    *graph.Snapshot `json:"snapshot"`
}

// Dir returns the cache directory path.
func Dir() string {
	dir := os.Getenv("XDG_CACHE_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".cache")
	}
	return filepath.Join(dir, "kgraph")
}

// Path returns the snapshot cache file.
func Path() string {
	return filepath.Join(Dir(), fileName)
}

// Save writes s as zstd-compressed JSON, replacing any previous snapshot.
func Save(s *graph.Snapshot) error {
	if s == nil {
		return errors.New("cache: nil snapshot")
	}

	data, err := json.Marshal(Entry{
		SavedAt:     time.Now().UTC(),
		Fingerprint: s.Fingerprint(),
		Snapshot:    s,
	})
	if err != nil {
		return errors.Wrap(err, "encoding snapshot")
	}

	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return errors.Wrap(err, "creating encoder")
	}
	if _, err := encoder.Write(data); err != nil {
		encoder.Close()
		return errors.Wrap(err, "compressing")
	}
	if err := encoder.Close(); err != nil {
		return errors.Wrap(err, "closing encoder")
	}

	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return errors.Wrap(err, "creating cache dir")
	}

	// Write to a temp file and rename so readers never see a partial file
	tmp, err := os.CreateTemp(Dir(), fileName+".*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(compressed.Bytes()); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing cache")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "writing cache")
	}
	return errors.Wrap(os.Rename(tmp.Name(), Path()), "replacing cache")
}

// LoadEntry reads the cached entry. It returns nil, nil when nothing is cached.
func LoadEntry() (*Entry, error) {
	f, err := os.Open(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "opening cache")
	}
	defer f.Close()

	decoder, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "creating zstd decoder")
	}
	defer decoder.Close()

	data, err := io.ReadAll(decoder)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing cache")
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, errors.Wrap(err, "decoding cache")
	}
	if entry.Snapshot == nil {
		return nil, errors.New("cache entry has no snapshot")
	}
	return &entry, nil
}

// Load returns the cached snapshot, tagged with the cache source. It returns
// nil, nil when nothing is cached.
func Load() (*graph.Snapshot, error) {
	entry, err := LoadEntry()
	if err != nil || entry == nil {
		return nil, err
	}
	snap := entry.Snapshot
	snap.Meta.Source = graph.SourceCache
	return snap, nil
}

// Clear removes the cached snapshot. A missing cache is not an error.
func Clear() error {
	if err := os.Remove(Path()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing cache")
	}
	return nil
}
