// Package state persists the task queue across daemon restarts. The
// queue is serialized to a JSON snapshot file; writes are atomic via
// a temp file and rename.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcus/foreman/internal/tasks"
)

// File stores queue snapshots at a fixed path.
type File struct {
	mu   sync.Mutex
	path string
}

// DefaultPath returns the default snapshot location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "foreman", "queue.json")
}

// NewFile creates a snapshot file handle. An empty path uses the
// default location.
func NewFile(path string) *File {
	if path == "" {
		path = DefaultPath()
	}
	return &File{path: path}
}

// Path returns the snapshot file path.
func (f *File) Path() string {
	return f.path
}

// Save writes the queue snapshot. The write goes to a temp file first
// so a crash mid-write never corrupts the previous snapshot.
func (f *File) Save(q *tasks.Queue) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := q.ToJSON()
	if err != nil {
		return fmt.Errorf("encoding queue snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load restores a queue from the snapshot file. A missing file returns
// a fresh empty queue.
func (f *File) Load(opts ...tasks.QueueOption) (*tasks.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return tasks.NewQueue(opts...), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	q, err := tasks.FromJSON(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", f.path, err)
	}
	return q, nil
}
