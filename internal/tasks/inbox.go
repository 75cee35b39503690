package tasks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/marcus/foreman/internal/logging"
)

// Inbox watches a directory for dropped task files. Any *.json file
// written into the directory is parsed as a CreateInput and submitted;
// the file is removed after successful submission.
type Inbox struct {
	dir     string
	submit  func(CreateInput) *Task
	watcher *fsnotify.Watcher
	logger  *logging.Logger
	done    chan struct{}
}

// NewInbox creates an inbox watching dir. submit is called for each
// parsed task file, typically Queue.Create or Orchestrator.CreateTask.
func NewInbox(dir string, submit func(CreateInput) *Task) (*Inbox, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating inbox dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching inbox dir: %w", err)
	}

	return &Inbox{
		dir:     dir,
		submit:  submit,
		watcher: watcher,
		logger:  logging.Component("inbox"),
		done:    make(chan struct{}),
	}, nil
}

// Start drains existing files then processes watcher events until
// Close is called. It runs in its own goroutine.
func (i *Inbox) Start() {
	i.drain()

	go func() {
		for {
			select {
			case ev, ok := <-i.watcher.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) {
					i.ingest(ev.Name)
				}
			case err, ok := <-i.watcher.Errors:
				if !ok {
					return
				}
				i.logger.Errorf("inbox watcher: %v", err)
			case <-i.done:
				return
			}
		}
	}()
}

// Close stops the watcher.
func (i *Inbox) Close() error {
	close(i.done)
	return i.watcher.Close()
}

// drain ingests task files already present in the inbox directory.
func (i *Inbox) drain() {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		i.logger.Errorf("reading inbox dir: %v", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		i.ingest(filepath.Join(i.dir, entry.Name()))
	}
}

// ingest parses and submits a single task file.
func (i *Inbox) ingest(path string) {
	if !strings.HasSuffix(path, ".json") {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		i.logger.WarnCtx("reading task file", map[string]any{"path": path, "error": err.Error()})
		return
	}

	var in CreateInput
	if err := json.Unmarshal(data, &in); err != nil {
		i.logger.WarnCtx("invalid task file", map[string]any{"path": path, "error": err.Error()})
		return
	}
	if !in.Type.Valid() {
		i.logger.WarnCtx("task file has unknown type", map[string]any{"path": path, "type": in.Type})
		return
	}

	t := i.submit(in)
	i.logger.InfoCtx("task ingested", map[string]any{"path": path, "task": t.ID, "type": t.Type})

	if err := os.Remove(path); err != nil {
		i.logger.WarnCtx("removing ingested file", map[string]any{"path": path, "error": err.Error()})
	}
}
