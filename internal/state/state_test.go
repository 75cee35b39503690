package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/marcus/foreman/internal/tasks"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "queue.json")
	f := NewFile(path)

	q := tasks.NewQueue()
	created := q.Create(tasks.CreateInput{
		Type:     tasks.TypeFeature,
		Priority: tasks.PriorityHigh,
		Title:    "wire the importer",
	})
	q.UpdateStatus(created.ID, tasks.StatusRunning)
	q.UpdateStatus(created.ID, tasks.StatusCompleted)

	if err := f.Save(q); err != nil {
		t.Fatal(err)
	}

	restored, err := f.Load()
	if err != nil {
		t.Fatal(err)
	}
	got, ok := restored.Get(created.ID)
	if !ok {
		t.Fatal("task lost in round trip")
	}
	if got.Status != tasks.StatusCompleted || got.Title != "wire the importer" {
		t.Errorf("task = %+v", got)
	}
}

func TestLoadMissingFileReturnsEmptyQueue(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "absent.json"))

	q, err := f.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(q.GetAll()) != 0 {
		t.Error("expected empty queue for missing snapshot")
	}
}

func TestLoadCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFile(path).Load(); err == nil {
		t.Fatal("expected error for corrupt snapshot")
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")
	f := NewFile(path)

	if err := f.Save(tasks.NewQueue()); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "queue.json" {
		t.Errorf("dir entries = %v", entries)
	}
}

func TestSaveOverwritesPreviousSnapshot(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "queue.json"))

	first := tasks.NewQueue()
	first.Create(tasks.CreateInput{Type: tasks.TypeDocs, Title: "one"})
	if err := f.Save(first); err != nil {
		t.Fatal(err)
	}

	second := tasks.NewQueue()
	second.Create(tasks.CreateInput{Type: tasks.TypeDocs, Title: "two"})
	second.Create(tasks.CreateInput{Type: tasks.TypeDocs, Title: "three"})
	if err := f.Save(second); err != nil {
		t.Fatal(err)
	}

	restored, err := f.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(restored.GetAll()) != 2 {
		t.Errorf("restored %d tasks, want 2", len(restored.GetAll()))
	}
}

func TestNewFileDefaultPath(t *testing.T) {
	if NewFile("").Path() != DefaultPath() {
		t.Error("empty path should fall back to default")
	}
	if NewFile("/tmp/x.json").Path() != "/tmp/x.json" {
		t.Error("explicit path should be kept")
	}
}
