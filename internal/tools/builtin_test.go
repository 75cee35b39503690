package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func findTool(t *testing.T, set []*Tool, name string) *Tool {
	t.Helper()
	for _, tool := range set {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("tool %s not found", name)
	return nil
}

func TestBuiltinsRegisterCleanly(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterAll(Builtins(t.TempDir())...); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if r.Len() != 10 {
		t.Errorf("registered %d tools, want 10", r.Len())
	}
	commit, _ := r.Get("git_commit")
	if !commit.RequiresApproval {
		t.Error("git_commit must require approval")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	set := Builtins(dir)
	write := findTool(t, set, "write_file")
	read := findTool(t, set, "read_file")
	ctx := context.Background()

	res := write.Run(ctx, map[string]any{"path": "pkg/notes.txt", "content": "hello"})
	if !res.Success {
		t.Fatalf("write failed: %s", res.Error)
	}
	if res.Metadata["action"] != "created" {
		t.Errorf("action = %v, want created", res.Metadata["action"])
	}

	res = write.Run(ctx, map[string]any{"path": "pkg/notes.txt", "content": "hello again"})
	if res.Metadata["action"] != "modified" {
		t.Errorf("action = %v, want modified", res.Metadata["action"])
	}

	res = read.Run(ctx, map[string]any{"path": "pkg/notes.txt"})
	if !res.Success || res.Output != "hello again" {
		t.Errorf("read = %+v", res)
	}
}

func TestReadMissingFileFails(t *testing.T) {
	read := findTool(t, Builtins(t.TempDir()), "read_file")
	res := read.Run(context.Background(), map[string]any{"path": "nope.txt"})
	if res.Success {
		t.Error("expected failure for missing file")
	}
}

func TestPathEscapeRejected(t *testing.T) {
	dir := t.TempDir()
	set := Builtins(dir)
	ctx := context.Background()

	for _, path := range []string{"../outside.txt", "../../etc/passwd", "a/../../b"} {
		res := findTool(t, set, "write_file").Run(ctx, map[string]any{"path": path, "content": "x"})
		if res.Success {
			t.Errorf("write to %q should be rejected", path)
		}
		if !strings.Contains(res.Error, "escapes work dir") {
			t.Errorf("error = %q", res.Error)
		}
	}

	// Paths inside the work dir that merely contain dots are fine.
	res := findTool(t, set, "write_file").Run(ctx, map[string]any{"path": "a/../b.txt", "content": "x"})
	if !res.Success {
		t.Errorf("in-tree path rejected: %s", res.Error)
	}
}

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "file.go"), []byte("package x"), 0644); err != nil {
		t.Fatal(err)
	}

	list := findTool(t, Builtins(dir), "list_dir")
	res := list.Run(context.Background(), map[string]any{})
	if !res.Success {
		t.Fatalf("list failed: %s", res.Error)
	}
	if !strings.Contains(res.Output, "sub/") || !strings.Contains(res.Output, "file.go") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestRunCommand(t *testing.T) {
	run := findTool(t, Builtins(t.TempDir()), "run_command")
	ctx := context.Background()

	res := run.Run(ctx, map[string]any{"command": "echo ok"})
	if !res.Success || strings.TrimSpace(res.Output) != "ok" {
		t.Errorf("echo = %+v", res)
	}

	res = run.Run(ctx, map[string]any{"command": "exit 3"})
	if res.Success {
		t.Error("non-zero exit should fail")
	}

	res = run.Run(ctx, map[string]any{})
	if res.Success {
		t.Error("missing command should fail")
	}
}

func TestSearchCode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a\nvar Needle = 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("Needle here too"), 0644); err != nil {
		t.Fatal(err)
	}

	search := findTool(t, Builtins(dir), "search_code")
	res := search.Run(context.Background(), map[string]any{"query": "Needle", "suffix": ".go"})
	if !res.Success {
		t.Fatalf("search failed: %s", res.Error)
	}
	if res.Metadata["matches"] != 1 {
		t.Errorf("matches = %v, want 1", res.Metadata["matches"])
	}
	if !strings.Contains(res.Output, "a.go:2") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestAnalyzeGo(t *testing.T) {
	dir := t.TempDir()
	src := `package a

func One() {}

func TestOne(t *testing.T) {}

// TODO: tighten this
func two() {}
`
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	analyze := findTool(t, Builtins(dir), "analyze_go")
	res := analyze.Run(context.Background(), map[string]any{"path": "a.go"})
	if !res.Success {
		t.Fatalf("analyze failed: %s", res.Error)
	}
	if res.Metadata["functions"] != 3 || res.Metadata["tests"] != 1 || res.Metadata["todos"] != 1 {
		t.Errorf("metadata = %v", res.Metadata)
	}
}
