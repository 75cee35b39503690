package tools

import (
	"context"
	"errors"
	"testing"
)

func noopTool(name string, category Category) *Tool {
	return &Tool{
		Name:     name,
		Category: category,
		Schema:   Schema{Type: "object"},
		Run: func(context.Context, map[string]any) *Result {
			return &Result{Success: true}
		},
	}
}

func TestRegisterDuplicateIsError(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(noopTool("read_file", CategoryFile)); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := r.Register(noopTool("read_file", CategoryShell))
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("second register = %v, want ErrDuplicateTool", err)
	}
	if r.Len() != 1 {
		t.Errorf("len = %d, want 1", r.Len())
	}

	// The original registration survives the failed one.
	got, _ := r.Get("read_file")
	if got.Category != CategoryFile {
		t.Error("duplicate registration replaced the original")
	}
}

func TestRegisterAllStopsAtFirstError(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterAll(
		noopTool("a", CategoryFile),
		noopTool("a", CategoryFile),
		noopTool("b", CategoryFile),
	)
	if !errors.Is(err, ErrDuplicateTool) {
		t.Fatalf("err = %v", err)
	}
	if r.Has("b") {
		t.Error("registration should stop before b")
	}
}

func TestUnregister(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(noopTool("a", CategoryFile))

	if !r.Unregister("a") {
		t.Fatal("Unregister returned false")
	}
	if r.Unregister("a") {
		t.Error("second Unregister should return false")
	}

	// Name is free again.
	if err := r.Register(noopTool("a", CategoryGit)); err != nil {
		t.Errorf("re-register after unregister: %v", err)
	}
}

func TestGetAllSorted(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterAll(
		noopTool("zeta", CategoryFile),
		noopTool("alpha", CategoryGit),
		noopTool("mid", CategoryFile),
	)

	all := r.GetAll()
	if len(all) != 3 {
		t.Fatalf("len = %d", len(all))
	}
	if all[0].Name != "alpha" || all[1].Name != "mid" || all[2].Name != "zeta" {
		t.Errorf("order = %s, %s, %s", all[0].Name, all[1].Name, all[2].Name)
	}
}

func TestGetByCategory(t *testing.T) {
	r := NewRegistry()
	_ = r.RegisterAll(
		noopTool("a", CategoryFile),
		noopTool("b", CategoryGit),
		noopTool("c", CategoryFile),
	)

	files := r.GetByCategory(CategoryFile)
	if len(files) != 2 {
		t.Fatalf("file tools = %d, want 2", len(files))
	}
	if len(r.GetByCategory(CategoryLint)) != 0 {
		t.Error("expected no lint tools")
	}
}

func TestFail(t *testing.T) {
	res := Fail(errors.New("boom"))
	if res.Success || res.Error != "boom" {
		t.Errorf("Fail = %+v", res)
	}
}
