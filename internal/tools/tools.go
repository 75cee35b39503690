// Package tools provides the capability registry agents draw on during
// execution. Each tool describes its input with a JSON schema and
// reports expected failures through its Result rather than panicking.
package tools

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Category groups tools by what they touch.
type Category string

const (
	CategoryFile     Category = "file"
	CategoryTest     Category = "test"
	CategoryLint     Category = "lint"
	CategoryGit      Category = "git"
	CategoryAnalysis Category = "analysis"
	CategoryShell    Category = "shell"
	CategorySearch   Category = "search"
)

// Schema describes a tool's input in JSON Schema form.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single schema field.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Result is the outcome of a tool invocation. Expected failures (file
// not found, non-zero exit) are reported with Success false; only
// programming errors may escape a tool as a panic.
type Result struct {
	Success  bool           `json:"success"`
	Output   string         `json:"output"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Fail builds a failed result from an error.
func Fail(err error) *Result {
	return &Result{Success: false, Error: err.Error()}
}

// RunFunc executes a tool against a decoded input map.
type RunFunc func(ctx context.Context, input map[string]any) *Result

// Tool is a named, schema-described capability.
type Tool struct {
	Name             string
	Description      string
	Category         Category
	Schema           Schema
	RequiresApproval bool
	Run              RunFunc
}

// ErrDuplicateTool is returned when registering a name that already
// exists. Duplicate registration is a hard error to prevent accidental
// tool shadowing.
var ErrDuplicateTool = errors.New("tool already registered")

// Registry is a flat collection of tools keyed by unique name.
// Registered once at startup and read-shared across agents.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Returns ErrDuplicateTool if the name is taken.
func (r *Registry) Register(t *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return ErrDuplicateTool
	}
	r.tools[t.Name] = t
	return nil
}

// RegisterAll registers tools, stopping at the first error.
func (r *Registry) RegisterAll(ts ...*Tool) error {
	for _, t := range ts {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Unregister removes a tool. Returns false if it was not registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return false
	}
	delete(r.tools, name)
	return true
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// GetAll returns all tools sorted by name.
func (r *Registry) GetAll() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetByCategory returns tools in the category, sorted by name.
func (r *Registry) GetByCategory(c Category) []*Tool {
	all := r.GetAll()
	out := make([]*Tool, 0, len(all))
	for _, t := range all {
		if t.Category == c {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
