package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Builtins returns the standard tool set rooted at workDir. Paths in
// tool inputs resolve relative to workDir and may not escape it.
func Builtins(workDir string) []*Tool {
	return []*Tool{
		readFileTool(workDir),
		writeFileTool(workDir),
		listDirTool(workDir),
		runCommandTool(workDir),
		runTestsTool(workDir),
		gitStatusTool(workDir),
		gitDiffTool(workDir),
		gitCommitTool(workDir),
		searchCodeTool(workDir),
		analyzeGoTool(workDir),
	}
}

// resolvePath joins a tool-supplied path with the work dir and rejects
// escapes outside it.
func resolvePath(workDir, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(workDir, resolved)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	absWork, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving work dir: %w", err)
	}
	rel, err := filepath.Rel(absWork, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes work dir", path)
	}
	return abs, nil
}

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func readFileTool(workDir string) *Tool {
	return &Tool{
		Name:        "read_file",
		Description: "Read the contents of a file",
		Category:    CategoryFile,
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "File path relative to the work dir"},
			},
			Required: []string{"path"},
		},
		Run: func(_ context.Context, input map[string]any) *Result {
			path, err := resolvePath(workDir, stringArg(input, "path"))
			if err != nil {
				return Fail(err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return Fail(err)
			}
			return &Result{Success: true, Output: string(data)}
		},
	}
}

func writeFileTool(workDir string) *Tool {
	return &Tool{
		Name:        "write_file",
		Description: "Write content to a file, creating it if needed",
		Category:    CategoryFile,
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"path":    {Type: "string", Description: "File path relative to the work dir"},
				"content": {Type: "string", Description: "Full file content to write"},
			},
			Required: []string{"path", "content"},
		},
		Run: func(_ context.Context, input map[string]any) *Result {
			path, err := resolvePath(workDir, stringArg(input, "path"))
			if err != nil {
				return Fail(err)
			}

			action := "modified"
			if _, err := os.Stat(path); os.IsNotExist(err) {
				action = "created"
			}
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return Fail(err)
			}
			content := stringArg(input, "content")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return Fail(err)
			}
			return &Result{
				Success: true,
				Output:  fmt.Sprintf("%s %s (%d bytes)", action, stringArg(input, "path"), len(content)),
				Metadata: map[string]any{
					"path":   stringArg(input, "path"),
					"action": action,
				},
			}
		},
	}
}

func listDirTool(workDir string) *Tool {
	return &Tool{
		Name:        "list_dir",
		Description: "List directory entries",
		Category:    CategoryFile,
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Directory path, defaults to the work dir root"},
			},
		},
		Run: func(_ context.Context, input map[string]any) *Result {
			path := stringArg(input, "path")
			if path == "" {
				path = "."
			}
			resolved, err := resolvePath(workDir, path)
			if err != nil {
				return Fail(err)
			}
			entries, err := os.ReadDir(resolved)
			if err != nil {
				return Fail(err)
			}
			var b strings.Builder
			for _, e := range entries {
				if e.IsDir() {
					fmt.Fprintf(&b, "%s/\n", e.Name())
				} else {
					fmt.Fprintf(&b, "%s\n", e.Name())
				}
			}
			return &Result{Success: true, Output: b.String(), Metadata: map[string]any{"entries": len(entries)}}
		},
	}
}

func runCommandTool(workDir string) *Tool {
	return &Tool{
		Name:        "run_command",
		Description: "Run a shell command in the work dir",
		Category:    CategoryShell,
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"command": {Type: "string", Description: "Command line to execute with sh -c"},
			},
			Required: []string{"command"},
		},
		Run: func(ctx context.Context, input map[string]any) *Result {
			command := stringArg(input, "command")
			if command == "" {
				return Fail(fmt.Errorf("command is required"))
			}
			return runShell(ctx, workDir, command)
		},
	}
}

func runTestsTool(workDir string) *Tool {
	return &Tool{
		Name:        "run_tests",
		Description: "Run the Go test suite",
		Category:    CategoryTest,
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"package": {Type: "string", Description: "Package pattern, defaults to ./..."},
			},
		},
		Run: func(ctx context.Context, input map[string]any) *Result {
			pkg := stringArg(input, "package")
			if pkg == "" {
				pkg = "./..."
			}
			return runShell(ctx, workDir, "go test "+pkg)
		},
	}
}

func gitStatusTool(workDir string) *Tool {
	return &Tool{
		Name:        "git_status",
		Description: "Show git working tree status",
		Category:    CategoryGit,
		Schema:      Schema{Type: "object", Properties: map[string]Property{}},
		Run: func(ctx context.Context, _ map[string]any) *Result {
			return runShell(ctx, workDir, "git status --porcelain=v1 -b")
		},
	}
}

func gitDiffTool(workDir string) *Tool {
	return &Tool{
		Name:        "git_diff",
		Description: "Show uncommitted changes",
		Category:    CategoryGit,
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Limit the diff to a path"},
			},
		},
		Run: func(ctx context.Context, input map[string]any) *Result {
			command := "git diff"
			if path := stringArg(input, "path"); path != "" {
				command += " -- " + path
			}
			return runShell(ctx, workDir, command)
		},
	}
}

func gitCommitTool(workDir string) *Tool {
	return &Tool{
		Name:             "git_commit",
		Description:      "Stage all changes and create a commit",
		Category:         CategoryGit,
		RequiresApproval: true,
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"message": {Type: "string", Description: "Commit message"},
			},
			Required: []string{"message"},
		},
		Run: func(ctx context.Context, input map[string]any) *Result {
			message := stringArg(input, "message")
			if message == "" {
				return Fail(fmt.Errorf("message is required"))
			}
			if res := runShell(ctx, workDir, "git add -A"); !res.Success {
				return res
			}
			cmd := exec.CommandContext(ctx, "git", "commit", "-m", message)
			cmd.Dir = workDir
			out, err := cmd.CombinedOutput()
			if err != nil {
				return &Result{Success: false, Output: string(out), Error: err.Error()}
			}
			return &Result{Success: true, Output: string(out)}
		},
	}
}

func searchCodeTool(workDir string) *Tool {
	return &Tool{
		Name:        "search_code",
		Description: "Search files for a substring, returning file:line matches",
		Category:    CategorySearch,
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"query":  {Type: "string", Description: "Substring to search for"},
				"suffix": {Type: "string", Description: "Restrict to files with this suffix, e.g. .go"},
			},
			Required: []string{"query"},
		},
		Run: func(_ context.Context, input map[string]any) *Result {
			query := stringArg(input, "query")
			if query == "" {
				return Fail(fmt.Errorf("query is required"))
			}
			suffix := stringArg(input, "suffix")

			var b strings.Builder
			matches := 0
			err := filepath.WalkDir(workDir, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.IsDir() {
					if d.Name() == ".git" || d.Name() == "node_modules" {
						return filepath.SkipDir
					}
					return nil
				}
				if suffix != "" && !strings.HasSuffix(path, suffix) {
					return nil
				}
				f, err := os.Open(path)
				if err != nil {
					return nil
				}
				defer f.Close()

				rel, _ := filepath.Rel(workDir, path)
				scanner := bufio.NewScanner(f)
				for line := 1; scanner.Scan(); line++ {
					if strings.Contains(scanner.Text(), query) {
						fmt.Fprintf(&b, "%s:%d: %s\n", rel, line, strings.TrimSpace(scanner.Text()))
						matches++
					}
				}
				return nil
			})
			if err != nil {
				return Fail(err)
			}
			return &Result{Success: true, Output: b.String(), Metadata: map[string]any{"matches": matches}}
		},
	}
}

func analyzeGoTool(workDir string) *Tool {
	return &Tool{
		Name:        "analyze_go",
		Description: "Count functions, tests and TODO markers in a Go file",
		Category:    CategoryAnalysis,
		Schema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"path": {Type: "string", Description: "Go file to analyze"},
			},
			Required: []string{"path"},
		},
		Run: func(_ context.Context, input map[string]any) *Result {
			path, err := resolvePath(workDir, stringArg(input, "path"))
			if err != nil {
				return Fail(err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return Fail(err)
			}

			funcs, tests, todos := 0, 0, 0
			for _, line := range strings.Split(string(data), "\n") {
				trimmed := strings.TrimSpace(line)
				if strings.HasPrefix(trimmed, "func ") {
					funcs++
					if strings.HasPrefix(trimmed, "func Test") {
						tests++
					}
				}
				if strings.Contains(trimmed, "TODO") {
					todos++
				}
			}
			return &Result{
				Success: true,
				Output:  fmt.Sprintf("functions=%d tests=%d todos=%d", funcs, tests, todos),
				Metadata: map[string]any{
					"functions": funcs,
					"tests":     tests,
					"todos":     todos,
				},
			}
		},
	}
}

// runShell executes a command line with sh -c in dir. Non-zero exits
// are reported as failed results, not errors.
func runShell(ctx context.Context, dir, command string) *Result {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &Result{Success: false, Output: string(out), Error: err.Error()}
	}
	return &Result{Success: true, Output: string(out)}
}
