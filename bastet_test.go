package bastet_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/mewbotorg/bastet"
)

const projectConfig = `sources: [src]
reporters: [json]
disable: [reuse, ruff, isort, black, mypy, flake8, pylint, pydocstyle, bandit]
tools:
  - name: Demo
    domains: [lint]
    command: [sh, -c, 'echo "src/app.py:2: unused thing"; echo "src/other.py:1: old thing"']
    pattern: '^(?P<file>[^:]+):(?P<line>\d+): (?P<message>.*)$'
`

// project creates a python project whose only tool is a shell script.
func project(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("custom tool uses sh")
	}
	dir := t.TempDir()
	files := map[string]string{
		"pyproject.toml":    "[project]\nname = \"demo\"\n",
		".bastet.yml":       projectConfig,
		"src/app.py":        "import os\nx = 1\n",
		"src/other.py":      "y = 2\n",
		"tests/test_app.py": "def test_app():\n    pass\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRun(t *testing.T) {
	dir := project(t)
	var out bytes.Buffer

	results, err := bastet.Run(context.Background(), bastet.WithRoot(dir), bastet.WithOutput(&out, &out))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if results.Success {
		t.Error("expected a failed run")
	}
	if len(results.Tools) != 1 || results.Tools[0].Tool != "Demo" {
		t.Fatalf("Tools = %+v, want only Demo", results.Tools)
	}
	if len(results.Annotations) != 2 {
		t.Fatalf("got %d annotations, want 2", len(results.Annotations))
	}
	a := results.Annotations[0]
	if a.Source.Path != filepath.Join(dir, "src", "app.py") || a.Source.Line != 2 {
		t.Errorf("source = %+v", a.Source)
	}
	if a.Status != bastet.StatusFailed {
		t.Errorf("status = %v, want Failed", a.Status)
	}
	if _, err := os.Stat(filepath.Join(dir, "reports", "bastet.json")); err != nil {
		t.Errorf("json report not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "reports", "demo-lint.txt")); err != nil {
		t.Errorf("raw output not written: %v", err)
	}
}

func TestRunDomainSelection(t *testing.T) {
	dir := project(t)

	results, err := bastet.Run(context.Background(), bastet.WithRoot(dir), bastet.WithDomains(bastet.DomainAudit))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results.Tools) != 0 || !results.Success {
		t.Errorf("audit run should have nothing to do, got %+v", results.Tools)
	}

	_, err = bastet.Run(context.Background(), bastet.WithRoot(dir), bastet.WithDomains(bastet.DomainLint), bastet.WithSkip("lint"))
	var cfgErr *bastet.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected a ConfigError, got %v", err)
	}
}

func TestRunDryRun(t *testing.T) {
	dir := project(t)
	var buf bytes.Buffer

	results, err := bastet.Run(context.Background(), bastet.WithRoot(dir), bastet.WithDryRun(&buf))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results.Tools) != 0 {
		t.Error("dry run executed tools")
	}
	if !strings.HasPrefix(buf.String(), "# Lint :: Demo\nsh -c ") {
		t.Errorf("unexpected dry run output %q", buf.String())
	}
}

func TestBaseline(t *testing.T) {
	dir := project(t)
	ctx := context.Background()

	_, n, err := bastet.RecordBaseline(ctx, "", bastet.WithRoot(dir))
	if err != nil {
		t.Fatalf("RecordBaseline failed: %v", err)
	}
	if n != 2 {
		t.Errorf("recorded %d entries, want 2", n)
	}
	path := filepath.Join(dir, "reports", "baseline.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("baseline not saved: %v", err)
	}

	results, err := bastet.Run(ctx, bastet.WithRoot(dir), bastet.WithBaseline(path))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results.Annotations) != 0 {
		t.Errorf("baseline did not suppress %d annotations", len(results.Annotations))
	}
}

func TestRunBadBaseline(t *testing.T) {
	dir := project(t)
	bad := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := bastet.Run(context.Background(), bastet.WithRoot(dir), bastet.WithBaseline(bad))
	var cfgErr *bastet.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected a ConfigError, got %v", err)
	}
}

func TestPythonPath(t *testing.T) {
	dir := project(t)

	repo, err := bastet.PythonPath(bastet.WithRoot(dir))
	if err != nil {
		t.Fatalf("PythonPath failed: %v", err)
	}
	found := false
	for _, p := range repo.PythonPath {
		if p == filepath.Join(dir, "src") {
			found = true
		}
	}
	if !found {
		t.Errorf("src missing from %v", repo.PythonPath)
	}
	if len(repo.PythonFiles) != 3 {
		t.Errorf("got %d python files, want 3: %v", len(repo.PythonFiles), repo.PythonFiles)
	}
}

func TestTools(t *testing.T) {
	dir := project(t)
	infos, err := bastet.Tools(bastet.WithRoot(dir))
	if err != nil {
		t.Fatalf("Tools failed: %v", err)
	}
	if len(infos) != 10 {
		t.Fatalf("got %d tools, want 10", len(infos))
	}
	if infos[0].Name != "Reuse" || infos[9].Name != "Demo" || !infos[9].Custom {
		t.Errorf("unexpected order: first %s, last %+v", infos[0].Name, infos[9])
	}
}

func TestToolsDir(t *testing.T) {
	dir := project(t)
	toolsDir := filepath.Join(dir, "tools")
	if err := os.MkdirAll(toolsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	def := "name: Vulture\ndomains: [lint]\ncommand: [vulture, src]\npattern: '^(?P<file>[^:]+):(?P<line>\\d+): (?P<message>.*)$'\n"
	if err := os.WriteFile(filepath.Join(toolsDir, "vulture.yml"), []byte(def), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := bastet.ExplainTool("vulture", bastet.WithRoot(dir), bastet.WithToolsDir("tools"))
	if err != nil {
		t.Fatalf("ExplainTool failed: %v", err)
	}
	if info.Name != "Vulture" || info.Executable != "vulture" {
		t.Errorf("info = %+v", info)
	}
}

func TestExplainTool(t *testing.T) {
	dir := project(t)
	info, err := bastet.ExplainTool("MYPY", bastet.WithRoot(dir))
	if err != nil {
		t.Fatalf("ExplainTool failed: %v", err)
	}
	if info.Name != "MyPy" || info.Package != "mypy" || len(info.Domains) != 1 {
		t.Errorf("info = %+v", info)
	}

	if _, err := bastet.ExplainTool("nope", bastet.WithRoot(dir)); err == nil {
		t.Error("expected an error for an unknown tool")
	}
}

func TestReporters(t *testing.T) {
	names := bastet.Reporters()
	if len(names) != 7 || names[0] != "console" {
		t.Errorf("Reporters() = %v", names)
	}
}

func TestWatch(t *testing.T) {
	dir := project(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan *bastet.Results, 4)
	done := make(chan error, 1)
	go func() {
		done <- bastet.Watch(ctx, func(results *bastet.Results, err error) {
			if err != nil {
				t.Errorf("run failed: %v", err)
			}
			runs <- results
		}, bastet.WithRoot(dir), bastet.WithDebounce(50*time.Millisecond))
	}()

	select {
	case <-runs:
	case <-time.After(10 * time.Second):
		t.Fatal("no initial run")
	}

	if err := os.WriteFile(filepath.Join(dir, "src", "app.py"), []byte("x = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case results := <-runs:
		if len(results.Tools) != 1 {
			t.Errorf("got %d tool runs, want 1", len(results.Tools))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("change did not trigger a run")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Watch did not stop")
	}
}
