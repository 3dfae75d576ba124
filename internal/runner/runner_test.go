package runner_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mewbotorg/bastet/internal/output"
	"github.com/mewbotorg/bastet/internal/paths"
	"github.com/mewbotorg/bastet/internal/runner"
	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

const linePattern = `^(?P<file>[^:]+):(?P<line>\d+): (?P<message>.*)$`

func shellTool(t *testing.T, name, script string, exitCodes ...int) tools.Factory {
	t.Helper()
	f, err := tools.Compile(tools.Definition{
		Name:      name,
		Domains:   []string{"lint"},
		Command:   []string{"sh", "-c", script},
		ExitCodes: exitCodes,
		Pattern:   linePattern,
	})
	require.NoError(t, err)
	return f
}

// newRunner returns a runner over the given custom tools only.
func newRunner(t *testing.T, custom ...tools.Factory) *runner.Runner {
	t.Helper()
	root := t.TempDir()
	skip := map[string]bool{}
	for _, f := range tools.Builtin() {
		skip[strings.ToLower(f.Name)] = true
	}
	return &runner.Runner{
		Repo:       &paths.Repo{Root: root},
		Registry:   tools.NewRegistry(custom...),
		Handler:    output.NewHandler(nil),
		Timeout:    5 * time.Second,
		ReportsDir: filepath.Join(root, "reports"),
		SkipTools:  skip,
	}
}

func TestRunParsesOutput(t *testing.T) {
	r := newRunner(t, shellTool(t, "Demo", `echo "a.py:3: bad thing"; echo "  detail"; echo oops >&2; exit 1`, 0, 1))

	results, err := r.Run(context.Background(), []types.Domain{types.DomainLint})
	require.NoError(t, err)
	require.NotEmpty(t, results.RunID)
	require.False(t, results.Success)
	require.Empty(t, results.Errors)

	require.Len(t, results.Tools, 1)
	require.Equal(t, "Demo", results.Tools[0].Tool)
	require.Equal(t, 1, results.Tools[0].ExitCode)
	require.Equal(t, types.StatusFailed, results.Tools[0].Status)

	require.Len(t, results.Annotations, 1)
	a := results.Annotations[0]
	require.Equal(t, "Demo", a.Tool)
	require.Equal(t, types.DomainLint, a.Domain)
	require.Equal(t, types.Source{Path: filepath.Join(r.Repo.Root, "a.py"), Line: 3}, a.Source)
	require.Equal(t, "bad thing", a.Message)
	require.Equal(t, "  detail", a.Description)

	report, err := os.ReadFile(filepath.Join(r.ReportsDir, "demo-lint.txt"))
	require.NoError(t, err)
	require.Contains(t, string(report), "a.py:3: bad thing\n")
	require.Contains(t, string(report), "oops\n")
}

func TestRunUnexpectedExitCode(t *testing.T) {
	r := newRunner(t, shellTool(t, "Crash", "exit 3"))

	results, err := r.Run(context.Background(), []types.Domain{types.DomainLint})
	require.NoError(t, err)
	require.False(t, results.Success)
	require.Equal(t, types.StatusError, results.Status())

	require.Len(t, results.Errors, 1)
	var pe *types.ProcessError
	require.True(t, errors.As(results.Errors[0], &pe))
	require.Equal(t, 3, pe.ExitCode)
	require.Equal(t, []string{"sh", "-c", "exit 3"}, pe.Command)
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	r := newRunner(t, shellTool(t, "Slow", "sleep 30"))
	r.Timeout = 200 * time.Millisecond

	start := time.Now()
	results, err := r.Run(context.Background(), []types.Domain{types.DomainLint})
	require.NoError(t, err)
	require.Less(t, time.Since(start), 10*time.Second)

	require.True(t, results.HasTimeout())
	require.False(t, results.Success)
	require.Len(t, results.Errors, 1, "a timeout is not also reported as a bad exit code")
	require.Equal(t, types.StatusError, results.Tools[0].Status)
}

func TestRunMissingExecutable(t *testing.T) {
	f, err := tools.Compile(tools.Definition{
		Name:    "Ghost",
		Command: []string{"bastet-no-such-program"},
		Pattern: linePattern,
	})
	require.NoError(t, err)
	r := newRunner(t, f)

	results, err := r.Run(context.Background(), []types.Domain{types.DomainLint})
	require.NoError(t, err)
	require.False(t, results.Success)

	var execErr *types.ExecError
	require.True(t, errors.As(results.Errors[0], &execErr))
	require.Equal(t, "Ghost", execErr.Tool)
	require.Equal(t, 1, results.Tools[0].ExitCode)
}

func TestRunToolEnvironmentWins(t *testing.T) {
	t.Setenv("BASTET_TEST_VALUE", "process")
	f, err := tools.Compile(tools.Definition{
		Name:      "Env",
		Command:   []string{"sh", "-c", `echo "x.py:1: $BASTET_TEST_VALUE"`},
		Env:       map[string]string{"BASTET_TEST_VALUE": "tool"},
		ExitCodes: []int{0},
		Pattern:   linePattern,
		Status:    "warning",
	})
	require.NoError(t, err)
	r := newRunner(t, f)

	results, err := r.Run(context.Background(), []types.Domain{types.DomainLint})
	require.NoError(t, err)
	require.True(t, results.Success)
	require.Len(t, results.Annotations, 1)
	require.Equal(t, "tool", results.Annotations[0].Message)
}

func TestRunSequentialAndSkipped(t *testing.T) {
	r := newRunner(t,
		shellTool(t, "First", `echo "a.py:1: one"`),
		shellTool(t, "Second", `echo "b.py:2: two"`),
		shellTool(t, "Third", `echo "c.py:3: three"`),
	)
	r.SkipTools["second"] = true

	results, err := r.Run(context.Background(), []types.Domain{types.DomainFormat, types.DomainLint})
	require.NoError(t, err)
	require.Len(t, results.Tools, 2)
	require.Equal(t, "First", results.Tools[0].Tool)
	require.Equal(t, "Third", results.Tools[1].Tool)
}

func TestRunCancelled(t *testing.T) {
	r := newRunner(t, shellTool(t, "Never", "exit 0"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := r.Run(ctx, []types.Domain{types.DomainLint})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, results.Tools)
}

func TestDryRun(t *testing.T) {
	r := newRunner(t, shellTool(t, "Quoted", `echo "a b"`))
	var buf bytes.Buffer
	r.DryRun = &buf

	results, err := r.Run(context.Background(), []types.Domain{types.DomainLint})
	require.NoError(t, err)
	require.Empty(t, results.Tools)
	require.Equal(t, "# Lint :: Quoted\nsh -c 'echo \"a b\"'\n", buf.String())
	require.NoDirExists(t, r.ReportsDir)
}

// syncBuffer is shared by reporters that are written from the output
// copier and the parser at the same time.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReportsReachReporters(t *testing.T) {
	var out syncBuffer
	r := newRunner(t, shellTool(t, "Demo", `echo "a.py:3: bad thing"`))
	console := output.NewConsole(output.Options{Root: r.Repo.Root, Out: &out, Err: &out, NoColor: true, Width: 80})
	note := output.NewNote(output.Options{Root: r.Repo.Root, Out: &out, Err: &out, NoColor: true, Width: 80})
	r.Handler = output.NewHandler([]output.Reporter{console, note})

	_, err := r.Run(context.Background(), []types.Domain{types.DomainLint})
	require.NoError(t, err)

	got := out.String()
	require.Contains(t, got, "==== Lint :: Demo ")
	require.Contains(t, got, "a.py:3: bad thing\n")
	require.Contains(t, got, "a.py:3 []: bad thing\n")
	require.Contains(t, got, "[FAIL] Lint :: Demo (1 notes)")
}
