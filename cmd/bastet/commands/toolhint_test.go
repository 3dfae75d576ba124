package commands

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mewbotorg/bastet"
	"github.com/mewbotorg/bastet/internal/types"
)

func TestMissingTools(t *testing.T) {
	notFound := func(tool, exe string) error {
		return &types.ExecError{Tool: tool, Err: &exec.Error{Name: exe, Err: exec.ErrNotFound}}
	}
	results := &bastet.Results{Errors: []error{
		notFound("Ruff", "ruff"),
		&types.ExecError{Tool: "Black", Err: os.ErrPermission},
		&types.ProcessError{ExitCode: 2, Command: []string{"mypy"}},
		notFound("MyPy", "mypy"),
		notFound("Ruff", "ruff"),
	}}
	assert.Equal(t, []string{"Ruff", "MyPy"}, missingTools(results))
	assert.Empty(t, missingTools(&bastet.Results{}))
}

func TestPrintInstallHint(t *testing.T) {
	t.Setenv("VIRTUAL_ENV", "")
	infos := []bastet.ToolInfo{
		{Name: "Ruff", Executable: "ruff", Package: "ruff"},
		{Name: "MyPy", Executable: "mypy", Package: "mypy"},
		{Name: "Vulture", Executable: "vulture", Custom: true},
	}
	var buf bytes.Buffer
	printInstallHint(&buf, []string{"Ruff", "MyPy", "Vulture"}, infos)

	out := buf.String()
	assert.Contains(t, out, "Tip: 3 tool(s) could not be found on PATH: Ruff, MyPy, Vulture\n")
	assert.Contains(t, out, "No virtualenv is active")
	assert.Contains(t, out, "  pip install ruff mypy\n")
	assert.Contains(t, out, "  Install by hand: vulture\n")
	assert.Contains(t, out, "bastet discover")
}

func TestPrintInstallHintNothingMissing(t *testing.T) {
	var buf bytes.Buffer
	printInstallHint(&buf, nil, nil)
	assert.Empty(t, buf.String())
}

func TestPrintInstallHintInVirtualenv(t *testing.T) {
	t.Setenv("VIRTUAL_ENV", "/project/.venv")
	var buf bytes.Buffer
	printInstallHint(&buf, []string{"Ruff"}, []bastet.ToolInfo{{Name: "Ruff", Executable: "ruff", Package: "ruff"}})
	assert.NotContains(t, buf.String(), "virtualenv")
	assert.Contains(t, buf.String(), "pip install ruff")
}

func TestLintHintsMissingTool(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"pyproject.toml": "[project]\nname = \"demo\"\n",
		".bastet.yml": `disable: [reuse, ruff, isort, black, mypy, flake8, pylint, pydocstyle, bandit]
tools:
  - name: Ghost
    domains: [lint]
    command: [bastet-no-such-program]
    pattern: '^(?P<file>[^:]+):(?P<line>\d+): (?P<message>.*)$'
`,
		"src/app.py": "x = 1\n",
	} {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	resetFlags(t)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"lint", "--root", dir, "--no-color"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, exitFailed, exitCode(err))
	assert.Contains(t, errOut.String(), "could not be found on PATH: Ghost")
	assert.Contains(t, errOut.String(), "Install by hand: bastet-no-such-program")
}
