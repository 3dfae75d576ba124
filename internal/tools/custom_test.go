package tools_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

const pyrightPattern = `^(?P<file>[^:]+):(?P<line>\d+):(?P<col>\d+) - (?P<code>\w+): (?P<message>.*)$`

func pyright() tools.Definition {
	return tools.Definition{
		Name:        "Pyright",
		Description: "Static type checker",
		Domains:     []string{"lint"},
		Command:     []string{"pyright", "{python_path}", "--project={root}"},
		Env:         map[string]string{"NODE_OPTIONS": "--max-old-space-size=4096"},
		ExitCodes:   []int{0, 1},
		Pattern:     pyrightPattern,
		Status:      "warning",
	}
}

func TestCompileCustomTool(t *testing.T) {
	f, err := tools.Compile(pyright())
	require.NoError(t, err)
	require.True(t, f.Custom)
	require.Equal(t, "pyright", f.Executable)
	require.Equal(t, []types.Domain{types.DomainLint}, f.Domains)

	repo := testRepo("/p")
	tool, err := f.Build(types.DomainLint, repo)
	require.NoError(t, err)
	require.Equal(t, []string{"pyright", repo.PythonPath[0], repo.PythonPath[1], "--project=" + repo.Root}, tool.Command())
	require.Equal(t, []int{0, 1}, tool.AcceptableExitCodes())
	require.Equal(t, "--max-old-space-size=4096", tool.Environment()["NODE_OPTIONS"])

	_, err = f.Build(types.DomainFormat, repo)
	require.Error(t, err)
}

func TestCustomToolProcess(t *testing.T) {
	f, err := tools.Compile(pyright())
	require.NoError(t, err)
	tool, err := f.Build(types.DomainLint, testRepo("/p"))
	require.NoError(t, err)

	out := "No configuration file found.\n" +
		"src/a.py:3:5 - error: Bad thing\n" +
		"    more detail\n" +
		"src/b.py:10:1 - warning: Other thing\n" +
		"2 errors, 0 warnings\n"
	rec := process(t, tool, out)
	require.Empty(t, rec.errs)
	require.Len(t, rec.annotations, 2)

	first := rec.annotations[0]
	require.Equal(t, types.StatusWarning, first.Status)
	require.Equal(t, types.Source{Path: "src/a.py", Line: 3, Column: 5}, first.Source)
	require.Equal(t, "error", first.Code)
	require.Equal(t, "Bad thing", first.Message)
	require.Equal(t, "    more detail", first.Description)

	second := rec.annotations[1]
	require.Equal(t, "Other thing", second.Message)
	require.Equal(t, "2 errors, 0 warnings", second.Description)
}

func TestCompileDefaults(t *testing.T) {
	f, err := tools.Compile(tools.Definition{
		Name:    "todo",
		Command: []string{"grep", "-rn", "TODO", "{root}"},
		Pattern: `^(?P<file>[^:]+):(?P<line>\d+):(?P<message>.*)$`,
	})
	require.NoError(t, err)
	require.Equal(t, []types.Domain{types.DomainLint}, f.Domains)

	tool, err := f.Build(types.DomainLint, testRepo("/p"))
	require.NoError(t, err)
	require.Equal(t, []int{0}, tool.AcceptableExitCodes())

	rec := process(t, tool, "src/a.py:4:# TODO: fix\n")
	require.Len(t, rec.annotations, 1)
	require.Equal(t, types.StatusFailed, rec.annotations[0].Status)
	require.Equal(t, "", rec.annotations[0].Code)
	require.Equal(t, 0, rec.annotations[0].Source.Column)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		def  tools.Definition
		want string
	}{
		{"missing name", tools.Definition{Command: []string{"x"}, Pattern: "(?P<message>.*)"}, "missing name"},
		{"missing command", tools.Definition{Name: "x", Pattern: "(?P<message>.*)"}, "no command"},
		{"missing pattern", tools.Definition{Name: "x", Command: []string{"x"}}, "no pattern"},
		{"bad regex", tools.Definition{Name: "x", Command: []string{"x"}, Pattern: "(["}, "invalid pattern"},
		{"no message group", tools.Definition{Name: "x", Command: []string{"x"}, Pattern: "(?P<file>.*)"}, "message"},
		{"bad domain", tools.Definition{Name: "x", Command: []string{"x"}, Pattern: "(?P<message>.*)", Domains: []string{"deploy"}}, "unknown domain"},
		{"bad status", tools.Definition{Name: "x", Command: []string{"x"}, Pattern: "(?P<message>.*)", Status: "meh"}, "unknown status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tools.Compile(tt.def)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}

	factories, errs := tools.CompileAll([]tools.Definition{pyright(), tests[0].def})
	require.Len(t, factories, 1)
	require.Len(t, errs, 1)
}

func TestRegistryCustomTools(t *testing.T) {
	custom, err := tools.Compile(pyright())
	require.NoError(t, err)
	replacement, err := tools.Compile(tools.Definition{
		Name:    "black",
		Domains: []string{"format"},
		Command: []string{"black", "--fast", "{python_path}"},
		Pattern: "(?P<message>.*)",
	})
	require.NoError(t, err)

	reg := tools.NewRegistry(custom, replacement)
	all := reg.All()
	require.Len(t, all, 10)
	require.Equal(t, "Pyright", all[9].Name)
	require.Equal(t, "black", all[3].Name)
	require.True(t, all[3].Custom)

	var lint []string
	for _, tool := range reg.Select(types.DomainLint, testRepo("/p"), nil) {
		lint = append(lint, tool.Name())
	}
	require.NotContains(t, lint, "black")
	require.Contains(t, lint, "Pyright")
}

func TestLoadDefinitions(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`name: pyright
domains: [lint]
command: [pyright, "{python_path}"]
pattern: '^(?P<file>[^:]+):(?P<line>\d+) - (?P<message>.*)$'
---
name: vulture
description: Finds dead code
command: [vulture, "{python_path}"]
exit_codes: [0, 3]
pattern: '^(?P<file>[^:]+):(?P<line>\d+): (?P<message>.*)$'
---
# anonymous documents are ignored
description: nothing
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools.yml"), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("name: ignored"), 0644))

	defs, err := tools.LoadDefinitions(nil, dir)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	require.Equal(t, "pyright", defs[0].Name)
	require.Equal(t, []int{0, 3}, defs[1].ExitCodes)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [unterminated"), 0644))
	_, err = tools.LoadDefinitions(nil, dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parsing")
}

func TestLoadDefinitionsSkipsLargeFiles(t *testing.T) {
	dir := t.TempDir()
	big := append([]byte("name: huge\ndescription: "), bytes.Repeat([]byte("x"), 1<<20)...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "huge.yml"), big, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.yml"), []byte("name: small\ncommand: [small]\n"), 0644))

	var logs bytes.Buffer
	defs, err := tools.LoadDefinitions(log.New(&logs), dir)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	require.Equal(t, "small", defs[0].Name)
	require.Contains(t, logs.String(), "larger than 1 MB")
	require.Contains(t, logs.String(), "huge.yml")
}
