package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	flagHook      bool
	flagCIOnly    bool
	flagCopyright string
	flagLicense   string
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize bastet configuration files",
	Long: `Scaffolds .bastet.yml and a GitHub Actions workflow running bastet. With
--copyright, copyright.json is written too so that reuse can add headers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&flagHook, "hook", false, "Create a git pre-commit hook that runs bastet lint")
	initCmd.Flags().BoolVar(&flagCIOnly, "ci", false, "Only generate the GitHub Actions workflow (skip config files)")
	initCmd.Flags().StringVar(&flagCopyright, "copyright", "", "Copyright holder written to copyright.json")
	initCmd.Flags().StringVar(&flagLicense, "license", "BSD-2-Clause", "SPDX license identifier written to copyright.json")
	rootCmd.AddCommand(initCmd)
}

type scaffold struct {
	path    string
	content string
	mode    os.FileMode
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	w := io.Writer(os.Stdout)
	if cmd != nil {
		w = cmd.OutOrStdout()
	}

	if flagHook {
		return initHook(w, dir)
	}

	workflow := scaffold{filepath.Join(dir, ".github", "workflows", "bastet.yml"), workflowTemplate, 0o644}
	if flagCIOnly {
		return writeScaffolds(w, workflow)
	}

	files := []scaffold{
		{filepath.Join(dir, ".bastet.yml"), configTemplate, 0o644},
		workflow,
	}
	if flagCopyright != "" {
		data, err := json.MarshalIndent(map[string]string{
			"copyright": flagCopyright,
			"license":   flagLicense,
		}, "", "  ")
		if err != nil {
			return err
		}
		files = append(files, scaffold{filepath.Join(dir, "copyright.json"), string(data) + "\n", 0o644})
	}
	return writeScaffolds(w, files...)
}

func writeScaffolds(w io.Writer, files ...scaffold) error {
	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Fprintf(w, "  skip %s (already exists)\n", f.path)
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", f.path, err)
		}
		if err := os.WriteFile(f.path, []byte(f.content), f.mode); err != nil {
			return fmt.Errorf("writing %s: %w", f.path, err)
		}
		fmt.Fprintf(w, "  create %s\n", f.path)
	}
	return nil
}

func initHook(w io.Writer, dir string) error {
	gitDir := filepath.Join(dir, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		return fmt.Errorf("no .git directory found in %s (is this a git repository?)", dir)
	}
	return writeScaffolds(w, scaffold{filepath.Join(gitDir, "hooks", "pre-commit"), preCommitTemplate, 0o755})
}

const configTemplate = `# bastet configuration
# Settings here override [tool.bastet] in pyproject.toml.

# Directory names that may become PYTHONPATH entries
sources:
  - src
  - tests

# PYTHONPATH entries left out of coverage
coverage_ignore:
  - tests

# Paths to skip during discovery, in gitignore format
exclude:
  - "build/"
  - "dist/"
  - ".venv/"

# Tools or domains (format, lint, audit) that never run
disable: []

# Reporters: console, note, github, json, sarif, markdown, html
reporters:
  - note

# Seconds each tool may run before it is killed
timeout: 30

# Directory for raw tool output and report files
reports: reports

# Extra tools: each output line matching pattern becomes an annotation
# tools:
#   - name: Vulture
#     domains: [lint]
#     command: [vulture, "{python_path}"]
#     pattern: '^(?P<file>[^:]+):(?P<line>\d+): (?P<message>.*)$'
#     status: warning
`

const preCommitTemplate = `#!/bin/sh
# bastet pre-commit hook
echo "Running bastet lint..."
bastet lint --changed --no-color
exit $?
`

const workflowTemplate = `name: bastet

on:
  push:
    branches: [main]
  pull_request:
    branches: [main]

permissions:
  contents: read
  security-events: write

jobs:
  bastet:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4

      - uses: actions/setup-python@v5
        with:
          python-version: "3.12"

      - uses: actions/setup-go@v5
        with:
          go-version: stable

      - name: Install tools
        run: |
          pip install reuse ruff isort black mypy flake8 pylint pydocstyle bandit
          go install github.com/mewbotorg/bastet/cmd/bastet@latest

      - name: Run bastet
        run: bastet lint --reporter github --reporter markdown --reporter sarif

      - name: Run audit
        if: always()
        run: bastet audit --reporter github --reporter sarif --reports reports/audit

      - name: Upload SARIF results
        if: always()
        uses: github/codeql-action/upload-sarif@v3
        with:
          sarif_file: reports/bastet.sarif

      - name: Upload reports
        if: always()
        uses: actions/upload-artifact@v4
        with:
          name: bastet-reports
          path: reports/
`
