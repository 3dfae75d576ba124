package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mewbotorg/bastet"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

var (
	flagRoot      string
	flagSkip      []string
	flagDisable   []string
	flagExclude   []string
	flagReporters []string
	flagTimeout   time.Duration
	flagReports   string
	flagToolsDir  string
	flagFormat    string
	flagNoColor   bool
	flagVerbose   bool
)

// logger is shared by every command. It only prints warnings unless
// --verbose is given.
var logger = log.NewWithOptions(os.Stderr, log.Options{
	Prefix: "bastet",
	Level:  log.WarnLevel,
})

// checksFailed is set by commands that ran tools with at least one failure.
var checksFailed bool

var rootCmd = &cobra.Command{
	Use:   "bastet",
	Short: "Run python formatters, linters and auditors over a project",
	Long: `bastet discovers the python files of a project, works out its PYTHONPATH and
runs reuse, ruff, isort, black, mypy, flake8, pylint, pydocstyle and bandit over
it, reporting every finding in one consistent format.

Configuration is read from [tool.bastet] in pyproject.toml and from .bastet.yml,
with command line flags taking precedence.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			logger.SetLevel(log.DebugLevel)
		}
		if os.Getenv("NO_COLOR") != "" {
			flagNoColor = true
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagRoot, "root", "", "Root directory of the project (default: nearest pyproject.toml or .git)")
	pf.StringSliceVar(&flagSkip, "skip", nil, "Tools or domains to skip, on top of the configured 'disable' list")
	pf.StringSliceVar(&flagDisable, "disable", nil, "Tools or domains to disable (replaces the configured list)")
	pf.StringSliceVar(&flagExclude, "exclude", nil, "Paths to exclude from discovery, in gitignore format (replaces the configured list)")
	pf.StringSliceVar(&flagReporters, "reporter", nil, "Reporters to use: "+strings.Join(bastet.Reporters(), ", "))
	pf.DurationVar(&flagTimeout, "timeout", 0, "Time each tool may run before it is killed (default 30s)")
	pf.StringVar(&flagReports, "reports", "", "Directory for raw tool output and report files (default: reports)")
	pf.StringVar(&flagToolsDir, "tools-dir", "", "Directory of YAML tool definitions to add")
	pf.StringVar(&flagFormat, "format", "text", "Output format for listings (text, json)")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Log debug information")
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	checksFailed = false
	err := fang.Execute(ctx, rootCmd,
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
	)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err != nil:
		return exitUsage
	case checksFailed:
		return exitFailed
	default:
		return exitOK
	}
}

// commonOptions turns the persistent flags into library options. Lists
// that replace configuration are only passed when given explicitly.
func commonOptions(cmd *cobra.Command) []bastet.Option {
	opts := []bastet.Option{
		bastet.WithLogger(logger),
		bastet.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	}
	flags := cmd.Flags()
	if flagRoot != "" {
		opts = append(opts, bastet.WithRoot(flagRoot))
	}
	if len(flagSkip) > 0 {
		opts = append(opts, bastet.WithSkip(flagSkip...))
	}
	if flags.Changed("disable") {
		opts = append(opts, bastet.WithDisable(flagDisable...))
	}
	if flags.Changed("exclude") {
		opts = append(opts, bastet.WithExclude(flagExclude...))
	}
	if len(flagReporters) > 0 {
		opts = append(opts, bastet.WithReporters(flagReporters...))
	}
	if flagTimeout > 0 {
		opts = append(opts, bastet.WithTimeout(flagTimeout))
	}
	if flagReports != "" {
		opts = append(opts, bastet.WithReportsDir(flagReports))
	}
	if flagToolsDir != "" {
		opts = append(opts, bastet.WithToolsDir(flagToolsDir))
	}
	if flagNoColor {
		opts = append(opts, bastet.WithNoColor())
	}
	return opts
}

func jsonOutput() (bool, error) {
	switch strings.ToLower(flagFormat) {
	case "", "text":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("invalid --format %q (text, json)", flagFormat)
	}
}
