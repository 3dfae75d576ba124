package bastet

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// runConfig holds the resolved options of an operation.
type runConfig struct {
	root        string
	folders     []string
	domains     []Domain
	skip        []string
	disable     []string
	exclude     []string
	reporters   []string
	timeout     time.Duration
	reports     string
	toolsDir    string
	changed     bool
	baseline    string
	dryRun      io.Writer
	noColor     bool
	interactive bool
	width       int
	debounce    time.Duration
	stdout      io.Writer
	stderr      io.Writer
	logger      *log.Logger
}

// Option configures an operation.
type Option func(*runConfig)

// WithRoot sets the project root. By default the nearest directory above
// the working directory holding pyproject.toml or .git is used.
func WithRoot(dir string) Option {
	return func(c *runConfig) {
		c.root = dir
	}
}

// WithFolders restricts discovery to the given folders below the root.
func WithFolders(folders ...string) Option {
	return func(c *runConfig) {
		c.folders = append(c.folders, folders...)
	}
}

// WithDomains runs only the given domains, in run order.
func WithDomains(domains ...Domain) Option {
	return func(c *runConfig) {
		c.domains = append(c.domains, domains...)
	}
}

// WithSkip adds tools or domains to leave out on top of the configured ones.
func WithSkip(names ...string) Option {
	return func(c *runConfig) {
		c.skip = append(c.skip, names...)
	}
}

// WithDisable replaces the configured disable list.
func WithDisable(names ...string) Option {
	return func(c *runConfig) {
		c.disable = append([]string{}, names...)
	}
}

// WithExclude replaces the configured exclude patterns.
func WithExclude(patterns ...string) Option {
	return func(c *runConfig) {
		c.exclude = append([]string{}, patterns...)
	}
}

// WithReporters replaces the configured reporters.
func WithReporters(names ...string) Option {
	return func(c *runConfig) {
		c.reporters = append(c.reporters, names...)
	}
}

// WithTimeout sets the per-tool timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithReportsDir sets the directory raw output and report files go to.
func WithReportsDir(dir string) Option {
	return func(c *runConfig) {
		c.reports = dir
	}
}

// WithToolsDir loads extra tool definitions from the YAML files in dir.
func WithToolsDir(dir string) Option {
	return func(c *runConfig) {
		c.toolsDir = dir
	}
}

// WithChangedOnly reports only annotations on files changed in git.
func WithChangedOnly() Option {
	return func(c *runConfig) {
		c.changed = true
	}
}

// WithBaseline suppresses annotations recorded in the baseline file.
func WithBaseline(path string) Option {
	return func(c *runConfig) {
		c.baseline = path
	}
}

// WithDryRun prints the commands to w instead of running them.
func WithDryRun(w io.Writer) Option {
	return func(c *runConfig) {
		c.dryRun = w
	}
}

// WithOutput sets the writers reporters print to.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *runConfig) {
		c.stdout = stdout
		c.stderr = stderr
	}
}

// WithNoColor disables colours in terminal reporters.
func WithNoColor() Option {
	return func(c *runConfig) {
		c.noColor = true
	}
}

// WithInteractive shows a progress spinner while tools run.
func WithInteractive() Option {
	return func(c *runConfig) {
		c.interactive = true
	}
}

// WithWidth fixes the terminal width used for headers.
func WithWidth(width int) Option {
	return func(c *runConfig) {
		c.width = width
	}
}

// WithLogger sets the logger. Operations log nothing by default.
func WithLogger(logger *log.Logger) Option {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithDebounce sets how long Watch waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(c *runConfig) {
		c.debounce = d
	}
}
