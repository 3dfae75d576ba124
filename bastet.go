// Package bastet runs python code quality tools over a project and reports
// what they find.
//
// This is the library entry point. For the CLI tool, see cmd/bastet/.
package bastet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/mewbotorg/bastet/discover"
	"github.com/mewbotorg/bastet/internal/config"
	"github.com/mewbotorg/bastet/internal/output"
	"github.com/mewbotorg/bastet/internal/paths"
	"github.com/mewbotorg/bastet/internal/runner"
	"github.com/mewbotorg/bastet/internal/state"
	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
	"github.com/mewbotorg/bastet/internal/watch"
)

// Re-export core types from internal packages so consumers don't need to
// import them.
type (
	Status     = types.Status
	Domain     = types.Domain
	Source     = types.Source
	Annotation = types.Annotation
	ToolResult = types.ToolResult
	Results    = types.Results
	Repo       = paths.Repo
	Definition = tools.Definition
	Discovery  = discover.Result
	ToolStatus = discover.ToolStatus
)

const (
	StatusPassed  = types.StatusPassed
	StatusFixed   = types.StatusFixed
	StatusWarning = types.StatusWarning
	StatusFailed  = types.StatusFailed
	StatusError   = types.StatusError

	DomainFormat = types.DomainFormat
	DomainLint   = types.DomainLint
	DomainAudit  = types.DomainAudit
)

// ConfigError reports a problem with the project configuration or the
// options of an operation, as opposed to a failure of a tool.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Domains     []string `json:"domains"`
	Executable  string   `json:"executable"`
	Package     string   `json:"package,omitempty"`
	Custom      bool     `json:"custom,omitempty"`
}

// ParseDomain looks up a domain by name, ignoring case.
func ParseDomain(name string) (Domain, bool) {
	return types.ParseDomain(name)
}

// Reporters lists the reporter names accepted by WithReporters.
func Reporters() []string {
	return output.Names()
}

// Run runs every selected tool and returns the collected results. A failing
// tool is not an error: inspect Results.Success.
func Run(ctx context.Context, opts ...Option) (*Results, error) {
	rc := applyOpts(opts)
	cfg, registry, err := load(rc)
	if err != nil {
		return nil, err
	}

	var filters []output.Filter
	if rc.changed {
		changed, err := changedFilter(cfg.Root)
		if err != nil {
			return nil, err
		}
		filters = append(filters, changed)
	}
	if rc.baseline != "" {
		store := state.New(cfg.Root, absolute(cfg.Root, rc.baseline))
		if err := store.Load(); err != nil {
			return nil, &ConfigError{Err: fmt.Errorf("loading baseline: %w", err)}
		}
		rc.logger.Debug("baseline loaded", "path", store.Path(), "entries", store.Len())
		filters = append(filters, store.Filter())
	}

	return execute(ctx, rc, cfg, registry, filters)
}

// RecordBaseline runs the tools and stores every annotation worse than
// Passed in the baseline file at path, or reports/baseline.json when path
// is empty. It returns the results and the number of entries recorded.
func RecordBaseline(ctx context.Context, path string, opts ...Option) (*Results, int, error) {
	rc := applyOpts(opts)
	cfg, registry, err := load(rc)
	if err != nil {
		return nil, 0, err
	}
	if path == "" {
		path = state.DefaultPath(cfg.ReportsDir)
	}
	store := state.New(cfg.Root, absolute(cfg.Root, path))
	if err := store.Load(); err != nil {
		return nil, 0, &ConfigError{Err: fmt.Errorf("loading baseline: %w", err)}
	}

	results, err := execute(ctx, rc, cfg, registry, nil)
	if err != nil {
		return results, 0, err
	}
	n := store.Record(results)
	if err := store.Save(); err != nil {
		return results, n, fmt.Errorf("saving baseline: %w", err)
	}
	return results, n, nil
}

// PythonPath gathers the project's python paths without running anything.
func PythonPath(opts ...Option) (*Repo, error) {
	rc := applyOpts(opts)
	cfg, err := config.New(rc.logger, configOptions(rc))
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return cfg.Repo, nil
}

// Tools returns the registered tools in run order: the built-in ones, then
// those defined in configuration or the tools directory.
func Tools(opts ...Option) ([]ToolInfo, error) {
	rc := applyOpts(opts)
	_, registry, err := load(rc)
	if err != nil {
		return nil, err
	}
	factories := registry.All()
	infos := make([]ToolInfo, len(factories))
	for i, f := range factories {
		infos[i] = toolInfo(f)
	}
	return infos, nil
}

// ExplainTool returns the tool called name, ignoring case.
func ExplainTool(name string, opts ...Option) (*ToolInfo, error) {
	rc := applyOpts(opts)
	_, registry, err := load(rc)
	if err != nil {
		return nil, err
	}
	f, ok := registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("tool %q not found", name)
	}
	info := toolInfo(f)
	return &info, nil
}

// Discover reports which registered tools are installed.
func Discover(ctx context.Context, opts ...Option) (*Discovery, error) {
	rc := applyOpts(opts)
	_, registry, err := load(rc)
	if err != nil {
		return nil, err
	}
	return discover.Scan(ctx, registry.All()), nil
}

// Watch runs the tools once, then again whenever a python file or the
// configuration changes, until ctx is cancelled. report, if not nil, is
// called after every run.
func Watch(ctx context.Context, report func(*Results, error), opts ...Option) error {
	rc := applyOpts(opts)
	cfg, err := config.New(rc.logger, configOptions(rc))
	if err != nil {
		return &ConfigError{Err: err}
	}

	run := func(ctx context.Context) {
		results, err := Run(ctx, opts...)
		if report != nil && ctx.Err() == nil {
			report(results, err)
		}
	}
	w, err := watch.New(watch.Options{
		Root:     cfg.Root,
		Ignore:   []string{cfg.ReportsDir},
		Debounce: rc.debounce,
		Logger:   rc.logger,
		OnChange: func(ctx context.Context, changed []string) error {
			rc.logger.Info("change detected", "files", changed)
			run(ctx)
			return nil
		},
	})
	if err != nil {
		return err
	}
	run(ctx)
	return w.Run(ctx)
}

// --- internal helpers ---

func applyOpts(opts []Option) *runConfig {
	rc := &runConfig{}
	for _, o := range opts {
		o(rc)
	}
	if rc.logger == nil {
		rc.logger = log.New(io.Discard)
	}
	if rc.stdout == nil {
		rc.stdout = os.Stdout
	}
	if rc.stderr == nil {
		rc.stderr = os.Stderr
	}
	return rc
}

func configOptions(rc *runConfig) config.Options {
	return config.Options{
		Root:           rc.root,
		Folders:        rc.folders,
		Skip:           rc.skip,
		Disable:        rc.disable,
		Exclude:        rc.exclude,
		Reporters:      rc.reporters,
		Timeout:        rc.timeout,
		Reports:        rc.reports,
		KnownReporters: output.Names(),
	}
}

// load resolves the configuration and builds the tool registry from the
// configured and tools-directory definitions.
func load(rc *runConfig) (*config.Configuration, *tools.Registry, error) {
	cfg, err := config.New(rc.logger, configOptions(rc))
	if err != nil {
		return nil, nil, &ConfigError{Err: err}
	}
	var extra []tools.Definition
	if rc.toolsDir != "" {
		extra, err = tools.LoadDefinitions(rc.logger, absolute(cfg.Root, rc.toolsDir))
		if err != nil {
			return nil, nil, &ConfigError{Err: fmt.Errorf("loading tool definitions: %w", err)}
		}
	}
	return cfg, tools.NewRegistry(cfg.Definitions(rc.logger, extra...)...), nil
}

func execute(ctx context.Context, rc *runConfig, cfg *config.Configuration, registry *tools.Registry, filters []output.Filter) (*Results, error) {
	domains := cfg.Domains()
	if len(rc.domains) > 0 {
		domains = slices.DeleteFunc(slices.Clone(rc.domains), func(d Domain) bool { return cfg.SkipDomains[d] })
	}
	if len(domains) == 0 {
		return nil, &ConfigError{Err: errors.New("every domain is disabled")}
	}

	ropts := output.Options{
		Root:        cfg.Root,
		Out:         rc.stdout,
		Err:         rc.stderr,
		ReportsDir:  cfg.ReportsDir,
		NoColor:     rc.noColor,
		Interactive: rc.interactive,
		Width:       rc.width,
	}
	var reporters []output.Reporter
	for _, name := range cfg.Reporters {
		r, err := output.New(name, ropts)
		if err != nil {
			return nil, &ConfigError{Err: err}
		}
		reporters = append(reporters, r)
	}

	r := &runner.Runner{
		Repo:       cfg.Repo,
		Registry:   registry,
		Handler:    output.NewHandler(reporters, filters...),
		Logger:     rc.logger,
		Timeout:    cfg.Timeout,
		ReportsDir: cfg.ReportsDir,
		SkipTools:  cfg.SkipTools,
		DryRun:     rc.dryRun,
	}
	rc.logger.Debug("starting run", "root", cfg.Root, "domains", domains, "reporters", cfg.Reporters)
	return r.Run(ctx, domains)
}

// changedFilter accepts annotations on files changed in git and those
// about the project as a whole.
func changedFilter(root string) (output.Filter, error) {
	files, err := paths.ChangedFiles(root)
	if err != nil {
		return nil, fmt.Errorf("listing changed files: %w", err)
	}
	changed := make(map[string]bool, len(files))
	for _, f := range files {
		changed[f] = true
	}
	return func(a types.Annotation) bool {
		return a.Source.Path == "" || a.Source.Path == root || changed[a.Source.Path]
	}, nil
}

func absolute(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func toolInfo(f tools.Factory) ToolInfo {
	domains := make([]string, len(f.Domains))
	for i, d := range f.Domains {
		domains[i] = string(d)
	}
	return ToolInfo{
		Name:        f.Name,
		Description: f.Description,
		Domains:     domains,
		Executable:  f.Executable,
		Package:     f.Package,
		Custom:      f.Custom,
	}
}
