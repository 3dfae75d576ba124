// Package config loads bastet settings from pyproject.toml and .bastet.yml
// and combines them with command line options into a run configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/mewbotorg/bastet/internal/paths"
	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

const (
	pyprojectFile = "pyproject.toml"
	// maxConfigSize bounds every configuration file read (1 MB).
	maxConfigSize = 1 << 20
)

// DefaultTimeout is how long a single tool may run.
const DefaultTimeout = 30 * time.Second

// Settings are the values a project can configure.
type Settings struct {
	Sources        []string
	CoverageIgnore []string
	Exclude        []string
	Disable        []string
	Reporters      []string
	Timeout        time.Duration
	Reports        string
	Tools          []tools.Definition
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		Sources:        []string{"src", "tests"},
		CoverageIgnore: []string{"tests"},
		Reporters:      []string{"note"},
		Timeout:        DefaultTimeout,
		Reports:        "reports",
	}
}

// Load reads [tool.bastet] from pyproject.toml in dir and then .bastet.yml
// (or .bastet.yaml), each overriding the keys it sets. Missing files are not
// an error. Malformed values are logged and ignored.
func Load(logger *log.Logger, dir string) (Settings, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := Defaults()

	pyproject := filepath.Join(dir, pyprojectFile)
	data, err := readLimited(pyproject)
	if err != nil {
		return s, err
	}
	if data != nil {
		var doc map[string]any
		if err := toml.Unmarshal(data, &doc); err != nil {
			return s, fmt.Errorf("parsing %s: %w", pyproject, err)
		}
		tool, _ := table(doc, "tool")
		if section, ok := table(tool, "bastet"); ok {
			s.apply(logger, pyproject, section, tomlCodec)
		}
	}

	for _, name := range []string{".bastet.yml", ".bastet.yaml"} {
		path := filepath.Join(dir, name)
		data, err := readLimited(path)
		if err != nil {
			return s, err
		}
		if data == nil {
			continue
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return s, fmt.Errorf("parsing %s: %w", path, err)
		}
		s.apply(logger, path, doc, yamlCodec)
		break
	}
	return s, nil
}

func readLimited(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %s (%d bytes, max 1 MB)", path, info.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// table returns doc[key] when it is itself a table.
func table(doc map[string]any, key string) (map[string]any, bool) {
	sub, ok := doc[key].(map[string]any)
	return sub, ok
}

// codec is the format a settings file was written in.
type codec struct {
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

var (
	tomlCodec = codec{marshal: toml.Marshal, unmarshal: toml.Unmarshal}
	yamlCodec = codec{marshal: yaml.Marshal, unmarshal: yaml.Unmarshal}
)

func (s *Settings) apply(logger *log.Logger, file string, raw map[string]any, c codec) {
	lists := map[string]*[]string{
		"sources":         &s.Sources,
		"coverage_ignore": &s.CoverageIgnore,
		"exclude":         &s.Exclude,
		"disable":         &s.Disable,
		"reporters":       &s.Reporters,
	}
	for key, dst := range lists {
		v, ok := raw[key]
		if !ok {
			continue
		}
		list, ok := stringList(v)
		if !ok {
			logger.Warn("config value is not a list of strings, using default", "file", file, "key", key)
			continue
		}
		*dst = list
	}

	if v, ok := raw["timeout"]; ok {
		switch n := v.(type) {
		case int:
			s.Timeout = time.Duration(n) * time.Second
		case int64:
			s.Timeout = time.Duration(n) * time.Second
		case float64:
			s.Timeout = time.Duration(n * float64(time.Second))
		default:
			logger.Warn("config timeout is not a number of seconds, using default", "file", file)
		}
	}
	if v, ok := raw["reports"]; ok {
		if dir, ok := v.(string); ok && dir != "" {
			s.Reports = dir
		} else {
			logger.Warn("config reports is not a directory name, using default", "file", file)
		}
	}
	if v, ok := raw["tools"]; ok {
		defs, err := decodeTools(v, c)
		if err != nil {
			logger.Warn("ignoring tool definitions", "file", file, "err", err)
		} else {
			s.Tools = append(s.Tools, defs...)
		}
	}
}

func stringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, str)
	}
	return out, true
}

// decodeTools accepts either a list of definitions or a table of them keyed
// by name. The value is re-encoded with the codec of the file it came from
// and decoded into Definition.
func decodeTools(v any, c codec) ([]tools.Definition, error) {
	switch v.(type) {
	case []any:
		var doc struct {
			Tools []tools.Definition `yaml:"tools" toml:"tools"`
		}
		if err := recode(c, v, &doc); err != nil {
			return nil, err
		}
		return doc.Tools, nil
	case map[string]any:
		var doc struct {
			Tools map[string]tools.Definition `yaml:"tools" toml:"tools"`
		}
		if err := recode(c, v, &doc); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(doc.Tools))
		for name := range doc.Tools {
			names = append(names, name)
		}
		sort.Strings(names)
		defs := make([]tools.Definition, 0, len(names))
		for _, name := range names {
			def := doc.Tools[name]
			if def.Name == "" {
				def.Name = name
			}
			defs = append(defs, def)
		}
		return defs, nil
	default:
		return nil, fmt.Errorf("tools must be a list or a table, got %T", v)
	}
}

// recode wraps v in a "tools" document, since TOML has no top-level arrays.
func recode(c codec, v any, dst any) error {
	data, err := c.marshal(map[string]any{"tools": v})
	if err != nil {
		return err
	}
	return c.unmarshal(data, dst)
}

// Options are the command line inputs. Nil slices and zero values fall back
// to the loaded settings.
type Options struct {
	Root    string
	Folders []string
	// Skip is always added to the disabled set.
	Skip []string
	// Disable replaces the configured disable list when non-nil.
	Disable []string
	// Exclude replaces the configured exclude list when non-nil.
	Exclude   []string
	Reporters []string
	Timeout   time.Duration
	Reports   string
	// KnownReporters lists the valid reporter names. Unknown ones are dropped.
	KnownReporters []string
}

// Configuration is everything a run needs.
type Configuration struct {
	Root        string
	Settings    Settings
	Reporters   []string
	SkipDomains map[types.Domain]bool
	SkipTools   map[string]bool
	Repo        *paths.Repo
	Timeout     time.Duration
	ReportsDir  string
}

// ResolveRoot returns the absolute root: root itself when given, otherwise
// the nearest project root above the working directory, otherwise the
// working directory.
func ResolveRoot(root string) (string, error) {
	if root != "" {
		return filepath.Abs(root)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	if found, err := paths.FindRoot(wd); err == nil {
		return found, nil
	}
	return wd, nil
}

// New resolves the root, loads its settings, applies opts and gathers the
// python paths.
func New(logger *log.Logger, opts Options) (*Configuration, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	root, err := ResolveRoot(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	settings, err := Load(logger, root)
	if err != nil {
		return nil, err
	}

	c := &Configuration{
		Root:        root,
		Settings:    settings,
		SkipDomains: map[types.Domain]bool{},
		SkipTools:   map[string]bool{},
		Timeout:     settings.Timeout,
		ReportsDir:  settings.Reports,
	}
	if opts.Timeout > 0 {
		c.Timeout = opts.Timeout
	}
	if opts.Reports != "" {
		c.ReportsDir = opts.Reports
	}
	if !filepath.IsAbs(c.ReportsDir) {
		c.ReportsDir = filepath.Join(root, c.ReportsDir)
	}

	reporters := settings.Reporters
	if len(opts.Reporters) > 0 {
		reporters = opts.Reporters
	}
	for _, name := range reporters {
		name = strings.ToLower(strings.TrimSpace(name))
		if opts.KnownReporters != nil && !slices.Contains(opts.KnownReporters, name) {
			logger.Warn("unknown reporter", "name", name)
			continue
		}
		if !slices.Contains(c.Reporters, name) {
			c.Reporters = append(c.Reporters, name)
		}
	}

	disabled := settings.Disable
	if opts.Disable != nil {
		disabled = opts.Disable
	}
	for _, entry := range append(slices.Clone(disabled), opts.Skip...) {
		if d, ok := types.ParseDomain(entry); ok {
			c.SkipDomains[d] = true
			continue
		}
		c.SkipTools[strings.ToLower(strings.TrimSpace(entry))] = true
	}

	exclude := settings.Exclude
	if opts.Exclude != nil {
		exclude = opts.Exclude
	}
	// Positional folders are relative to the working directory, not the root.
	var folders []string
	for _, folder := range opts.Folders {
		abs, err := filepath.Abs(folder)
		if err != nil {
			return nil, fmt.Errorf("resolving folder %s: %w", folder, err)
		}
		folders = append(folders, abs)
	}
	c.Repo, err = paths.NewGatherer(logger, root, folders).Gather(exclude, settings.Sources, settings.CoverageIgnore)
	if err != nil {
		return nil, fmt.Errorf("gathering python paths: %w", err)
	}
	return c, nil
}

// Domains returns the domains to run, in order.
func (c *Configuration) Domains() []types.Domain {
	var out []types.Domain
	for _, d := range types.AllDomains() {
		if !c.SkipDomains[d] {
			out = append(out, d)
		}
	}
	return out
}

// Definitions compiles the configured user-defined tools plus extra, logging
// and skipping invalid ones.
func (c *Configuration) Definitions(logger *log.Logger, extra ...tools.Definition) []tools.Factory {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	factories, errs := tools.CompileAll(append(slices.Clone(c.Settings.Tools), extra...))
	for _, err := range errs {
		logger.Warn("invalid tool definition", "err", err)
	}
	return factories
}
