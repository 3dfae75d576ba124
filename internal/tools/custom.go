package tools

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/mewbotorg/bastet/internal/types"
)

// Definition is a user-defined tool as written in configuration.
type Definition struct {
	Name        string            `yaml:"name" toml:"name"`
	Description string            `yaml:"description,omitempty" toml:"description"`
	Domains     []string          `yaml:"domains" toml:"domains"`
	Command     []string          `yaml:"command" toml:"command"`
	Env         map[string]string `yaml:"env,omitempty" toml:"env"`
	ExitCodes   []int             `yaml:"exit_codes,omitempty" toml:"exit_codes"`
	Pattern     string            `yaml:"pattern" toml:"pattern"`
	Status      string            `yaml:"status,omitempty" toml:"status"`
	Executable  string            `yaml:"executable,omitempty" toml:"executable"`
}

// Groups a custom pattern may capture.
const (
	groupFile    = "file"
	groupLine    = "line"
	groupCol     = "col"
	groupCode    = "code"
	groupMessage = "message"
)

// Compile validates a definition and turns it into a Factory.
func Compile(def Definition) (Factory, error) {
	if def.Name == "" {
		return Factory{}, errors.New("tool definition missing name")
	}
	if len(def.Command) == 0 {
		return Factory{}, fmt.Errorf("tool %s: no command defined", def.Name)
	}
	if def.Pattern == "" {
		return Factory{}, fmt.Errorf("tool %s: no pattern defined", def.Name)
	}
	re, err := regexp.Compile(def.Pattern)
	if err != nil {
		return Factory{}, fmt.Errorf("tool %s: invalid pattern: %w", def.Name, err)
	}
	if re.SubexpIndex(groupMessage) < 0 {
		return Factory{}, fmt.Errorf("tool %s: pattern needs a (?P<%s>...) group", def.Name, groupMessage)
	}

	status := types.StatusFailed
	if def.Status != "" {
		if status, err = types.ParseStatus(def.Status); err != nil {
			return Factory{}, fmt.Errorf("tool %s: %w", def.Name, err)
		}
	}

	var domains []types.Domain
	for _, name := range def.Domains {
		d, ok := types.ParseDomain(name)
		if !ok {
			return Factory{}, fmt.Errorf("tool %s: unknown domain %q", def.Name, name)
		}
		domains = append(domains, d)
	}
	if len(domains) == 0 {
		domains = []types.Domain{types.DomainLint}
	}

	exitCodes := def.ExitCodes
	if len(exitCodes) == 0 {
		exitCodes = []int{0}
	}
	executable := def.Executable
	if executable == "" {
		executable = def.Command[0]
	}

	spec := customSpec{
		command:   def.Command,
		env:       def.Env,
		exitCodes: exitCodes,
		pattern:   re,
		status:    status,
	}
	return Factory{
		Name:        def.Name,
		Description: def.Description,
		Domains:     domains,
		Executable:  executable,
		Custom:      true,
		build:       func(b Base) Tool { return Custom{Base: b, spec: spec} },
	}, nil
}

// CompileAll compiles a slice of definitions, returning factories and any errors.
func CompileAll(defs []Definition) ([]Factory, []error) {
	var factories []Factory
	var errs []error
	for _, def := range defs {
		f, err := Compile(def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		factories = append(factories, f)
	}
	return factories, errs
}

type customSpec struct {
	command   []string
	env       map[string]string
	exitCodes []int
	pattern   *regexp.Regexp
	status    types.Status
}

// Custom is a tool defined in configuration. Each output line matching its
// pattern becomes an annotation; other lines are notes on the previous one.
type Custom struct {
	Base
	spec customSpec
}

// Command expands the {python_path}, {python_files}, {module_path} and
// {root} placeholders. A placeholder standing alone as an argument expands
// to one argument per path.
func (t Custom) Command() []string {
	lists := map[string][]string{
		"{python_path}":  t.repo.PythonPath,
		"{python_files}": t.repo.PythonFiles,
		"{module_path}":  t.repo.ModulePath,
		"{root}":         {t.repo.Root},
	}
	var cmd []string
	for _, arg := range t.spec.command {
		if list, ok := lists[arg]; ok {
			cmd = append(cmd, list...)
			continue
		}
		for placeholder, list := range lists {
			arg = strings.ReplaceAll(arg, placeholder, strings.Join(list, string(os.PathListSeparator)))
		}
		cmd = append(cmd, arg)
	}
	return cmd
}

func (t Custom) Environment() map[string]string { return t.spec.env }

func (t Custom) AcceptableExitCodes() []int { return t.spec.exitCodes }

func (t Custom) Process(r io.Reader, emit Emitter) error {
	var current *types.Annotation
	flush := func() {
		if current != nil {
			emit.Annotate(*current)
			current = nil
		}
	}
	re := t.spec.pattern
	group := func(m []string, name string) string {
		if i := re.SubexpIndex(name); i >= 0 && i < len(m) {
			return m[i]
		}
		return ""
	}
	number := func(m []string, name, line string) (int, bool) {
		s := strings.TrimSpace(group(m, name))
		if s == "" {
			return 0, true
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			emit.Fail(parsingError("a number in group "+name, line, err))
			return 0, false
		}
		return n, true
	}

	err := eachLine(r, func(line string) {
		m := re.FindStringSubmatch(line)
		if m == nil {
			if current != nil && strings.TrimSpace(line) != "" {
				current.AddNote(line)
			}
			return
		}
		lineNo, ok := number(m, groupLine, line)
		if !ok {
			return
		}
		col, ok := number(m, groupCol, line)
		if !ok {
			return
		}
		flush()
		a := types.NewAnnotation(t.spec.status,
			types.Source{Path: strings.TrimSpace(group(m, groupFile)), Line: lineNo, Column: col},
			group(m, groupCode), group(m, groupMessage))
		current = &a
	})
	flush()
	return err
}

// maxDefinitionFileSize is the maximum size for a single YAML tool file (1 MB).
const maxDefinitionFileSize = 1 << 20

// LoadDefinitions loads tool definitions from the YAML files in dir.
// Files larger than 1 MB are skipped with a warning.
func LoadDefinitions(logger *log.Logger, dir string) ([]Definition, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var all []Definition
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isYAML(path) {
			return nil
		}
		if info.Size() > maxDefinitionFileSize {
			logger.Warn("skipping tool definition file larger than 1 MB", "file", path, "size", info.Size())
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		defs, err := parseMultiDocYAML(data)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		all = append(all, defs...)
		return nil
	})
	return all, err
}

// parseMultiDocYAML splits a YAML file on "---" boundaries and parses each document.
func parseMultiDocYAML(data []byte) ([]Definition, error) {
	var defs []Definition
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var def Definition
		err := decoder.Decode(&def)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if def.Name != "" {
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
