// Package tools wraps the external programs bastet runs. Each tool knows
// how to build its command line for a domain and how to turn the program's
// output into annotations.
package tools

import (
	"bufio"
	"io"
	"slices"
	"strings"

	"github.com/mewbotorg/bastet/internal/paths"
	"github.com/mewbotorg/bastet/internal/types"
)

// Emitter receives what a tool's output parser finds.
type Emitter interface {
	Annotate(types.Annotation)
	Fail(error)
}

// Tool is one external program bound to a domain and a project.
type Tool interface {
	Name() string
	Description() string
	Domain() types.Domain
	// Command is executed directly, never through a shell.
	Command() []string
	// Environment is overlaid on the process environment.
	Environment() map[string]string
	AcceptableExitCodes() []int
	// Process parses the tool's stdout. Recoverable problems go to
	// emit.Fail; the returned error is reserved for read failures.
	Process(r io.Reader, emit Emitter) error
}

// Base holds what every tool instance shares. Tools embed it.
type Base struct {
	name        string
	description string
	domain      types.Domain
	repo        *paths.Repo
}

func (b Base) Name() string { return b.name }
func (b Base) Description() string { return b.description }
func (b Base) Domain() types.Domain { return b.domain }
func (b Base) Environment() map[string]string { return nil }
func (b Base) AcceptableExitCodes() []int { return []int{0} }
func (b Base) Repo() *paths.Repo { return b.repo }
func (b Base) is(domain types.Domain) bool { return b.domain == domain }
func (b Base) pythonPath() []string { return b.repo.PythonPath }

// Factory describes a tool and builds instances of it.
type Factory struct {
	Name        string
	Description string
	Domains     []types.Domain
	// Executable is the program looked up on PATH.
	Executable string
	// Package is the pip package that provides Executable.
	Package string
	// Custom marks tools defined in configuration rather than built in.
	Custom bool

	build func(Base) Tool
}

// Supports reports whether the tool can run in domain.
func (f Factory) Supports(domain types.Domain) bool {
	return slices.Contains(f.Domains, domain)
}

// Build creates an instance of the tool for domain and repo.
func (f Factory) Build(domain types.Domain, repo *paths.Repo) (Tool, error) {
	if !f.Supports(domain) {
		return nil, &types.InvalidDomainError{Domain: domain, Tool: f.Name}
	}
	return f.build(Base{name: f.Name, description: f.Description, domain: domain, repo: repo}), nil
}

// eachLine calls fn for every line of r, newline stripped and invalid UTF-8
// replaced. Lines of any length are accepted.
func eachLine(r io.Reader, fn func(line string)) error {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			fn(strings.ToValidUTF8(strings.TrimRight(line, "\r\n"), "�"))
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// drain discards the output of tools whose results are not parsed.
func drain(r io.Reader) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func parsingError(expected, data string, err error) error {
	return &types.OutputParsingError{Expected: expected, Data: data, Err: err}
}
