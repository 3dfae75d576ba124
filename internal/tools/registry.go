package tools

import (
	"strings"

	"github.com/mewbotorg/bastet/internal/paths"
	"github.com/mewbotorg/bastet/internal/types"
)

var (
	formatAndLint = []types.Domain{types.DomainFormat, types.DomainLint}
	lintOnly      = []types.Domain{types.DomainLint}
)

// Builtin returns the built-in tools in run order.
func Builtin() []Factory {
	return []Factory{
		{
			Name:        "Reuse",
			Description: "Checks that every file carries SPDX copyright and license information, adding it from copyright.json when formatting.",
			Domains:     formatAndLint,
			Executable:  "reuse",
			Package:     "reuse",
			build:       func(b Base) Tool { return Reuse{b} },
		},
		{
			Name:        "Ruff",
			Description: "A fast python linter. Applies its safe fixes when formatting.",
			Domains:     formatAndLint,
			Executable:  "ruff",
			Package:     "ruff",
			build:       func(b Base) Tool { return Ruff{b} },
		},
		{
			Name:        "ISort",
			Description: "Sorts and groups imports.",
			Domains:     formatAndLint,
			Executable:  "isort",
			Package:     "isort",
			build:       func(b Base) Tool { return ISort{b} },
		},
		{
			Name:        "Black",
			Description: "The uncompromising python code formatter.",
			Domains:     formatAndLint,
			Executable:  "black",
			Package:     "black",
			build:       func(b Base) Tool { return Black{b} },
		},
		{
			Name:        "MyPy",
			Description: "Static type checker, run in strict mode over every module root.",
			Domains:     lintOnly,
			Executable:  "mypy",
			Package:     "mypy",
			build:       func(b Base) Tool { return MyPy{b} },
		},
		{
			Name:        "Flake8",
			Description: "Code style, unused imports and a range of other issues.",
			Domains:     lintOnly,
			Executable:  "flake8",
			Package:     "flake8",
			build:       func(b Base) Tool { return Flake8{b} },
		},
		{
			Name:        "PyLint",
			Description: "Lints using the whole code base as context, including duplicate code detection.",
			Domains:     lintOnly,
			Executable:  "pylint",
			Package:     "pylint",
			build:       func(b Base) Tool { return PyLint{b} },
		},
		{
			Name:        "PyDocStyle",
			Description: "Checks the presence and format of docstrings.",
			Domains:     lintOnly,
			Executable:  "pydocstyle",
			Package:     "pydocstyle",
			build:       func(b Base) Tool { return PyDocStyle{b} },
		},
		{
			Name:        "Bandit",
			Description: "Static security analysis.",
			Domains:     []types.Domain{types.DomainAudit},
			Executable:  "bandit",
			Package:     "bandit",
			build:       func(b Base) Tool { return Bandit{b} },
		},
	}
}

// Registry is the ordered set of tools available to a run.
type Registry struct {
	factories []Factory
}

// NewRegistry returns the built-in tools followed by custom ones. A custom
// tool whose name matches an earlier tool replaces it in place.
func NewRegistry(custom ...Factory) *Registry {
	r := &Registry{factories: Builtin()}
	for _, f := range custom {
		if i := r.index(f.Name); i >= 0 {
			r.factories[i] = f
			continue
		}
		r.factories = append(r.factories, f)
	}
	return r
}

// All returns every registered tool in run order.
func (r *Registry) All() []Factory {
	return append([]Factory(nil), r.factories...)
}

// Lookup finds a tool by name, ignoring case.
func (r *Registry) Lookup(name string) (Factory, bool) {
	if i := r.index(name); i >= 0 {
		return r.factories[i], true
	}
	return Factory{}, false
}

// Select builds the tools that run in domain, leaving out those whose
// lowercased name is in skip.
func (r *Registry) Select(domain types.Domain, repo *paths.Repo, skip map[string]bool) []Tool {
	var out []Tool
	for _, f := range r.factories {
		if !f.Supports(domain) || skip[strings.ToLower(f.Name)] {
			continue
		}
		t, err := f.Build(domain, repo)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (r *Registry) index(name string) int {
	for i, f := range r.factories {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}
