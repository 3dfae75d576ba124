package output

import (
	"fmt"
	"strings"

	"github.com/mewbotorg/bastet/internal/meta"
	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

// GitHub writes GitHub Actions workflow commands: a collapsible group per
// tool and, at the end, one annotation per affected line. Annotations are
// emitted together at the end because a check run only shows the first few
// on the commit.
type GitHub struct {
	opts Options
}

// NewGitHub creates the "github" reporter.
func NewGitHub(opts Options) *GitHub {
	return &GitHub{opts: opts.withDefaults()}
}

func (g *GitHub) Create(tool tools.Tool) Instance {
	return &githubInstance{g: g, tool: tool}
}

func (g *GitHub) Summarise(results *types.Results) error {
	w := g.opts.Out
	issues := meta.Regroup(results.Annotations, types.StatusWarning)

	fmt.Fprintln(w, "::group::Annotations")
	for _, issue := range issues {
		fmt.Fprintf(w, "::%s file=%s,line=%d,col=%d,title=%s::%s\n",
			githubLevel(issue.Status),
			escapeProperty(issue.Filename(g.opts.Root)),
			issue.Source.Line,
			issue.Source.Column,
			escapeProperty(issue.Message),
			escapeData(issue.Description))
	}
	fmt.Fprintln(w, "::endgroup::")
	fmt.Fprintf(w, "Total Issues: %d\n", len(issues))
	return nil
}

func (g *GitHub) Close() error { return nil }

type githubInstance struct {
	g    *GitHub
	tool tools.Tool
}

func (i *githubInstance) Start() Streams {
	w := i.g.opts.Out
	fmt.Fprintf(w, "::group::%s : %s\n", i.tool.Domain(), i.tool.Name())
	fmt.Fprintf(w, "Running %s\n", i.tool.Name())
	return Streams{Stdout: w, Stderr: i.g.opts.Err}
}

func (i *githubInstance) End() {
	fmt.Fprintln(i.g.opts.Out, "::endgroup::")
}

// githubLevel maps a status to a workflow command.
func githubLevel(s types.Status) string {
	switch s {
	case types.StatusError, types.StatusFailed:
		return "error"
	case types.StatusWarning, types.StatusFixed:
		return "warning"
	default:
		return "notice"
	}
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func escapeProperty(s string) string {
	s = escapeData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	return strings.ReplaceAll(s, ",", "%2C")
}
