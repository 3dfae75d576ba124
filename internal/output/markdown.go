package output

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

// MarkdownReportName is written in the reports directory when not running
// under GitHub Actions.
const MarkdownReportName = "summary.md"

// Markdown writes a GitHub-flavoured summary, designed for GitHub Actions
// job summaries and PR comments.
type Markdown struct {
	opts Options
}

// NewMarkdown creates the "markdown" reporter.
func NewMarkdown(opts Options) *Markdown {
	return &Markdown{opts: opts.withDefaults()}
}

func (m *Markdown) Create(tools.Tool) Instance { return nopInstance{} }

// Summarise appends to $GITHUB_STEP_SUMMARY when it is set, otherwise it
// writes reports/summary.md.
func (m *Markdown) Summarise(results *types.Results) error {
	if path := os.Getenv("GITHUB_STEP_SUMMARY"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		return WriteMarkdown(f, results, m.opts.Version)
	}
	f, err := createReport(m.opts.ReportsDir, MarkdownReportName)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteMarkdown(f, results, m.opts.Version)
}

func (m *Markdown) Close() error { return nil }

// WriteMarkdown renders results as GitHub-flavoured markdown.
func WriteMarkdown(w io.Writer, results *types.Results, version string) error {
	issues := 0
	for _, a := range results.Annotations {
		if a.Status >= types.StatusWarning {
			issues++
		}
	}
	if results.Success {
		fmt.Fprintf(w, "### :white_check_mark: bastet: all checks passed\n\n")
	} else {
		fmt.Fprintf(w, "### :x: bastet: %d issues\n\n", issues)
	}
	fmt.Fprintf(w, "> %d tool runs · %.2fs\n\n", len(results.Tools), results.Duration.Seconds())

	fmt.Fprintf(w, "| Status | Domain | Tool | Notes |\n")
	fmt.Fprintf(w, "|--------|--------|------|-------|\n")
	for _, r := range results.Tools {
		fmt.Fprintf(w, "| %s `%s` | %s | %s | %d |\n",
			statusEmoji(r.Status), r.Status.Short(), r.Domain, r.Tool, r.AnnotationAbove(types.StatusFixed))
	}
	fmt.Fprintln(w)

	statuses := types.AllStatuses()
	slices.Reverse(statuses)
	for _, status := range statuses {
		if status == types.StatusPassed {
			continue
		}
		var matching []types.Annotation
		for _, a := range results.Annotations {
			if a.Status == status {
				matching = append(matching, a)
			}
		}
		if len(matching) == 0 {
			continue
		}
		slices.SortStableFunc(matching, func(a, b types.Annotation) int {
			if a.Less(b) {
				return -1
			}
			if b.Less(a) {
				return 1
			}
			return 0
		})

		open := ""
		if status >= types.StatusFailed {
			open = " open"
		}
		fmt.Fprintf(w, "<details%s>\n", open)
		fmt.Fprintf(w, "<summary>%s <strong>%s (%d)</strong></summary>\n\n", statusEmoji(status), status, len(matching))
		fmt.Fprintf(w, "| Tool | Code | Message | Location |\n")
		fmt.Fprintf(w, "|------|------|---------|----------|\n")
		for _, a := range matching {
			fmt.Fprintf(w, "| %s | `%s` | %s | `%s` |\n",
				a.Tool, a.Code, escapeMarkdown(truncateMarkdown(a.Message, 120)), a.FileStr(results.Root))
		}
		fmt.Fprintf(w, "\n</details>\n\n")
	}

	if len(results.Errors) > 0 {
		fmt.Fprintf(w, "**Errors:**\n\n")
		for _, err := range results.Errors {
			fmt.Fprintf(w, "```\n%s\n```\n\n", strings.TrimSpace(err.Error()))
		}
	}

	fmt.Fprintf(w, "---\n")
	fmt.Fprintf(w, "*Checked by [bastet](https://github.com/mewbotorg/bastet) %s*\n", version)
	return nil
}

func statusEmoji(s types.Status) string {
	switch s {
	case types.StatusError:
		return ":boom:"
	case types.StatusFailed:
		return ":red_circle:"
	case types.StatusWarning:
		return ":yellow_circle:"
	case types.StatusFixed:
		return ":wrench:"
	default:
		return ":green_circle:"
	}
}

func truncateMarkdown(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\t", " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
