package output

import (
	"bytes"
	"fmt"
	"html"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

// HTMLReportName is the file the "html" reporter writes in the reports directory.
const HTMLReportName = "summary.html"

// HTML renders the Markdown summary as a standalone page.
type HTML struct {
	opts Options
}

// NewHTML creates the "html" reporter.
func NewHTML(opts Options) *HTML {
	return &HTML{opts: opts.withDefaults()}
}

func (h *HTML) Create(tools.Tool) Instance { return nopInstance{} }

func (h *HTML) Summarise(results *types.Results) error {
	f, err := createReport(h.opts.ReportsDir, HTMLReportName)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteHTML(f, results, h.opts.Version)
}

func (h *HTML) Close() error { return nil }

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	// The summary uses <details> blocks; every message in it is escaped.
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// WriteHTML renders results through WriteMarkdown and goldmark.
func WriteHTML(w io.Writer, results *types.Results, version string) error {
	var src bytes.Buffer
	if err := WriteMarkdown(&src, results, version); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := markdown.Convert(src.Bytes(), &body); err != nil {
		return fmt.Errorf("rendering summary: %w", err)
	}

	title := "bastet report"
	if results.RunID != "" {
		title += " " + results.RunID
	}
	_, err := fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 0.25em 0.5em; text-align: left; }
</style>
</head>
<body>
%s</body>
</html>
`, html.EscapeString(title), body.String())
	return err
}
