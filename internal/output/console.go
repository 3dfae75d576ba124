package output

import (
	"fmt"

	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

// Console shows the raw output of every tool under a header, followed by a
// pass/fail line per tool.
type Console struct {
	opts    Options
	palette palette
}

// NewConsole creates the "console" reporter.
func NewConsole(opts Options) *Console {
	opts = opts.withDefaults()
	return &Console{opts: opts, palette: newPalette(opts.NoColor)}
}

func (c *Console) Create(tool tools.Tool) Instance {
	return &consoleInstance{c: c, title: fmt.Sprintf("%s :: %s", tool.Domain(), tool.Name())}
}

func (c *Console) Summarise(results *types.Results) error {
	w := c.opts.Out
	fmt.Fprint(w, c.palette.header("Summary", terminalWidth(w, c.opts.Width)))
	for _, r := range results.Tools {
		status := c.palette.green("PASS")
		if r.Status >= types.StatusFailed {
			status = c.palette.red("FAIL")
		}
		fmt.Fprintf(w, "[%s] %s :: %s\n", status, r.Domain, r.Tool)
	}
	writeVerdict(w, c.palette, results.Success)
	return nil
}

func (c *Console) Close() error { return nil }

type consoleInstance struct {
	c     *Console
	title string
}

func (i *consoleInstance) Start() Streams {
	w := i.c.opts.Out
	fmt.Fprint(w, i.c.palette.header(i.title, terminalWidth(w, i.c.opts.Width)))
	return Streams{Stdout: w, Stderr: i.c.opts.Err}
}

func (i *consoleInstance) End() {}
