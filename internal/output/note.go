package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

// Note prints the annotations each tool produced rather than its raw
// output. Tools with nothing to report print nothing until the summary.
type Note struct {
	opts    Options
	palette palette
	active  *activity
}

// NewNote creates the "note" reporter.
func NewNote(opts Options) *Note {
	opts = opts.withDefaults()
	n := &Note{opts: opts, palette: newPalette(opts.NoColor)}
	if opts.Interactive {
		n.active = newActivity(opts.Err)
	}
	return n
}

func (n *Note) Create(tool tools.Tool) Instance {
	return &noteInstance{n: n, title: fmt.Sprintf("%s :: %s", tool.Domain(), tool.Name())}
}

func (n *Note) Summarise(results *types.Results) error {
	w := n.opts.Out
	fmt.Fprint(w, n.palette.header("Summary", terminalWidth(w, n.opts.Width)))
	for _, r := range results.Tools {
		fmt.Fprintf(w, "[%s] %s :: %s (%d notes)\n",
			n.palette.status(r.Status.Short(), r.Status), r.Domain, r.Tool, r.AnnotationAbove(types.StatusFixed))
	}
	fmt.Fprintln(w)
	writeVerdict(w, n.palette, results.Success)
	return nil
}

func (n *Note) Close() error {
	if n.active != nil {
		n.active.close()
	}
	return nil
}

type noteInstance struct {
	n     *Note
	title string

	mu     sync.Mutex
	header bool
}

func (i *noteInstance) Start() Streams {
	if i.n.active != nil {
		i.n.active.begin(i.title)
	}
	return Streams{OnAnnotation: i.annotate, OnError: i.fail}
}

func (i *noteInstance) End() {
	if i.n.active != nil {
		i.n.active.end()
	}
}

// print writes through fn with the header in front of the first output,
// keeping the activity line out of the way.
func (i *noteInstance) print(fn func(w io.Writer)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	write := func() {
		w := i.n.opts.Out
		if !i.header {
			i.header = true
			fmt.Fprint(w, i.n.palette.header(i.title, terminalWidth(w, i.n.opts.Width)))
		}
		fn(w)
	}
	if i.n.active == nil {
		write()
		return
	}
	i.n.active.suspend(write)
}

func (i *noteInstance) annotate(a types.Annotation) {
	if a.Status == types.StatusPassed {
		return
	}
	i.print(func(w io.Writer) {
		fmt.Fprintf(w, "%s [%s]: %s\n", a.FileStr(i.n.opts.Root), i.n.palette.status(a.Code, a.Status), a.Message)
		if desc := strings.TrimRight(a.Description, " \t\r\n"); desc != "" {
			fmt.Fprintln(w, indentLines(desc, "  "))
		}
	})
}

func (i *noteInstance) fail(err error) {
	i.print(func(w io.Writer) { fmt.Fprintf(w, "%s\n\n", err) })
}

func writeVerdict(w io.Writer, p palette, success bool) {
	if success {
		fmt.Fprintf(w, "Congratulations! %s\n", p.green("Proceed to Upload"))
		return
	}
	fmt.Fprintf(w, "\nBad news! %s\n", p.red("At least one failure!"))
}

// indentLines prefixes every non-blank line of s.
func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
