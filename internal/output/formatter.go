// Package output reports tool runs as they happen and summarises the results
// at the end: console and annotation text, GitHub workflow commands, JSON,
// SARIF, Markdown and HTML.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mewbotorg/bastet/internal/meta"
	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

// Streams are where one tool run is reported. Any field may be nil.
type Streams struct {
	// Stdout and Stderr receive the raw output of the tool.
	Stdout io.Writer
	Stderr io.Writer
	// OnAnnotation and OnError receive what the tool's parser found.
	OnAnnotation func(types.Annotation)
	OnError      func(error)
}

// Instance reports a single tool run.
type Instance interface {
	Start() Streams
	End()
}

// Reporter creates an Instance per tool run and summarises the whole run.
type Reporter interface {
	Create(tool tools.Tool) Instance
	Summarise(results *types.Results) error
	Close() error
}

// Filter decides whether an annotation is reported.
type Filter func(types.Annotation) bool

// Options configure the reporters.
type Options struct {
	Root       string
	Out        io.Writer
	Err        io.Writer
	ReportsDir string
	NoColor    bool
	// Interactive enables the progress spinner.
	Interactive bool
	// Width overrides the detected terminal width when positive.
	Width   int
	Version string
}

func (o Options) withDefaults() Options {
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
	if o.Version == "" {
		o.Version = ToolVersion
	}
	return o
}

var constructors = map[string]func(Options) Reporter{
	"console":  func(o Options) Reporter { return NewConsole(o) },
	"note":     func(o Options) Reporter { return NewNote(o) },
	"github":   func(o Options) Reporter { return NewGitHub(o) },
	"json":     func(o Options) Reporter { return NewJSON(o) },
	"sarif":    func(o Options) Reporter { return NewSARIF(o) },
	"markdown": func(o Options) Reporter { return NewMarkdown(o) },
	"html":     func(o Options) Reporter { return NewHTML(o) },
}

// Names lists the known reporter names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the reporter called name.
func New(name string, opts Options) (Reporter, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown reporter %q", name)
	}
	return ctor(opts.withDefaults()), nil
}

// Handler fans each tool run out to several reporters and keeps the
// annotations and errors that pass its filters.
type Handler struct {
	reporters []Reporter
	filters   []Filter
}

// NewHandler returns a handler over reporters. An annotation is reported
// only if every filter accepts it.
func NewHandler(reporters []Reporter, filters ...Filter) *Handler {
	return &Handler{reporters: reporters, filters: filters}
}

// Report opens the report of one tool run.
func (h *Handler) Report(tool tools.Tool) *Report {
	r := &Report{filters: h.filters}
	for _, rep := range h.reporters {
		r.instances = append(r.instances, rep.Create(tool))
	}
	return r
}

// Summarise hands the final results to every reporter.
func (h *Handler) Summarise(results *types.Results) error {
	var firstErr error
	for _, rep := range h.reporters {
		if err := rep.Summarise(results); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every reporter.
func (h *Handler) Close() error {
	var firstErr error
	for _, rep := range h.reporters {
		if err := rep.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Report is one tool run as seen by every reporter of a Handler.
type Report struct {
	filters   []Filter
	instances []Instance

	mu          sync.Mutex
	annotations []types.Annotation
	errors      []error
}

// Start starts every instance and merges their streams.
func (r *Report) Start() Streams {
	var (
		stdout, stderr []io.Writer
		onAnnotation   []func(types.Annotation)
		onError        []func(error)
	)
	for _, inst := range r.instances {
		s := inst.Start()
		if s.Stdout != nil {
			stdout = append(stdout, s.Stdout)
		}
		if s.Stderr != nil {
			stderr = append(stderr, s.Stderr)
		}
		if s.OnAnnotation != nil {
			onAnnotation = append(onAnnotation, s.OnAnnotation)
		}
		if s.OnError != nil {
			onError = append(onError, s.OnError)
		}
	}

	return Streams{
		Stdout: merge(stdout),
		Stderr: merge(stderr),
		OnAnnotation: func(a types.Annotation) {
			for _, accept := range r.filters {
				if !accept(a) {
					return
				}
			}
			r.mu.Lock()
			r.annotations = append(r.annotations, a)
			r.mu.Unlock()
			for _, fn := range onAnnotation {
				fn(a)
			}
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errors = append(r.errors, err)
			r.mu.Unlock()
			for _, fn := range onError {
				fn(err)
			}
		},
	}
}

// End ends every instance.
func (r *Report) End() {
	for _, inst := range r.instances {
		inst.End()
	}
}

// Annotations returns the annotations that passed the filters, without
// duplicates.
func (r *Report) Annotations() []types.Annotation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return meta.Deduplicate(r.annotations)
}

// Errors returns every error reported.
func (r *Report) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

func merge(writers []io.Writer) io.Writer {
	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	default:
		return io.MultiWriter(writers...)
	}
}

func createReport(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return os.Create(filepath.Join(dir, name))
}
