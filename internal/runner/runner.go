// Package runner executes tools one after another and feeds their output
// to the reporting handler.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mewbotorg/bastet/internal/output"
	"github.com/mewbotorg/bastet/internal/paths"
	"github.com/mewbotorg/bastet/internal/tools"
	"github.com/mewbotorg/bastet/internal/types"
)

// DefaultTimeout applies when Runner.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Runner runs the selected tools of each domain in sequence.
type Runner struct {
	Repo       *paths.Repo
	Registry   *tools.Registry
	Handler    *output.Handler
	Logger     *log.Logger
	Timeout    time.Duration
	ReportsDir string
	// SkipTools holds lowercased tool names that are not run.
	SkipTools map[string]bool
	// DryRun, when set, receives each command line instead of running it.
	DryRun io.Writer
}

// Run executes every tool of domains and returns the collected results.
// The handler is summarised and closed before Run returns.
func (r *Runner) Run(ctx context.Context, domains []types.Domain) (*types.Results, error) {
	if r.Logger == nil {
		r.Logger = log.New(io.Discard)
	}
	results := types.NewResults(r.Repo.Root)
	results.RunID = uuid.NewString()
	start := time.Now()

	if r.DryRun != nil {
		for _, domain := range domains {
			for _, tool := range r.Registry.Select(domain, r.Repo, r.SkipTools) {
				fmt.Fprintf(r.DryRun, "# %s :: %s\n%s\n", domain, tool.Name(), types.QuoteCommand(tool.Command()))
			}
		}
		return results, nil
	}

	if err := os.MkdirAll(r.ReportsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating reports directory: %w", err)
	}

	var runErr error
	for _, domain := range domains {
		for _, tool := range r.Registry.Select(domain, r.Repo, r.SkipTools) {
			if err := ctx.Err(); err != nil {
				runErr = err
				break
			}
			results.Record(r.runTool(ctx, tool))
		}
	}
	results.Duration = time.Since(start)

	if err := r.Handler.Summarise(results); err != nil {
		r.Logger.Warn("writing summary", "err", err)
	}
	if err := r.Handler.Close(); err != nil {
		r.Logger.Warn("closing reporters", "err", err)
	}
	return results, runErr
}

// ReportFile is the path the raw output of tool is written to.
func (r *Runner) ReportFile(tool tools.Tool) string {
	name := fmt.Sprintf("%s-%s.txt", strings.ToLower(tool.Name()), strings.ToLower(string(tool.Domain())))
	return filepath.Join(r.ReportsDir, name)
}

func (r *Runner) runTool(ctx context.Context, tool tools.Tool) types.Record {
	// The report is opened before the command is built.
	report := r.Handler.Report(tool)
	streams := report.Start()

	command := tool.Command()
	rec := types.Record{
		Tool:                tool.Name(),
		Domain:              tool.Domain(),
		Command:             command,
		AcceptableExitCodes: tool.AcceptableExitCodes(),
	}
	emit := &emitter{root: r.Repo.Root, tool: tool, streams: streams}

	r.Logger.Debug("running tool", "tool", tool.Name(), "domain", tool.Domain(), "command", types.QuoteCommand(command))
	start := time.Now()
	rec.ExitCode, rec.TimedOut = r.execute(ctx, tool, command, streams, emit)
	rec.Duration = time.Since(start)
	report.End()

	rec.Annotations = report.Annotations()
	rec.Errors = report.Errors()
	r.Logger.Debug("tool finished", "tool", tool.Name(), "exit", rec.ExitCode, "annotations", len(rec.Annotations), "duration", rec.Duration)
	return rec
}

// execute runs command and returns its exit code and whether it was killed
// for exceeding the timeout. A process without an exit code counts as 1.
func (r *Runner) execute(ctx context.Context, tool tools.Tool, command []string, streams output.Streams, emit *emitter) (int, bool) {
	if len(command) == 0 {
		emit.Fail(&types.ExecError{Tool: tool.Name(), Err: errors.New("empty command")})
		return 1, false
	}

	var sink io.Writer = io.Discard
	if f, err := os.Create(r.ReportFile(tool)); err != nil {
		r.Logger.Warn("creating report file", "tool", tool.Name(), "err", err)
	} else {
		defer f.Close()
		sink = f
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, command[0], command[1:]...)
	cmd.Dir = r.Repo.Root
	cmd.Env = environ(tool.Environment())
	cmd.WaitDelay = time.Second

	// stdout and stderr share the report file, so writes are serialised.
	var mu sync.Mutex
	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		emit.Fail(&types.ExecError{Tool: tool.Name(), Err: err})
		return 1, false
	}

	parseR, parseW := io.Pipe()
	var g errgroup.Group
	g.Go(func() error {
		tee := &lockedWriter{mu: &mu, w: io.MultiWriter(sink, writerOrDiscard(streams.Stdout))}
		_, err := io.Copy(io.MultiWriter(tee, parseW), stdoutR)
		parseW.CloseWithError(err)
		stdoutR.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&lockedWriter{mu: &mu, w: io.MultiWriter(sink, writerOrDiscard(streams.Stderr))}, stderrR)
		stderrR.CloseWithError(err)
		return err
	})
	g.Go(func() error {
		err := tool.Process(parseR, emit)
		// Keep the pipe flowing if the parser stopped early.
		_, _ = io.Copy(io.Discard, parseR)
		return err
	})

	_ = cmd.Wait()
	stdoutW.Close()
	stderrW.Close()
	if err := g.Wait(); err != nil {
		emit.Fail(fmt.Errorf("reading output of %s: %w", tool.Name(), err))
	}

	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	if timedOut {
		emit.Fail(&types.TimeoutError{Tool: tool.Name(), After: timeout})
	}
	code := 1
	if cmd.ProcessState != nil && cmd.ProcessState.ExitCode() >= 0 {
		code = cmd.ProcessState.ExitCode()
	}
	return code, timedOut
}

// environ overlays env on the current process environment. exec keeps the
// last value of duplicated keys, so the tool's values win.
func environ(env map[string]string) []string {
	out := os.Environ()
	for k, v := range env {
		if k == "" || strings.Contains(k, "=") {
			continue
		}
		out = append(out, k+"="+v)
	}
	return out
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// emitter completes annotations with the tool, domain and an absolute
// source before passing them to the report.
type emitter struct {
	root    string
	tool    tools.Tool
	streams output.Streams
}

func (e *emitter) Annotate(a types.Annotation) {
	a.Tool = e.tool.Name()
	a.Domain = e.tool.Domain()
	a.Source = a.Source.Normalise(e.root)
	if e.streams.OnAnnotation != nil {
		e.streams.OnAnnotation(a)
	}
}

func (e *emitter) Fail(err error) {
	if e.streams.OnError != nil {
		e.streams.OnError(err)
	}
}
