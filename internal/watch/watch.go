// Package watch re-runs the checks when python sources or bastet
// configuration change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before a run.
const DefaultDebounce = 500 * time.Millisecond

// DefaultPatterns select the files whose changes trigger a run.
var DefaultPatterns = []string{
	"**/*.py",
	"pyproject.toml",
	".bastet.yml",
	".bastet.yaml",
	"copyright.json",
}

// ignoredDirs are never watched, at any depth.
var ignoredDirs = map[string]bool{
	".git":          true,
	"__pycache__":   true,
	".mypy_cache":   true,
	".ruff_cache":   true,
	".pytest_cache": true,
}

// Options configures a Watcher.
type Options struct {
	// Root is the directory watched recursively.
	Root string
	// Patterns are doublestar globs relative to Root. Empty means
	// DefaultPatterns.
	Patterns []string
	// Ignore lists further directories (absolute, or relative to Root)
	// that are skipped, typically the reports directory.
	Ignore   []string
	Debounce time.Duration
	Logger   *log.Logger
	// OnChange receives the sorted, root-relative paths that changed.
	OnChange func(ctx context.Context, changed []string) error
}

// Watcher monitors a project tree. Run may only be called once.
type Watcher struct {
	opts    Options
	root    string
	ignore  []string
	fsw     *fsnotify.Watcher
	logger  *log.Logger
	started atomic.Bool
}

// New validates opts and registers every directory below the root.
func New(opts Options) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = DefaultPatterns
	}
	for _, p := range opts.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid watch pattern %q", p)
		}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	var ignore []string
	for _, dir := range opts.Ignore {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		ignore = append(ignore, filepath.Clean(dir))
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{opts: opts, root: root, ignore: ignore, fsw: fsw, logger: logger}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run dispatches debounced changes until ctx is cancelled. It returns nil
// on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watcher already running")
	}
	defer w.fsw.Close()

	d := newDebouncer(w.opts.Debounce, w.logger, func(changed []string) {
		if ctx.Err() != nil || w.opts.OnChange == nil {
			return
		}
		if err := w.opts.OnChange(ctx, changed); err != nil {
			w.logger.Error("run failed", "err", err)
		}
	})
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					if err := w.addTree(evt.Name); err != nil {
						w.logger.Warn("watching new directory", "path", evt.Name, "err", err)
					}
					continue
				}
			}
			if rel, ok := w.relevant(evt.Name); ok {
				w.logger.Debug("change", "path", rel, "op", evt.Op.String())
				d.add(rel)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("events were dropped", "err", err)
				continue
			}
			return fmt.Errorf("watching %s: %w", w.root, err)
		}
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping unreadable path", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) skipDir(path string) bool {
	if path != w.root && ignoredDirs[filepath.Base(path)] {
		return true
	}
	for _, dir := range w.ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// relevant returns the root-relative slash path of name when a change to
// it should trigger a run.
func (w *Watcher) relevant(name string) (string, bool) {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if w.skipDir(filepath.Dir(name)) {
		return "", false
	}
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if ignoredDirs[part] {
			return "", false
		}
	}
	rel = filepath.ToSlash(rel)
	for _, p := range w.opts.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return rel, true
		}
	}
	return "", false
}

// debouncer collects paths and calls run once the debounce window closes.
// A window that closes while a run is still in progress is rescheduled
// so that no change is lost.
type debouncer struct {
	delay   time.Duration
	logger  *log.Logger
	run     func([]string)
	running atomic.Bool

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool
}

func newDebouncer(delay time.Duration, logger *log.Logger, run func([]string)) *debouncer {
	return &debouncer{delay: delay, logger: logger, run: run, pending: map[string]struct{}{}}
}

func (d *debouncer) add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending[path] = struct{}{}
	d.schedule()
}

// schedule must be called with mu held.
func (d *debouncer) schedule() {
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fire)
		return
	}
	d.timer.Reset(d.delay)
}

func (d *debouncer) fire() {
	if !d.running.CompareAndSwap(false, true) {
		d.logger.Info("previous run still in progress, rescheduling")
		d.mu.Lock()
		if !d.stopped {
			d.schedule()
		}
		d.mu.Unlock()
		return
	}
	defer d.running.Store(false)

	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	changed := make([]string, 0, len(d.pending))
	for p := range d.pending {
		changed = append(changed, p)
	}
	clear(d.pending)
	d.mu.Unlock()

	slices.Sort(changed)
	d.run(changed)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
