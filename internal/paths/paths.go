// Package paths discovers the python sources of a project: which files to
// check, which directories belong on PYTHONPATH, and which are module roots.
package paths

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
)

const gitignoreName = ".gitignore"

// Repo is the result of gathering a project's python paths.
// Every list holds absolute paths and is sorted.
type Repo struct {
	Root         string   `json:"root"`
	PythonPath   []string `json:"python_path"`
	CoveragePath []string `json:"coverage_path"`
	PythonFiles  []string `json:"python_files"`
	ModulePath   []string `json:"module_path"`
}

// PythonPathByDepth returns the PYTHONPATH entries, longest first, so that
// nested roots shadow their parents when joined into an environment variable.
func (r *Repo) PythonPathByDepth() []string {
	out := slices.Clone(r.PythonPath)
	sort.SliceStable(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// Gatherer walks a project tree and classifies its python files.
type Gatherer struct {
	Root    string
	Folders []string
	// InitialPath seeds the potential PYTHONPATH entries. When nil the
	// PYTHONPATH environment variable is used.
	InitialPath []string
	Logger      *log.Logger

	potential  map[string]bool
	initial    map[string]bool
	pythonPath map[string]bool
	modulePath map[string]bool
	files      map[string]bool
	// visited holds the real paths of scanned directories, so symlinked
	// directories are walked once.
	visited map[string]bool
}

// NewGatherer returns a gatherer for root that scans folders (or root when
// folders is empty).
func NewGatherer(logger *log.Logger, root string, folders []string) *Gatherer {
	return &Gatherer{Root: root, Folders: folders, Logger: logger}
}

// Gather scans the tree. exclude holds gitignore-format rules anchored at the
// root; selectors are directory names that may become PYTHONPATH entries;
// PYTHONPATH entries named in coverageIgnore are left out of CoveragePath.
func (g *Gatherer) Gather(exclude, selectors, coverageIgnore []string) (*Repo, error) {
	if g.Logger == nil {
		g.Logger = log.New(io.Discard)
	}
	root, err := filepath.Abs(g.Root)
	if err != nil {
		return nil, err
	}
	g.Root = root

	g.potential = g.initialPath()
	g.initial = make(map[string]bool, len(g.potential))
	for p := range g.potential {
		g.initial[p] = true
	}
	g.pythonPath = map[string]bool{}
	g.modulePath = map[string]bool{}
	g.files = map[string]bool{}
	g.visited = map[string]bool{}

	ignores := newIgnoreRules(root, exclude)
	infoExclude := filepath.Join(root, ".git", "info", "exclude")
	if isFile(infoExclude) {
		g.Logger.Debug("adding ignore rules", "file", infoExclude)
		if ignores, err = ignores.withFile(infoExclude, root); err != nil {
			g.Logger.Warn("reading ignore file", "file", infoExclude, "err", err)
		}
	}

	selector := make(map[string]bool, len(selectors))
	for _, s := range selectors {
		selector[s] = true
	}

	folders := g.Folders
	if len(folders) == 0 {
		folders = []string{root}
	}
	for _, folder := range folders {
		if !filepath.IsAbs(folder) {
			folder = filepath.Join(root, folder)
		}
		info, err := os.Stat(folder)
		if err != nil {
			g.Logger.Warn("folder does not exist, can not scan", "path", folder)
			continue
		}
		if !info.IsDir() {
			if strings.HasSuffix(folder, ".py") {
				g.processPythonFile(folder)
			}
			continue
		}
		g.scanDir(folder, ignores, selector)
	}

	ignoredCoverage := make(map[string]bool, len(coverageIgnore))
	for _, name := range coverageIgnore {
		ignoredCoverage[name] = true
	}
	repo := &Repo{
		Root:        root,
		PythonPath:  sortedKeys(g.pythonPath),
		PythonFiles: sortedKeys(g.files),
		ModulePath:  sortedKeys(g.modulePath),
	}
	for _, p := range repo.PythonPath {
		if !ignoredCoverage[filepath.Base(p)] {
			repo.CoveragePath = append(repo.CoveragePath, p)
		}
	}
	return repo, nil
}

func (g *Gatherer) initialPath() map[string]bool {
	entries := g.InitialPath
	if entries == nil {
		entries = filepath.SplitList(os.Getenv("PYTHONPATH"))
	}
	out := map[string]bool{}
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		abs, err := filepath.Abs(entry)
		if err != nil {
			continue
		}
		if isStrictAncestor(g.Root, abs) {
			g.Logger.Debug("potential PYTHONPATH entry", "path", abs)
			out[abs] = true
		}
	}
	return out
}

func (g *Gatherer) scanDir(dir string, ignores ignoreRules, selector map[string]bool) {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		g.Logger.Warn("resolving directory", "path", dir, "err", err)
		return
	}
	if g.visited[resolved] {
		g.Logger.Debug("directory already scanned", "path", dir, "resolved", resolved)
		return
	}
	g.visited[resolved] = true

	if ignoreFile := filepath.Join(dir, gitignoreName); isFile(ignoreFile) {
		g.Logger.Debug("adding ignore rules", "file", ignoreFile)
		extended, err := ignores.withFile(ignoreFile, dir)
		if err != nil {
			g.Logger.Warn("reading ignore file", "file", ignoreFile, "err", err)
		}
		ignores = extended
	}

	if selector[filepath.Base(dir)] && !g.potential[dir] {
		g.Logger.Debug("potential PYTHONPATH entry", "path", dir)
		g.potential[dir] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		g.Logger.Warn("reading directory", "path", dir, "err", err)
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			isDir = info.IsDir()
		}
		if ignores.match(path, isDir) {
			continue
		}
		if isDir {
			g.scanDir(path, ignores, selector)
			continue
		}
		if strings.HasSuffix(entry.Name(), ".py") {
			g.processPythonFile(path)
		}
	}
}

func (g *Gatherer) processPythonFile(file string) {
	g.files[file] = true

	parent := filepath.Dir(file)
	if addCovering(g.modulePath, parent) {
		g.Logger.Debug("marking module path", "path", parent)
	}

	if closestAncestor(g.pythonPath, file) != "" {
		return
	}

	// A package directory can not itself be a PYTHONPATH entry.
	from := file
	if isFile(filepath.Join(parent, "__init__.py")) {
		from = parent
	}
	pyRoot := closestAncestor(g.potential, from)
	if pyRoot == "" {
		g.Logger.Debug("unable to locate a potential PYTHONPATH entry", "file", file)
		return
	}
	if !g.initial[pyRoot] {
		g.Logger.Warn("detected a PYTHONPATH entry that is not on PYTHONPATH", "path", pyRoot)
	}
	g.Logger.Debug("marking PYTHONPATH entry", "path", pyRoot, "file", file)
	delete(g.potential, pyRoot)
	g.pythonPath[pyRoot] = true
}

// addCovering adds path to set unless an existing entry already covers it.
// Entries below path are dropped so the set stays minimal.
func addCovering(set map[string]bool, path string) bool {
	for existing := range set {
		if existing == path || isStrictAncestor(existing, path) {
			return false
		}
	}
	for existing := range set {
		if isStrictAncestor(path, existing) {
			delete(set, existing)
		}
	}
	set[path] = true
	return true
}

// closestAncestor returns the deepest entry of set that is a strict ancestor
// of path, or "".
func closestAncestor(set map[string]bool, path string) string {
	closest := ""
	for candidate := range set {
		if !isStrictAncestor(candidate, path) {
			continue
		}
		if len(candidate) > len(closest) {
			closest = candidate
		}
	}
	return closest
}

func isStrictAncestor(ancestor, path string) bool {
	rel, err := filepath.Rel(ancestor, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FindRoot walks up from start and returns the first directory holding a
// pyproject.toml file or a .git or .hg directory.
func FindRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	for {
		if isFile(filepath.Join(dir, "pyproject.toml")) ||
			isDir(filepath.Join(dir, ".git")) ||
			isDir(filepath.Join(dir, ".hg")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoRoot
		}
		dir = parent
	}
}

// ErrNoRoot is returned by FindRoot when no project marker was found.
var ErrNoRoot = errors.New("no project root found")
