package paths_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"

	"github.com/mewbotorg/bastet/internal/paths"
)

func writeFile(t *testing.T, root string, rel string, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func gather(t *testing.T, root string, folders []string, exclude []string) *paths.Repo {
	t.Helper()
	g := paths.NewGatherer(nil, root, folders)
	g.InitialPath = []string{}
	repo, err := g.Gather(exclude, []string{"src", "tests"}, []string{"tests"})
	require.NoError(t, err)
	return repo
}

func TestGatherSrcLayout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pyproject.toml", "")
	writeFile(t, root, "src/pkg/__init__.py", "")
	writeFile(t, root, "src/pkg/mod.py", "")
	writeFile(t, root, "src/pkg/sub/deep.py", "")
	writeFile(t, root, "tests/test_mod.py", "")
	writeFile(t, root, "README.md", "")

	repo := gather(t, root, nil, nil)

	require.Equal(t, root, repo.Root)
	require.Equal(t, []string{
		filepath.Join(root, "src"),
		filepath.Join(root, "tests"),
	}, repo.PythonPath)
	require.Equal(t, []string{filepath.Join(root, "src")}, repo.CoveragePath)
	require.Equal(t, []string{
		filepath.Join(root, "src", "pkg", "__init__.py"),
		filepath.Join(root, "src", "pkg", "mod.py"),
		filepath.Join(root, "src", "pkg", "sub", "deep.py"),
		filepath.Join(root, "tests", "test_mod.py"),
	}, repo.PythonFiles)
	require.Equal(t, []string{
		filepath.Join(root, "src", "pkg"),
		filepath.Join(root, "tests"),
	}, repo.ModulePath)
}

func TestGatherHonoursIgnoreRules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "build/\n# comment\n\n")
	writeFile(t, root, ".git/info/exclude", "scratch.py\n")
	writeFile(t, root, ".git/hooks/hook.py", "")
	writeFile(t, root, ".hg/store.py", "")
	writeFile(t, root, "build/gen.py", "")
	writeFile(t, root, "src/a/.gitignore", "local.py\n")
	writeFile(t, root, "src/a/local.py", "")
	writeFile(t, root, "src/a/keep.py", "")
	writeFile(t, root, "src/b/local.py", "")
	writeFile(t, root, "src/scratch.py", "")
	writeFile(t, root, "docs/conf.py", "")

	repo := gather(t, root, nil, []string{"docs"})

	require.Equal(t, []string{
		filepath.Join(root, "src", "a", "keep.py"),
		filepath.Join(root, "src", "b", "local.py"),
	}, repo.PythonFiles)
	require.Equal(t, []string{filepath.Join(root, "src")}, repo.PythonPath)
}

func TestGatherFolders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/one.py", "")
	writeFile(t, root, "tests/test_one.py", "")

	repo := gather(t, root, []string{"tests", "missing"}, nil)
	require.Equal(t, []string{filepath.Join(root, "tests", "test_one.py")}, repo.PythonFiles)
	require.Equal(t, []string{filepath.Join(root, "tests")}, repo.PythonPath)
	require.Empty(t, repo.CoveragePath)
}

func TestGatherPackageAtSelectorIsNotPythonPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/__init__.py", "")
	writeFile(t, root, "src/mod.py", "")

	repo := gather(t, root, nil, nil)
	require.Empty(t, repo.PythonPath)
	require.Len(t, repo.PythonFiles, 2)
	require.Equal(t, []string{filepath.Join(root, "src")}, repo.ModulePath)
}

func TestGatherInitialPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "lib/tool.py", "")
	writeFile(t, root, "other/skipped.py", "")

	g := paths.NewGatherer(nil, root, nil)
	g.InitialPath = []string{filepath.Join(root, "lib"), root, "/definitely/not/here"}
	repo, err := g.Gather(nil, nil, nil)
	require.NoError(t, err)

	require.Equal(t, []string{filepath.Join(root, "lib")}, repo.PythonPath)
	require.Len(t, repo.PythonFiles, 2)
}

func TestGatherClosestRootWins(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/plugins/src/plugin.py", "")

	repo := gather(t, root, nil, nil)
	require.Equal(t, []string{filepath.Join(root, "src", "plugins", "src")}, repo.PythonPath)
}

func TestPythonPathByDepth(t *testing.T) {
	repo := &paths.Repo{PythonPath: []string{"/p/a", "/p/a/b/c", "/p/zz"}}
	require.Equal(t, []string{"/p/a/b/c", "/p/zz", "/p/a"}, repo.PythonPathByDepth())
	require.Equal(t, []string{"/p/a", "/p/a/b/c", "/p/zz"}, repo.PythonPath)
}

func TestFindRoot(t *testing.T) {
	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	writeFile(t, dir, "proj/pyproject.toml", "")
	nested := filepath.Join(dir, "proj", "src", "pkg")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := paths.FindRoot(nested)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(resolved, "proj"), root)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "hgproj", ".hg"), 0755))
	root, err = paths.FindRoot(filepath.Join(dir, "hgproj"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(resolved, "hgproj"), root)
}

func TestGatherSymlinkLoop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/pkg/mod.py", "")
	require.NoError(t, os.Symlink("..", filepath.Join(root, "src", "pkg", "up")))

	repo := gather(t, root, nil, nil)
	require.Equal(t, []string{filepath.Join(root, "src", "pkg", "mod.py")}, repo.PythonFiles)
	require.Equal(t, []string{filepath.Join(root, "src", "pkg")}, repo.ModulePath)
}

func TestGatherFollowsSymlinkedDirectory(t *testing.T) {
	root := t.TempDir()
	shared := t.TempDir()
	writeFile(t, shared, "util.py", "")
	writeFile(t, root, "src/app.py", "")
	require.NoError(t, os.Symlink(shared, filepath.Join(root, "src", "shared")))

	repo := gather(t, root, nil, nil)
	require.Equal(t, []string{
		filepath.Join(root, "src", "app.py"),
		filepath.Join(root, "src", "shared", "util.py"),
	}, repo.PythonFiles)
}

func TestChangedFilesOutsideRepo(t *testing.T) {
	files, err := paths.ChangedFiles(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestChangedFilesUntracked(t *testing.T) {
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	writeFile(t, dir, "src/new.py", "print()\n")

	files, err := paths.ChangedFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "new.py", filepath.Base(files[0]))
}
