package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
)

// ChangedFiles returns the absolute paths of files that are modified, staged
// or untracked in the git work tree enclosing root. Deleted files are left
// out. If root is not inside a git repository the function returns an empty
// slice and no error.
func ChangedFiles(root string) ([]string, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening git repository at %s: %w", root, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have nothing to compare against.
		return nil, nil
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading git status: %w", err)
	}

	top := wt.Filesystem.Root()
	var files []string
	for path, s := range status {
		if s.Worktree == git.Deleted || s.Staging == git.Deleted {
			continue
		}
		if s.Worktree == git.Unmodified && s.Staging == git.Unmodified {
			continue
		}
		files = append(files, filepath.Join(top, filepath.FromSlash(path)))
	}
	sort.Strings(files)
	return files, nil
}
