package paths

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Names that are never scanned, whatever the ignore files say.
var alwaysIgnored = []string{".git", ".hg"}

// ignoreRules is an immutable set of gitignore patterns anchored below root.
type ignoreRules struct {
	root     string
	patterns []gitignore.Pattern
}

func newIgnoreRules(root string, exclude []string) ignoreRules {
	r := ignoreRules{root: root}
	for _, name := range alwaysIgnored {
		r.patterns = append(r.patterns, gitignore.ParsePattern(name, nil))
	}
	for _, rule := range exclude {
		if p, ok := parseLine(rule, nil); ok {
			r.patterns = append(r.patterns, p)
		}
	}
	return r
}

// withFile returns a copy of r extended with the patterns of an ignore file.
// The patterns only apply below domain, the directory they are anchored at.
func (r ignoreRules) withFile(path, domain string) (ignoreRules, error) {
	f, err := os.Open(path)
	if err != nil {
		return r, err
	}
	defer f.Close()

	extended := ignoreRules{root: r.root, patterns: append([]gitignore.Pattern(nil), r.patterns...)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p, ok := parseLine(scanner.Text(), r.components(domain)); ok {
			extended.patterns = append(extended.patterns, p)
		}
	}
	return extended, scanner.Err()
}

// match reports whether path is excluded.
func (r ignoreRules) match(path string, isDir bool) bool {
	parts := r.components(path)
	if len(parts) == 0 {
		return false
	}
	return gitignore.NewMatcher(r.patterns).Match(parts, isDir)
}

func (r ignoreRules) components(path string) []string {
	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == "." {
		return nil
	}
	return strings.Split(filepath.ToSlash(rel), "/")
}

func parseLine(line string, domain []string) (gitignore.Pattern, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
		return nil, false
	}
	return gitignore.ParsePattern(line, domain), true
}
