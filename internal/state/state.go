// Package state provides the baseline: a persistent JSON store of annotation
// fingerprints that are already known and should not be reported again.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mewbotorg/bastet/internal/types"
)

// FileName is the baseline file created in the reports directory.
const FileName = "baseline.json"

// Entry describes one known annotation.
type Entry struct {
	Tool       string `json:"tool"`
	Code       string `json:"code"`
	File       string `json:"file"`
	Message    string `json:"message"`
	RecordedAt string `json:"recorded_at"`
}

// Store persists fingerprints to a JSON file on disk.
type Store struct {
	mu      sync.RWMutex
	Root    string           `json:"root"`
	Entries map[string]Entry `json:"entries"`
	path    string
}

// New creates an empty Store for the project at root backed by path.
func New(root, path string) *Store {
	return &Store{
		Root:    root,
		Entries: make(map[string]Entry),
		path:    path,
	}
}

// DefaultPath returns the baseline path inside reportsDir.
func DefaultPath(reportsDir string) string {
	return filepath.Join(reportsDir, FileName)
}

// Load reads the baseline from disk. A missing file leaves the store empty.
// Symlinks are rejected.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Lstat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("baseline file is a symlink (rejected for security): %s", s.path)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	root := s.Root
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	if s.Entries == nil {
		s.Entries = make(map[string]Entry)
	}
	// Fingerprints are root-relative, so the current root applies.
	s.Root = root
	return nil
}

// Save writes the baseline to disk, creating parent directories if needed.
// Symlinks are rejected.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if info, err := os.Lstat(s.path); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("baseline file is a symlink (rejected for security): %s", s.path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// Add records a.
func (s *Store) Add(a types.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Entries[a.Fingerprint(s.Root)] = Entry{
		Tool:       a.Tool,
		Code:       a.Code,
		File:       filepath.ToSlash(a.Filename(s.Root)),
		Message:    a.Message,
		RecordedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// Record adds every annotation of results worse than Passed and returns how
// many were added.
func (s *Store) Record(results *types.Results) int {
	n := 0
	for _, a := range results.Annotations {
		if a.Status > types.StatusPassed {
			s.Add(a)
			n++
		}
	}
	return n
}

// Contains reports whether a is in the baseline.
func (s *Store) Contains(a types.Annotation) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.Entries[a.Fingerprint(s.Root)]
	return ok
}

// Filter accepts annotations that are not in the baseline.
func (s *Store) Filter() func(types.Annotation) bool {
	return func(a types.Annotation) bool { return !s.Contains(a) }
}

// Len returns the number of recorded fingerprints.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Entries)
}

// Fingerprints returns the recorded fingerprints, sorted.
func (s *Store) Fingerprints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.Entries))
	for fp := range s.Entries {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

// Path returns the file path of this store.
func (s *Store) Path() string {
	return s.path
}
