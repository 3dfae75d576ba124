package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// Source locates an annotation. An empty Path refers to the project root.
type Source struct {
	Path   string `json:"path"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// Normalise resolves the path against root. Line and column are kept as-is,
// including zero and negative values.
func (s Source) Normalise(root string) Source {
	switch {
	case s.Path == "":
		s.Path = root
	case !filepath.IsAbs(s.Path):
		s.Path = filepath.Join(root, s.Path)
	default:
		s.Path = filepath.Clean(s.Path)
	}
	return s
}

// Less orders sources by path, then line, then column.
func (s Source) Less(o Source) bool {
	if s.Path != o.Path {
		return s.Path < o.Path
	}
	if s.Line != o.Line {
		return s.Line < o.Line
	}
	return s.Column < o.Column
}

// Annotation is one normalised finding reported by a tool.
type Annotation struct {
	Status      Status   `json:"status"`
	Source      Source   `json:"source"`
	Tool        string   `json:"tool,omitempty"`
	Domain      Domain   `json:"domain,omitempty"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Description string   `json:"description,omitempty"`
	Diff        []string `json:"diff,omitempty"`
}

// NewAnnotation builds an annotation with trimmed code and message.
func NewAnnotation(status Status, source Source, code, message string) Annotation {
	return Annotation{
		Status:  status,
		Source:  source,
		Code:    strings.TrimSpace(code),
		Message: strings.TrimSpace(message),
	}
}

// WithDescription returns a copy of a with the trimmed description set.
func (a Annotation) WithDescription(description string) Annotation {
	a.Description = strings.TrimSpace(description)
	return a
}

// AddNote appends a line to the description.
func (a *Annotation) AddNote(note string) {
	note = strings.TrimRight(note, " \t\r\n")
	if a.Description == "" {
		a.Description = note
		return
	}
	a.Description += "\n" + note
}

// AddDiffLine appends a line of diff context.
func (a *Annotation) AddDiffLine(line string) {
	a.Diff = append(a.Diff, strings.TrimRight(line, "\r\n"))
}

// Filename returns the path relative to root, "." for the root itself.
// Paths outside root are returned unchanged.
func (a Annotation) Filename(root string) string {
	path := a.Source.Path
	if path == "" || path == root {
		return "."
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// FileStr is the human-readable location: "[project]" for the root,
// otherwise the filename with ":line" when a line is known.
func (a Annotation) FileStr(root string) string {
	name := a.Filename(root)
	if name == "." {
		return "[project]"
	}
	if a.Source.Line != 0 {
		return fmt.Sprintf("%s:%d", name, a.Source.Line)
	}
	return name
}

// Less orders annotations by source, then code.
func (a Annotation) Less(o Annotation) bool {
	if a.Source != o.Source {
		return a.Source.Less(o.Source)
	}
	return a.Code < o.Code
}

// Key identifies an annotation for de-duplication.
type Key struct {
	Status Status
	Tool   string
	Source Source
	Code   string
}

// Key returns the identity of a.
func (a Annotation) Key() Key {
	return Key{Status: a.Status, Tool: a.Tool, Source: a.Source, Code: a.Code}
}

// Fingerprint is a stable hash of tool, code, root-relative file and message.
// Line numbers are left out so that unrelated edits do not invalidate it.
func (a Annotation) Fingerprint(root string) string {
	h := sha256.New()
	for _, part := range []string{a.Tool, a.Code, filepath.ToSlash(a.Filename(root)), a.Message} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
