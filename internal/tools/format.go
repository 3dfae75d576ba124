package tools

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mewbotorg/bastet/internal/types"
)

// Ruff runs ruff, a fast linter that can also apply its own fixes.
type Ruff struct{ Base }

func (t Ruff) Command() []string {
	if t.is(types.DomainLint) {
		return append([]string{"ruff", "check", "--output-format=json-lines"}, t.pythonPath()...)
	}
	return append([]string{"ruff", "check", "--fix", "--fix-only"}, t.pythonPath()...)
}

func (t Ruff) AcceptableExitCodes() []int { return []int{0, 1} }

func (t Ruff) Process(r io.Reader, emit Emitter) error {
	if t.is(types.DomainFormat) {
		return drain(r)
	}
	return eachLine(r, func(line string) {
		if strings.TrimSpace(line) == "" {
			return
		}
		if !gjson.Valid(line) {
			emit.Fail(parsingError("a JSON object", line, nil))
			return
		}
		info := gjson.Parse(line)
		emit.Annotate(types.NewAnnotation(
			types.StatusFailed,
			types.Source{
				Path:   info.Get("filename").String(),
				Line:   int(info.Get("location.row").Int()),
				Column: int(info.Get("location.column").Int()),
			},
			info.Get("code").String(),
			info.Get("message").String(),
		))
	})
}

// ISort runs isort, which orders imports.
type ISort struct{ Base }

func (t ISort) Command() []string {
	if t.is(types.DomainFormat) {
		return append([]string{"isort"}, t.pythonPath()...)
	}
	return append([]string{"isort", "--diff", "--quiet", "--check"}, t.pythonPath()...)
}

func (t ISort) Process(r io.Reader, emit Emitter) error {
	if t.is(types.DomainFormat) {
		return drain(r)
	}
	return processDiff(t.Name(), r, emit, func(line string) {
		emit.Fail(parsingError("", line, nil))
	})
}

// Black runs black, the python code formatter.
type Black struct{ Base }

func (t Black) Command() []string {
	if t.is(types.DomainFormat) {
		return append([]string{"black"}, t.pythonPath()...)
	}
	return append([]string{"black", "--diff", "--no-color", "--quiet"}, t.pythonPath()...)
}

func (t Black) Process(r io.Reader, emit Emitter) error {
	return processDiff(t.Name(), r, emit, func(line string) {
		a, err := blackError(line)
		if err != nil {
			emit.Fail(err)
			return
		}
		emit.Annotate(a)
	})
}

// blackError parses "error: cannot format FILE: REASON: LINE:COL: CONTEXT".
func blackError(line string) (types.Annotation, error) {
	rest := strings.TrimPrefix(line, "error: ")
	if !strings.HasPrefix(rest, "cannot format ") {
		return types.Annotation{}, parsingError("cannot format", rest, nil)
	}
	parts := strings.SplitN(strings.TrimPrefix(rest, "cannot format "), ":", 5)
	if len(parts) < 4 {
		return types.Annotation{}, parsingError("file: reason: line: column", rest, nil)
	}
	lineNo, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return types.Annotation{}, parsingError("a line number", rest, err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return types.Annotation{}, parsingError("a column number", rest, err)
	}
	a := types.NewAnnotation(types.StatusError,
		types.Source{Path: strings.TrimSpace(parts[0]), Line: lineNo, Column: col},
		"error", parts[1])
	if len(parts) == 5 {
		a.AddNote(strings.TrimSpace(parts[4]))
	}
	return a, nil
}

// processDiff turns unified diff output into one annotation per hunk.
// Lines starting with "error: " are handed to onError.
func processDiff(tool string, r io.Reader, emit Emitter, onError func(string)) error {
	var (
		current  *types.Annotation
		file     string
		skipPlus bool
	)
	flush := func() {
		if current != nil {
			emit.Annotate(*current)
			current = nil
		}
	}

	err := eachLine(r, func(line string) {
		switch {
		case strings.HasPrefix(line, "error: "):
			onError(line)
		case strings.HasPrefix(line, "--- "):
			flush()
			file = diffFilename(strings.TrimPrefix(line, "--- "))
			skipPlus = true
		case skipPlus && strings.HasPrefix(line, "+++ "):
			skipPlus = false
		case strings.HasPrefix(line, "@@ ") && file != "":
			flush()
			skipPlus = false
			a, err := hunkAnnotation(tool, file, line)
			if err != nil {
				emit.Fail(err)
				return
			}
			current = &a
		case current != nil:
			current.AddDiffLine(line)
		}
	})
	flush()
	return err
}

// diffFilename strips the timestamp and isort's ":before" marker from a
// "---" header.
func diffFilename(header string) string {
	name, _, _ := strings.Cut(header, "\t")
	name = strings.TrimSpace(name)
	return strings.TrimSuffix(name, ":before")
}

// hunkAnnotation parses "@@ -a,b +row,count @@".
func hunkAnnotation(tool, file, header string) (types.Annotation, error) {
	fields := strings.Fields(header)
	if len(fields) < 3 || !strings.HasPrefix(fields[2], "+") {
		return types.Annotation{}, parsingError("@@ -a,b +c,d @@", header, nil)
	}
	rowStr, countStr, hasCount := strings.Cut(strings.TrimPrefix(fields[2], "+"), ",")
	row, err := strconv.Atoi(rowStr)
	if err != nil {
		return types.Annotation{}, parsingError("a hunk start line", header, err)
	}
	count := 1
	if hasCount {
		if count, err = strconv.Atoi(countStr); err != nil {
			return types.Annotation{}, parsingError("a hunk line count", header, err)
		}
	}

	a := types.NewAnnotation(types.StatusFailed, types.Source{Path: file, Line: row}, "edit",
		fmt.Sprintf("%s change (%d lines affected)", tool, count))
	a.AddDiffLine(header)
	return a, nil
}
