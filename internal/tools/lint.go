package tools

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mewbotorg/bastet/internal/types"
)

// Flake8 runs flake8, a fast code-style enforcer.
type Flake8 struct{ Base }

func (t Flake8) Command() []string {
	return append([]string{"flake8"}, t.pythonPath()...)
}

func (t Flake8) AcceptableExitCodes() []int { return []int{0, 1} }

func (t Flake8) Process(r io.Reader, emit Emitter) error {
	return processPylintStyle(r, emit)
}

// PyLint runs pylint, which checks the code base as a whole.
type PyLint struct{ Base }

func (t PyLint) Command() []string {
	return append([]string{"pylint"}, t.pythonPath()...)
}

func (t PyLint) Process(r io.Reader, emit Emitter) error {
	return processPylintStyle(r, emit)
}

// processPylintStyle parses "file:line:col: CODE message" lines. Lines that
// do not fit are continuation notes for the previous annotation.
func processPylintStyle(r io.Reader, emit Emitter) error {
	var current *types.Annotation
	flush := func() {
		if current != nil {
			emit.Annotate(*current)
			current = nil
		}
	}

	err := eachLine(r, func(line string) {
		if strings.HasPrefix(line, "[Errno") {
			code, msg, _ := strings.Cut(line, "] ")
			emit.Annotate(types.NewAnnotation(types.StatusError, types.Source{}, strings.Trim(code, "[]"), msg))
			return
		}
		if strings.HasPrefix(line, strings.Repeat("*", 10)) ||
			strings.HasPrefix(line, strings.Repeat("-", 10)) ||
			strings.HasPrefix(line, "Your code has been rated") {
			return
		}
		if strings.TrimSpace(line) == "" {
			return
		}

		parts := strings.SplitN(strings.TrimSpace(line), ":", 4)
		if len(parts) < 4 {
			if current != nil {
				current.AddNote(line)
			}
			return
		}
		lineNo, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			emit.Fail(parsingError("file:line:column: message", line, err))
			return
		}
		col, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			emit.Fail(parsingError("file:line:column: message", line, err))
			return
		}
		code, msg, _ := strings.Cut(strings.TrimSpace(parts[3]), " ")

		flush()
		a := types.NewAnnotation(types.StatusFailed,
			types.Source{Path: parts[0], Line: lineNo, Column: col},
			strings.Trim(code, ":"), msg)
		current = &a
	})
	flush()
	return err
}

// MyPy runs mypy, the static type checker.
type MyPy struct{ Base }

func (t MyPy) Command() []string {
	return append([]string{"mypy", "--strict", "--explicit-package-bases"}, t.repo.ModulePath...)
}

// Environment sets MYPYPATH, since mypy does not use the regular import
// machinery to resolve namespace packages.
func (t MyPy) Environment() map[string]string {
	return map[string]string{
		"MYPYPATH": strings.Join(t.pythonPath(), string(os.PathListSeparator)),
	}
}

func (t MyPy) AcceptableExitCodes() []int { return []int{0, 1} }

func (t MyPy) Process(r io.Reader, emit Emitter) error {
	var current *types.Annotation
	flush := func() {
		if current != nil {
			emit.Annotate(*current)
			current = nil
		}
	}

	err := eachLine(r, func(line string) {
		if !strings.Contains(line, ":") || strings.Contains(line, "Success:") {
			return
		}
		parts := strings.SplitN(strings.TrimSpace(line), ":", 4)
		if len(parts) < 4 {
			emit.Fail(parsingError("file:line: level: message", line, nil))
			return
		}
		lineNo, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			emit.Fail(parsingError("file:line: level: message", line, err))
			return
		}
		source := types.Source{Path: parts[0], Line: lineNo}
		level := strings.TrimSpace(parts[2])
		msg := parts[3]

		if level == "note" && current != nil && current.Source == source {
			current.AddNote(strings.TrimSpace(msg))
			return
		}
		flush()

		status := types.StatusFailed
		if level == "note" || level == "warning" {
			status = types.StatusWarning
		}
		code := level
		if i := strings.LastIndex(msg, "  ["); i >= 0 && strings.HasSuffix(strings.TrimSpace(msg), "]") {
			code = strings.Trim(strings.TrimSpace(msg[i:]), "[]")
			msg = msg[:i]
		}
		a := types.NewAnnotation(status, source, code, msg)
		current = &a
	})
	flush()
	return err
}

// PyDocStyle runs pydocstyle, which checks docstrings.
type PyDocStyle struct{ Base }

func (t PyDocStyle) Command() []string {
	return append([]string{"pydocstyle"}, t.repo.PythonFiles...)
}

// Process reads pairs of lines: a "file:line in ..." header followed by an
// indented "CODE: message" line.
func (t PyDocStyle) Process(r io.Reader, emit Emitter) error {
	var header *types.Source
	err := eachLine(r, func(line string) {
		if header != nil {
			code, msg, _ := strings.Cut(strings.TrimSpace(line), ": ")
			emit.Annotate(types.NewAnnotation(types.StatusFailed, *header, code, msg))
			header = nil
			return
		}
		if !strings.Contains(line, ":") {
			return
		}
		file, rest, _ := strings.Cut(line, ":")
		lineStr, _, _ := strings.Cut(rest, " ")
		lineNo, err := strconv.Atoi(lineStr)
		if err != nil {
			emit.Fail(parsingError("file:line header", line, err))
			return
		}
		header = &types.Source{Path: file, Line: lineNo}
	})
	if header != nil {
		emit.Fail(parsingError("a message after the header", header.Path, nil))
	}
	return err
}
