package tools

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mewbotorg/bastet/internal/types"
)

// Bandit runs bandit, a static security analyser.
type Bandit struct{ Base }

func (t Bandit) Command() []string {
	// TODO: bandit can emit JSON with -f json, which would replace the block parser.
	return append([]string{"bandit", "-c", "pyproject.toml", "-r"}, t.pythonPath()...)
}

// Process splits the report into blocks on dashed separator lines. Every
// block before a separator holds one issue; the trailing block is the
// summary and is ignored.
func (t Bandit) Process(r io.Reader, emit Emitter) error {
	var block []string
	return eachLine(r, func(line string) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, strings.Repeat("-", 27)) {
			a, err := banditBlock(block)
			if err != nil {
				emit.Fail(err)
			} else {
				emit.Annotate(a)
			}
			block = nil
		}
		block = append(block, line)
	})
}

func banditBlock(block []string) (types.Annotation, error) {
	start := -1
	for i, line := range block {
		if strings.HasPrefix(line, ">>") {
			start = i
			break
		}
	}
	if start < 0 {
		return types.Annotation{}, parsingError("block beginning with '>>'", strings.Join(block, "\n"), nil)
	}
	block = block[start:]
	if len(block) < 5 {
		return types.Annotation{}, parsingError("issue, severity, CWE, info and location lines", strings.Join(block, "\n"), nil)
	}
	issueLine, level, cwe, docs, location := block[0], block[1], block[2], block[3], block[4]

	code, issue, _ := strings.Cut(strings.TrimPrefix(issueLine, ">> Issue: "), " ")
	code = strings.Trim(code, "[]")

	fields := strings.Fields(level)
	if len(fields) != 4 || fields[0] != "Severity:" || fields[2] != "Confidence:" {
		return types.Annotation{}, parsingError("Severity: / Confidence:", level, nil)
	}
	if !strings.HasPrefix(location, "Location: ") {
		return types.Annotation{}, parsingError("Location:", location, nil)
	}
	source, err := banditLocation(location)
	if err != nil {
		return types.Annotation{}, err
	}

	return types.NewAnnotation(types.StatusFailed, source, code, issue).
		WithDescription(fmt.Sprintf("(%s severity / %s confidence) %s %s", fields[1], fields[3], cwe, docs)), nil
}

// banditLocation parses "Location: path:line:col". The path may itself
// contain colons on Windows, so the numbers are taken from the right.
func banditLocation(line string) (types.Source, error) {
	loc := strings.TrimPrefix(line, "Location: ")
	i := strings.LastIndex(loc, ":")
	if i < 0 {
		return types.Source{}, parsingError("path:line:column", line, nil)
	}
	loc, colStr := loc[:i], loc[i+1:]
	i = strings.LastIndex(loc, ":")
	if i < 0 {
		return types.Source{}, parsingError("path:line:column", line, nil)
	}
	path, lineStr := loc[:i], loc[i+1:]

	lineNo, err := strconv.Atoi(strings.TrimSpace(lineStr))
	if err != nil {
		return types.Source{}, parsingError("a line number", line, err)
	}
	col, err := strconv.Atoi(strings.TrimSpace(colStr))
	if err != nil {
		return types.Source{}, parsingError("a column number", line, err)
	}
	return types.Source{Path: strings.TrimSpace(path), Line: lineNo, Column: col}, nil
}
