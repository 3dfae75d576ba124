package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mewbotorg/bastet/internal/types"
)

const (
	copyrightFile = "copyright.json"
	licenseDir    = "LICENSES"
)

// CopyrightInfo is the default header reuse adds to files.
type CopyrightInfo struct {
	Exists    bool
	Copyright string
	License   string
}

// LoadCopyright reads copyright.json from root. A missing or malformed file
// yields empty values.
func LoadCopyright(root string) CopyrightInfo {
	data, err := os.ReadFile(filepath.Join(root, copyrightFile))
	if err != nil {
		return CopyrightInfo{}
	}
	info := CopyrightInfo{Exists: true}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return info
	}
	if v, ok := doc["copyright"]; ok {
		info.Copyright = fmt.Sprint(v)
	}
	if v, ok := doc["license"]; ok {
		info.License = fmt.Sprint(v)
	} else if v, ok := doc["licence"]; ok {
		info.License = fmt.Sprint(v)
	}
	return info
}

// Reuse runs reuse, which checks and adds SPDX copyright headers.
type Reuse struct{ Base }

func (t Reuse) Command() []string {
	if t.is(types.DomainLint) {
		return []string{"reuse", "lint", "--json"}
	}

	info := LoadCopyright(t.repo.Root)
	cmd := []string{"reuse", "annotate", "--merge-copyrights"}
	if info.Copyright != "" {
		cmd = append(cmd, "--copyright", info.Copyright)
	}
	if info.License != "" {
		cmd = append(cmd, "--license", info.License)
	}
	return append(cmd, "--skip-unrecognised", "--skip-existing", "--recursive", t.repo.Root)
}

func (t Reuse) AcceptableExitCodes() []int {
	if t.is(types.DomainLint) {
		return []int{0, 1}
	}
	return []int{0}
}

func (t Reuse) Process(r io.Reader, emit Emitter) error {
	info := LoadCopyright(t.repo.Root)
	src := types.Source{Path: copyrightFile}
	if !info.Exists {
		emit.Annotate(types.NewAnnotation(types.StatusFailed, src, "no-config", "Missing copyright.json").
			WithDescription("copyright.json should exist in root dir with a copyright and license field."))
	}
	if info.Copyright == "" {
		emit.Annotate(types.NewAnnotation(types.StatusFailed, src, "no-copyright", "No copyright in copyright.json").
			WithDescription("copyright.json needs to have a 'copyright' field stating who owns the copyright."))
	}
	if info.License == "" {
		emit.Annotate(types.NewAnnotation(types.StatusFailed, src, "no-license", "No license in copyright.json").
			WithDescription("copyright.json needs to have a 'license' (or 'licence') field with the default license for files."))
	}

	if t.is(types.DomainFormat) {
		return processAnnotate(r, emit)
	}
	return processReuseLint(r, emit)
}

func processAnnotate(r io.Reader, emit Emitter) error {
	const (
		skipped = "Skipped file "
		changed = "Successfully changed header of "
	)
	return eachLine(r, func(line string) {
		switch {
		case strings.TrimSpace(line) == "":
		case strings.HasPrefix(line, skipped) && strings.Contains(line, "'"):
			rest := strings.TrimLeft(strings.TrimSpace(strings.TrimPrefix(line, skipped)), "'")
			file, note, _ := strings.Cut(rest, "'")
			emit.Annotate(types.NewAnnotation(types.StatusPassed, types.Source{Path: file}, "reuse", note))
		case strings.HasPrefix(line, changed):
			file := strings.TrimSpace(strings.TrimPrefix(line, changed))
			emit.Annotate(types.NewAnnotation(types.StatusFixed, types.Source{Path: file}, "fixed", "Copyright/License info added"))
		default:
			emit.Fail(parsingError("", line, nil))
		}
	})
}

func processReuseLint(r io.Reader, emit Emitter) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if !gjson.ValidBytes(data) {
		emit.Fail(parsingError("reuse lint JSON report", string(data), nil))
		return nil
	}
	report := gjson.ParseBytes(data)
	issues := report.Get("non_compliant")

	passed := map[string]bool{}
	report.Get("files.#.path").ForEach(func(_, p gjson.Result) bool {
		passed[p.String()] = true
		return true
	})
	license := func(name string) types.Source {
		return types.Source{Path: path.Join(licenseDir, name+".txt")}
	}
	fail := func(src types.Source, code, msg string) types.Annotation {
		return types.NewAnnotation(types.StatusFailed, src, code, msg)
	}
	referenced := func(files gjson.Result) string {
		var names []string
		files.ForEach(func(_, f gjson.Result) bool {
			names = append(names, f.String())
			delete(passed, f.String())
			return true
		})
		return "Referenced in " + strings.Join(names, " ")
	}

	issues.Get("deprecated_licenses").ForEach(func(_, name gjson.Result) bool {
		emit.Annotate(fail(license(name.String()), "deprecated-license", "Deprecated license "+name.String()))
		return true
	})
	issues.Get("unused_licenses").ForEach(func(_, name gjson.Result) bool {
		emit.Annotate(fail(license(name.String()), "unused-license", "Unused license "+name.String()))
		return true
	})
	if without := issues.Get("licenses_without_extension"); without.IsObject() {
		without.ForEach(func(name, file gjson.Result) bool {
			emit.Annotate(fail(types.Source{Path: file.String()}, "missing-license", "Missing license "+name.String()))
			return true
		})
	}

	issues.Get("bad_licenses").ForEach(func(name, files gjson.Result) bool {
		emit.Annotate(fail(types.Source{}, "bad-license", "Bad license "+name.String()).
			WithDescription(referenced(files)))
		return true
	})
	issues.Get("missing_licenses").ForEach(func(name, files gjson.Result) bool {
		emit.Annotate(fail(license(name.String()), "missing-license", "Missing license "+name.String()).
			WithDescription(referenced(files)))
		return true
	})

	issues.Get("missing_copyright_info").ForEach(func(_, file gjson.Result) bool {
		emit.Annotate(fail(types.Source{Path: file.String()}, "no-copyright", "No SPDX copyright line"))
		delete(passed, file.String())
		return true
	})
	issues.Get("missing_licensing_info").ForEach(func(_, file gjson.Result) bool {
		emit.Annotate(fail(types.Source{Path: file.String()}, "no-license", "No SPDX license line"))
		delete(passed, file.String())
		return true
	})
	issues.Get("read_errors").ForEach(func(_, file gjson.Result) bool {
		emit.Annotate(types.NewAnnotation(types.StatusError, types.Source{Path: file.String()}, "read-error", "Could not read file"))
		delete(passed, file.String())
		return true
	})

	names := make([]string, 0, len(passed))
	for name := range passed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		emit.Annotate(types.NewAnnotation(types.StatusPassed, types.Source{Path: name}, "spdx-compliant", "File passed SPDX spec"))
	}
	return nil
}
