package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/mewbotorg/bastet"
	"github.com/mewbotorg/bastet/internal/types"
)

// missingTools returns the names of the tools that could not be started
// because their executable is not on PATH, in run order.
func missingTools(results *bastet.Results) []string {
	var names []string
	for _, err := range results.Errors {
		var execErr *types.ExecError
		if !errors.As(err, &execErr) || !errors.Is(execErr.Err, exec.ErrNotFound) {
			continue
		}
		if !slices.Contains(names, execErr.Tool) {
			names = append(names, execErr.Tool)
		}
	}
	return names
}

// printInstallHint tells the user how to install the missing tools. Tools
// with no known package are listed by executable.
func printInstallHint(w io.Writer, missing []string, infos []bastet.ToolInfo) {
	if len(missing) == 0 {
		return
	}
	var packages, manual []string
	for _, name := range missing {
		i := slices.IndexFunc(infos, func(info bastet.ToolInfo) bool { return strings.EqualFold(info.Name, name) })
		switch {
		case i < 0:
			manual = append(manual, name)
		case infos[i].Package != "":
			packages = append(packages, infos[i].Package)
		default:
			manual = append(manual, infos[i].Executable)
		}
	}

	fmt.Fprintf(w, "\nTip: %d tool(s) could not be found on PATH: %s\n", len(missing), strings.Join(missing, ", "))
	if os.Getenv("VIRTUAL_ENV") == "" {
		fmt.Fprintln(w, "No virtualenv is active; activate the project's environment first if it has one.")
	}
	if len(packages) > 0 {
		fmt.Fprintf(w, "\n  pip install %s\n", strings.Join(packages, " "))
	}
	if len(manual) > 0 {
		fmt.Fprintf(w, "\n  Install by hand: %s\n", strings.Join(manual, ", "))
	}
	fmt.Fprintf(w, "\nRun 'bastet discover' to see which tools are installed.\n\n")
}

// installHint prints the hint for results, looking packages up in the
// configured registry.
func installHint(w io.Writer, results *bastet.Results, opts ...bastet.Option) {
	missing := missingTools(results)
	if len(missing) == 0 {
		return
	}
	infos, err := bastet.Tools(opts...)
	if err != nil {
		logger.Debug("listing tools for install hint", "err", err)
	}
	printInstallHint(w, missing, infos)
}
