// Package discover reports which tools are installed and at what version.
package discover

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mewbotorg/bastet/internal/tools"
)

// VersionTimeout bounds each `<tool> --version` call.
const VersionTimeout = 2 * time.Second

// ToolStatus describes one registered tool on this machine.
type ToolStatus struct {
	Name       string   `json:"name"`
	Domains    []string `json:"domains"`
	Executable string   `json:"executable"`
	Package    string   `json:"package,omitempty"`
	Custom     bool     `json:"custom,omitempty"`
	Found      bool     `json:"found"`
	Path       string   `json:"path,omitempty"`
	Version    string   `json:"version,omitempty"`
}

// Result holds the full discovery output, in registry order.
type Result struct {
	Tools []ToolStatus `json:"tools"`
}

// Installed returns the number of tools found on PATH.
func (r *Result) Installed() int {
	n := 0
	for _, t := range r.Tools {
		if t.Found {
			n++
		}
	}
	return n
}

// Missing returns the tools that are not on PATH.
func (r *Result) Missing() []ToolStatus {
	var out []ToolStatus
	for _, t := range r.Tools {
		if !t.Found {
			out = append(out, t)
		}
	}
	return out
}

// Scan looks up every factory's executable and asks it for its version.
// Tools are probed concurrently; the result keeps the given order.
func Scan(ctx context.Context, factories []tools.Factory) *Result {
	result := &Result{Tools: make([]ToolStatus, len(factories))}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, f := range factories {
		domains := make([]string, len(f.Domains))
		for j, d := range f.Domains {
			domains[j] = string(d)
		}
		status := ToolStatus{
			Name:       f.Name,
			Domains:    domains,
			Executable: f.Executable,
			Package:    f.Package,
			Custom:     f.Custom,
		}
		g.Go(func() error {
			if path, err := exec.LookPath(status.Executable); err == nil {
				status.Found = true
				status.Path = path
				status.Version = version(ctx, path)
			}
			result.Tools[i] = status
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// version returns the first non-empty line printed by `path --version`,
// or "" if the program fails or does not answer in time.
func version(ctx context.Context, path string) string {
	ctx, cancel := context.WithTimeout(ctx, VersionTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "--version")
	cmd.WaitDelay = 100 * time.Millisecond
	out, err := cmd.CombinedOutput()
	if err != nil && ctx.Err() != nil {
		return ""
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line
		}
	}
	return ""
}

// FormatTree returns a human-readable tree of the discovered tools.
func FormatTree(result *Result) string {
	if len(result.Tools) == 0 {
		return "No tools registered.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d of %d tools:\n\n", result.Installed(), len(result.Tools))

	width := 0
	for _, t := range result.Tools {
		width = max(width, len(t.Name))
	}
	for i, t := range result.Tools {
		prefix := "├──"
		if i == len(result.Tools)-1 {
			prefix = "└──"
		}
		name := t.Name
		if t.Custom {
			name += "*"
		}
		switch {
		case !t.Found:
			hint := "not installed"
			if t.Package != "" {
				hint = "not installed (pip install " + t.Package + ")"
			}
			fmt.Fprintf(&b, "  %s %-*s  %s\n", prefix, width+1, name, hint)
		case t.Version == "":
			fmt.Fprintf(&b, "  %s %-*s  %s\n", prefix, width+1, name, t.Path)
		default:
			fmt.Fprintf(&b, "  %s %-*s  %s  %s\n", prefix, width+1, name, t.Version, t.Path)
		}
	}

	if missing := result.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, t := range missing {
			names[i] = t.Name
		}
		fmt.Fprintf(&b, "\nMissing: %s\n", strings.Join(names, ", "))
	}
	return b.String()
}

// JSON returns the result as indented JSON.
func JSON(result *Result) ([]byte, error) {
	return json.MarshalIndent(result, "", "  ")
}
