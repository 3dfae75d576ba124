package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mewbotorg/bastet"
)

var explainCmd = &cobra.Command{
	Use:   "explain <TOOL>",
	Short: "Show detailed information about a tool",
	Args:  cobra.ExactArgs(1),
	RunE:  runExplain,
}

func init() {
	rootCmd.AddCommand(explainCmd)
}

var (
	boldStyle = lipgloss.NewStyle().Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)
	cyanStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

func runExplain(cmd *cobra.Command, args []string) error {
	asJSON, err := jsonOutput()
	if err != nil {
		return err
	}
	info, err := bastet.ExplainTool(strings.TrimSpace(args[0]), commonOptions(cmd)...)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	render := func(style lipgloss.Style, text string) string {
		if flagNoColor {
			return text
		}
		return style.Render(text)
	}

	source := "built in"
	if info.Custom {
		source = "user defined"
	}
	fmt.Fprintf(w, "\n%s %s\n", render(dimStyle, "Tool:"), render(boldStyle, info.Name))
	fmt.Fprintf(w, "%s %s\n", render(dimStyle, "Domains:"), render(cyanStyle, strings.Join(info.Domains, ", ")))
	fmt.Fprintf(w, "%s %s\n", render(dimStyle, "Executable:"), info.Executable)
	fmt.Fprintf(w, "%s %s\n", render(dimStyle, "Source:"), source)
	if info.Package != "" {
		fmt.Fprintf(w, "%s pip install %s\n", render(dimStyle, "Install:"), info.Package)
	}
	if info.Description != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", render(boldStyle, "Description:"), info.Description)
	}
	fmt.Fprintln(w)
	return nil
}
