package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mewbotorg/bastet"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools in run order",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	asJSON, err := jsonOutput()
	if err != nil {
		return err
	}
	infos, err := bastet.Tools(commonOptions(cmd)...)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tDOMAINS\tEXECUTABLE\tSOURCE\n")
	fmt.Fprintf(tw, "----\t-------\t----------\t------\n")
	for _, t := range infos {
		source := "builtin"
		if t.Custom {
			source = "custom"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, strings.Join(t.Domains, ","), t.Executable, source)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d tools registered\n", len(infos))
	return nil
}
