package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mewbotorg/bastet"
	"github.com/mewbotorg/bastet/discover"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Check which tools are installed on this machine",
	Long:  `Looks up every registered tool on PATH and asks it for its version.`,
	Args:  cobra.NoArgs,
	RunE:  runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	asJSON, err := jsonOutput()
	if err != nil {
		return err
	}
	result, err := bastet.Discover(cmd.Context(), commonOptions(cmd)...)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	w := cmd.OutOrStdout()
	if asJSON {
		data, err := discover.JSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}
	fmt.Fprint(w, discover.FormatTree(result))
	return nil
}
