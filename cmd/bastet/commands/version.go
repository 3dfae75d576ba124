package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mewbotorg/bastet/internal/output"
	"github.com/mewbotorg/bastet/internal/update"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var flagCheck bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "bastet %s (commit: %s)\n", Version, Commit)
		if !flagCheck {
			return
		}
		if Version == "dev" {
			fmt.Fprintln(w, "Development build, not checking for releases.")
			return
		}
		switch r := update.CheckLatest(cmd.Context(), Version, update.Repo); {
		case r == nil:
			fmt.Fprintln(w, "Could not check for a newer release.")
		case r.NeedsUpdate():
			fmt.Fprintf(w, "A newer release is available: %s\n  %s\n", r.Latest, r.UpdateURL)
		default:
			fmt.Fprintln(w, "You are running the latest release.")
		}
	},
}

func init() {
	versionCmd.Flags().BoolVar(&flagCheck, "check", false, "Check GitHub for a newer release")
	rootCmd.AddCommand(versionCmd)
}

func versionString() string {
	output.ToolVersion = Version
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
