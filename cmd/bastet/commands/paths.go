package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mewbotorg/bastet"
)

var pathsCmd = &cobra.Command{
	Use:   "paths [folders...]",
	Short: "Print the inferred PYTHONPATH",
	Long: `Prints the PYTHONPATH entries bastet infers for the project, deepest first,
joined by the platform's path list separator:

  export PYTHONPATH="$(bastet paths)"

With --format json the full discovery result is printed instead.`,
	RunE: runPaths,
}

func init() {
	rootCmd.AddCommand(pathsCmd)
}

func runPaths(cmd *cobra.Command, args []string) error {
	asJSON, err := jsonOutput()
	if err != nil {
		return err
	}
	repo, err := bastet.PythonPath(append(commonOptions(cmd), bastet.WithFolders(args...))...)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(repo)
	}
	fmt.Fprint(w, strings.Join(repo.PythonPathByDepth(), string(os.PathListSeparator)))
	return nil
}
