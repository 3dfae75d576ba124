package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mewbotorg/bastet"
)

var (
	flagWatchDomains []string
	flagDebounce     time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch [folders...]",
	Short: "Re-run the checks whenever python files or configuration change",
	Long: `Runs the selected domains once, then again after every change to a python
file, pyproject.toml, .bastet.yml or copyright.json. Format is not run by
default because its fixes would trigger another run.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVar(&flagWatchDomains, "domain", []string{"lint", "audit"}, "Domains to run on each change")
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", 500*time.Millisecond, "Quiet period before a run starts")
	watchCmd.Flags().BoolVar(&flagChanged, "changed", false, "Only report annotations on git-changed files")
	watchCmd.Flags().StringVar(&flagBaseline, "baseline", "", "Suppress annotations recorded in this baseline file")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var domains []bastet.Domain
	for _, name := range flagWatchDomains {
		d, ok := bastet.ParseDomain(name)
		if !ok {
			return fmt.Errorf("unknown domain %q (format, lint, audit)", name)
		}
		domains = append(domains, d)
	}

	opts := append(commonOptions(cmd), runOptions(cmd, args, domains)...)
	opts = append(opts, bastet.WithDebounce(flagDebounce))

	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "Watching for changes (Ctrl+C to stop)...\n")
	return bastet.Watch(cmd.Context(), func(results *bastet.Results, err error) {
		switch {
		case err != nil:
			logger.Error("run failed", "err", err)
		case results.Success:
			fmt.Fprintf(w, "\nAll checks passed. Watching for changes...\n")
		default:
			fmt.Fprintf(w, "\nChecks failed. Watching for changes...\n")
		}
	}, opts...)
}
