package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mewbotorg/bastet"
)

var (
	flagChanged  bool
	flagBaseline string
	flagDryRun   bool
)

var runCmd = &cobra.Command{
	Use:   "run [folders...]",
	Short: "Run every domain: format, lint and audit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChecks(cmd, args)
	},
}

var formatCmd = domainCommand(bastet.DomainFormat, "format", "Apply the formatters' fixes, then report what is left")
var lintCmd = domainCommand(bastet.DomainLint, "lint", "Check code without changing it")
var auditCmd = domainCommand(bastet.DomainAudit, "audit", "Run the security auditors")

func domainCommand(domain bastet.Domain, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [folders...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChecks(cmd, args, domain)
		},
	}
}

func init() {
	for _, cmd := range []*cobra.Command{runCmd, formatCmd, lintCmd, auditCmd} {
		cmd.Flags().BoolVar(&flagChanged, "changed", false, "Only report annotations on git-changed files (staged, unstaged, untracked)")
		cmd.Flags().StringVar(&flagBaseline, "baseline", "", "Suppress annotations recorded in this baseline file")
		cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print the commands instead of running them")
		rootCmd.AddCommand(cmd)
	}
}

func runChecks(cmd *cobra.Command, folders []string, domains ...bastet.Domain) error {
	opts := append(commonOptions(cmd), runOptions(cmd, folders, domains)...)
	results, err := bastet.Run(cmd.Context(), opts...)
	if err != nil {
		return err
	}
	installHint(cmd.ErrOrStderr(), results, commonOptions(cmd)...)
	if !flagDryRun && !results.Success {
		checksFailed = true
	}
	return nil
}

// runOptions holds the options shared by every command that runs tools.
func runOptions(cmd *cobra.Command, folders []string, domains []bastet.Domain) []bastet.Option {
	opts := []bastet.Option{bastet.WithFolders(folders...), bastet.WithDomains(domains...)}
	if flagChanged {
		opts = append(opts, bastet.WithChangedOnly())
	}
	if flagBaseline != "" {
		opts = append(opts, bastet.WithBaseline(flagBaseline))
	}
	if flagDryRun {
		opts = append(opts, bastet.WithDryRun(cmd.OutOrStdout()))
	}
	if interactive(cmd) {
		opts = append(opts, bastet.WithInteractive())
	}
	return opts
}

// interactive reports whether a spinner can be shown: stderr is a terminal
// and the run is not in CI.
func interactive(cmd *cobra.Command) bool {
	if flagNoColor || os.Getenv("CI") != "" {
		return false
	}
	f, ok := cmd.ErrOrStderr().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

var baselineCmd = &cobra.Command{
	Use:   "baseline [folders...]",
	Short: "Record the current annotations as known",
	Long: `Runs every domain and records each annotation worse than Passed in a baseline
file (reports/baseline.json by default). Later runs given --baseline suppress
the recorded annotations, so that only new problems are reported.`,
	RunE: runBaseline,
}

var flagBaselineOutput string

func init() {
	baselineCmd.Flags().StringVarP(&flagBaselineOutput, "output", "o", "", "Baseline file to write (default: <reports>/baseline.json)")
	rootCmd.AddCommand(baselineCmd)
}

func runBaseline(cmd *cobra.Command, args []string) error {
	opts := append(commonOptions(cmd), bastet.WithFolders(args...))
	if interactive(cmd) {
		opts = append(opts, bastet.WithInteractive())
	}
	results, n, err := bastet.RecordBaseline(cmd.Context(), flagBaselineOutput, opts...)
	if err != nil {
		return err
	}
	installHint(cmd.ErrOrStderr(), results, commonOptions(cmd)...)
	fmt.Fprintf(cmd.ErrOrStderr(), "Recorded %d annotations in the baseline.\n", n)
	return nil
}
