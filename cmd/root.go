package cmd

import (
	"context"
	"io"
	"os"

	"github.com/compozy/releasesync/internal/orchestrator"
	"github.com/spf13/cobra"
)

// globalOptions are the flags every command shares. Set flags override the config file.
type globalOptions struct {
	branch         string
	remote         string
	ignorePatterns []string
	ciOutput       bool
	logLevel       string
	logFormat      string
}

var (
	globals globalOptions
	stdin   io.Reader = os.Stdin
)

var rootCmd = &cobra.Command{
	Use:   "releasesync",
	Short: "Reconcile a package's local, remote, hosting and registry release state",
	Long: `releasesync inspects where a release stands across the working copy, the
remote, the hosting platform and the package registry, names the situation it
finds and repairs it with a fixed script of steps.

Generated files matching the ignore patterns (translation catalogs by default)
are stashed around every git mutation and restored afterwards. A pattern
matches a full path, a base name or a leading directory ("locale/*" covers
every file below locale/), and "**" crosses directories.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globals.branch, "branch", "", "Release branch (default from config: main)")
	flags.StringVar(&globals.remote, "remote", "", "Git remote (default from config: origin)")
	flags.StringArrayVar(&globals.ignorePatterns, "ignore-pattern", nil,
		"Glob for regenerated files to stash around mutations (repeatable)")
	flags.BoolVar(&globals.ciOutput, "ci-output", false, "Output in CI-friendly format")
	flags.StringVar(&globals.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&globals.logFormat, "log-format", "", "Log format: console or structured")
}

// Execute runs the CLI and returns the process exit code. Terminal errors are
// printed with the command that finishes the job by hand.
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		orchestrator.NewPrinter(rootCmd.ErrOrStderr(), globals.ciOutput).Failure(err, orchestrator.Recovery(err))
	}
	return ExitCode(err)
}
