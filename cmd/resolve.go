package cmd

import (
	"github.com/compozy/releasesync/internal/domain"
	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	var (
		abort  bool
		dryRun bool
		yes    bool
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Drive a stuck rebase, merge or cherry-pick to completion",
		Long: `Run only the conflict resolution loop. Regenerated files are resolved
automatically; every other conflict is put to the operator.

With --abort the in-progress operation is aborted instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newContainer(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = c.logger.Sync() }()
			opts := engineOptions{dryRun: dryRun, yes: yes}
			operator, resolver := operatorFor(cmd, opts)
			engine := c.engine(opts, operator, resolver)
			if abort {
				aborted, err := engine.AbortOperation(cmd.Context())
				if err != nil {
					return err
				}
				if !aborted {
					c.printer.Info("No rebase, merge or cherry-pick in progress.")
				}
				return nil
			}
			kind, err := c.operations.Detect()
			if err != nil {
				return err
			}
			if kind == domain.OperationNone || kind == "" {
				c.printer.Info("No rebase, merge or cherry-pick in progress.")
				return nil
			}
			if dryRun {
				c.printer.DryRun("resolve", kind.GitVerb())
				return nil
			}
			return engine.ResolveStuck(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&abort, "abort", false, "Abort the in-progress operation")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be done")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Never prompt; stop at the first conflict that needs a person")
	return cmd
}
