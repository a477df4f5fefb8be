package cmd

import (
	"github.com/compozy/releasesync/internal/conflict"
	"github.com/compozy/releasesync/internal/domain"
	"github.com/compozy/releasesync/internal/orchestrator"
	"github.com/spf13/cobra"
)

type engineOptions struct {
	bump   domain.BumpKind
	dryRun bool
	yes    bool
}

func newReconcileCmd() *cobra.Command {
	var (
		dryRun bool
		yes    bool
		bump   string
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Classify the release state and repair it",
		Long: `Probe the working copy, the remote, the hosting platform and the registry,
classify the situation and offer the fixed recovery script for it.

The command keeps probing and repairing until nothing is left to do, the
operator exits, or a pass changes nothing. With --yes the recommended option is
taken at every step; a clean slate is left alone unless --bump is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := domain.ParseBumpKind(bump)
			if err != nil {
				return err
			}
			c, err := newContainer(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = c.logger.Sync() }()
			opts := engineOptions{bump: kind, dryRun: dryRun, yes: yes}
			operator, resolver := operatorFor(cmd, opts)
			_, err = c.engine(opts, operator, resolver).Run(cmd.Context())
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the steps without executing them")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Take the recommended option without prompting")
	cmd.Flags().StringVar(&bump, "bump", "", "Bump on a clean slate: patch, minor or major")
	return cmd
}

// operatorFor picks the prompt or the non-interactive policy.
func operatorFor(cmd *cobra.Command, opts engineOptions) (orchestrator.Operator, conflict.Resolver) {
	if opts.yes {
		return orchestrator.AutoOperator{}, orchestrator.AutoResolver{}
	}
	p := newPrompt(stdin, cmd.OutOrStdout())
	return p, p
}
