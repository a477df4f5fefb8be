package cmd

import (
	"fmt"
	"strings"

	"github.com/compozy/releasesync/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStashesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stashes",
		Short: "List stashes the mutation guard left behind",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newContainer(cmd.Context(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() { _ = c.logger.Sync() }()
			orphans, err := c.guard.FindOrphans(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list stashes: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(orphans) == 0 {
				fmt.Fprintln(out, "No guard stashes.")
				return nil
			}
			var recorded []domain.StashRecord
			if latest, err := c.journal.LoadLatest(cmd.Context()); err == nil && latest != nil {
				recorded = latest.Stashes
			} else if err != nil {
				c.logger.Debug("no journal to cross-reference", zap.Error(err))
			}
			for _, o := range orphans {
				fmt.Fprintf(out, "%s\t%s\n", o.Ref, o.Subject)
				if rec, ok := journaled(recorded, o); ok {
					fmt.Fprintf(out, "\tleft by: %s (%s)\n", rec.Description, rec.RecordedAt.Format("2006-01-02 15:04"))
				}
				fmt.Fprintf(out, "\trestore: git stash pop %s\n", o.Ref)
			}
			return nil
		},
	}
}

// journaled matches by message because stash refs shift as stashes are pushed and popped
func journaled(records []domain.StashRecord, entry domain.StashEntry) (domain.StashRecord, bool) {
	for _, rec := range records {
		if rec.Message != "" && strings.Contains(entry.Subject, rec.Message) {
			return rec, true
		}
	}
	return domain.StashRecord{}, false
}
