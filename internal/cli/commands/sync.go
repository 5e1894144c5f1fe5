package commands

import (
	"github.com/leapstack-labs/tmplsync/pkg/core"
	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <template>",
		Short: "Propagate a template to all its implementations",
		Long: `Re-render every implementation linked to a template. Implementations that
already match are left untouched, and other jobs are never opened.

A failure in one implementation does not stop the others; the command
exits non-zero when any implementation failed.`,
		Example: `  tmplsync sync web
  tmplsync sync web --concurrency 8 --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cmdCtx.Logger.Debug("syncing template", "template", args[0], "concurrency", cmdCtx.Cfg.Sync.Concurrency)
			report, err := cmdCtx.Engine.SyncTemplate(cmd.Context(), args[0], core.TriggerManual)
			if report != nil {
				if rerr := renderSyncReport(cmdCtx.Renderer, report); rerr != nil {
					return rerr
				}
			}
			return err
		},
	}

	cmd.Flags().Int("concurrency", 0, "Implementations synced in parallel (default from config)")

	return cmd
}
