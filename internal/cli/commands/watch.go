package commands

import (
	"fmt"

	"github.com/leapstack-labs/tmplsync/internal/engine"
	"github.com/leapstack-labs/tmplsync/internal/watch"
	"github.com/spf13/cobra"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync templates as their documents change",
		Long: `Watch the jobs directory and sync a template's implementations each time
its job.yaml is written. Changes are debounced, and edits to implementations
or other jobs never trigger a sync. Stop with Ctrl+C.`,
		Example: `  tmplsync watch
  tmplsync watch --debounce 1s`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			r := cmdCtx.Renderer
			w := watch.New(watch.Config{
				Dir:      cmdCtx.Cfg.JobsDir,
				Registry: cmdCtx.Engine.Registry(),
				Syncer:   cmdCtx.Engine,
				Debounce: cmdCtx.Cfg.Watch.Debounce,
				Logger:   cmdCtx.Logger,
				OnSync: func(template string, report *engine.SyncReport, err error) {
					if report != nil {
						_ = renderSyncReport(r, report)
					}
					if err != nil {
						r.Error(fmt.Sprintf("sync %s: %v", template, err))
					}
				},
			})

			r.Muted(fmt.Sprintf("Watching %s (debounce %s)", cmdCtx.Cfg.JobsDir, cmdCtx.Cfg.Watch.Debounce))
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().Duration("debounce", 0, "Quiet period before syncing (default from config)")

	return cmd
}
