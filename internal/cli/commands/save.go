package commands

import (
	"github.com/leapstack-labs/tmplsync/pkg/core"
	"github.com/spf13/cobra"
)

// NewSaveCommand creates the save command.
func NewSaveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save <item>",
		Short: "Reload an edited job and propagate it",
		Long: `Reload a job after editing its job.yaml and propagate the change.

Saving a template syncs every implementation linked to it. Saving an
implementation re-renders it from its template, so local edits to an
implementation's document are overwritten. Other jobs are only reloaded.`,
		Example: `  tmplsync save web`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := cmdCtx.Engine.SaveItem(cmd.Context(), args[0], core.TriggerManual)
			if report != nil && report.Template != "" {
				if rerr := renderSyncReport(cmdCtx.Renderer, report); rerr != nil {
					return rerr
				}
			} else if err == nil {
				cmdCtx.Renderer.Success("saved " + args[0])
			}
			return err
		},
	}
}
