package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRenameCommand creates the rename command.
func NewRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a job, keeping template links intact",
		Long: `Rename a job. Renaming a template updates the link of every
implementation that follows it; renaming an implementation moves its link.`,
		Example: `  tmplsync rename web web-frontend`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Engine.Rename(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("renamed %s to %s", args[0], args[1]))
			return nil
		},
	}
}
