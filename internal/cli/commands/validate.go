package commands

import (
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <template>",
		Short: "Check that a name refers to a template",
		Example: `  tmplsync validate web`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Engine.ValidateTemplateName(args[0]); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(args[0] + " is a template")
			return nil
		},
	}
}
