package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	var varFlags []string
	var varsFile string

	cmd := &cobra.Command{
		Use:   "render <template> <implementation>",
		Short: "Render an implementation from a template",
		Long: `Render an implementation from a template with the given variable values.
The implementation is created when it does not exist yet. Its link to the
template is stored, so later template edits propagate to it.`,
		Example: `  tmplsync render web web-eu --var REGION=eu --var ENV=prod --var BRANCH=main`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := collectVars(varFlags, varsFile)
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			templateName, implName := args[0], args[1]
			if err := cmdCtx.Engine.RenderAndPersist(cmd.Context(), templateName, implName, vars); err != nil {
				return err
			}
			cmdCtx.Renderer.Success(fmt.Sprintf("rendered %s from template %s", implName, templateName))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "Variable assignment NAME=value (repeatable)")
	cmd.Flags().StringVar(&varsFile, "vars-file", "", "File of variable assignments")

	return cmd
}
