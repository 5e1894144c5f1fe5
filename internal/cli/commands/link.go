package commands

import (
	"github.com/spf13/cobra"
)

// NewLinkCommand creates the link command.
func NewLinkCommand() *cobra.Command {
	var varFlags []string
	var varsFile string

	cmd := &cobra.Command{
		Use:   "link <implementation> <template>",
		Short: "Attach an implementation to a template and render it",
		Long: `Attach an existing implementation to a template with the given variable
values, then render it from the template. The link replaces any previous one.

--vars-file reads name=value lines, or a JSON/JSONC object of strings when
the file ends in .json or .jsonc. --var values override the file.`,
		Example: `  tmplsync link web-eu web --var REGION=eu --var ENV=prod
  tmplsync link web-eu web --vars-file eu.jsonc`,
		Args: cobra.ExactArgs(2),
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

			report, err := cmdCtx.Engine.Link(cmd.Context(), args[0], args[1], vars)
			if report != nil {
				if rerr := renderSyncReport(cmdCtx.Renderer, report); rerr != nil {
					return rerr
				}
			}
			return err
		},
	}

	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "Variable assignment NAME=value (repeatable)")
	cmd.Flags().StringVar(&varsFile, "vars-file", "", "File of variable assignments")

	return cmd
}
