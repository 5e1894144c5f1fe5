package commands

import (
	"github.com/spf13/cobra"
)

// NewSetVarsCommand creates the set-vars command.
func NewSetVarsCommand() *cobra.Command {
	var varFlags []string
	var varsFile string
	var merge bool

	cmd := &cobra.Command{
		Use:   "set-vars <implementation>",
		Short: "Change an implementation's variable values and re-render it",
		Long: `Replace the variable values of a linked implementation and re-render it
from its template. With --merge the given values are added to the existing
ones instead.`,
		Example: `  tmplsync set-vars web-eu --var ENV=staging
  tmplsync set-vars web-eu --merge --var BRANCH=release`,
		Args: cobra.ExactArgs(1),
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

			eng := cmdCtx.Engine
			if merge {
				impl, err := eng.ResolveImplementation(args[0])
				if err != nil {
					return err
				}
				if impl.Link != nil {
					merged := impl.Link.Variables.Clone()
					vars.Each(func(name, value string) {
						_ = merged.Set(name, value)
					})
					vars = merged
				}
			}

			report, err := eng.UpdateVariables(cmd.Context(), args[0], vars)
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
	cmd.Flags().BoolVar(&merge, "merge", false, "Merge with the existing values instead of replacing them")

	return cmd
}
