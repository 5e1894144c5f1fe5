package commands

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/tmplsync/internal/cli/output"
	"github.com/leapstack-labs/tmplsync/internal/engine"
	"github.com/spf13/cobra"
)

// ScaffoldOutput is the JSON output of the scaffold command.
type ScaffoldOutput struct {
	Created map[string]string `json:"created"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// NewScaffoldCommand creates the scaffold command.
func NewScaffoldCommand() *cobra.Command {
	var templates []string
	var varFlags []string

	cmd := &cobra.Command{
		Use:   "scaffold",
		Short: "Create one implementation per template",
		Long: `Create an implementation for each given template, named
prefix + template + suffix, link it with the variables supplied for that
template and render it.

Variables are scoped to a template with TEMPLATE:NAME=value. Values for
names the template does not use are dropped. An empty suffix means "Impl".`,
		Example: `  # Creates webImpl and apiImpl
  tmplsync scaffold --template web --template api --var web:REGION=eu

  # Creates eu-web-v2 and eu-api-v2
  tmplsync scaffold -t web -t api --prefix eu- --suffix -v2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(templates) == 0 {
				return fmt.Errorf("at least one --template is required")
			}
			vars, err := parseScopedVars(varFlags)
			if err != nil {
				return err
			}

			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			req := engine.ScaffoldRequest{
				Templates: templates,
				Prefix:    cmdCtx.Cfg.Scaffold.Prefix,
				Suffix:    cmdCtx.Cfg.Scaffold.Suffix,
				Variables: vars,
			}
			result, err := cmdCtx.Engine.Scaffold(cmd.Context(), req)
			if result != nil {
				if rerr := renderScaffold(cmdCtx.Renderer, req, result); rerr != nil {
					return rerr
				}
			}
			return err
		},
	}

	cmd.Flags().StringArrayVarP(&templates, "template", "t", nil, "Template to scaffold from (repeatable)")
	cmd.Flags().String("prefix", "", "Name prefix (default from config)")
	cmd.Flags().String("suffix", "", "Name suffix (default from config)")
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "Scoped variable TEMPLATE:NAME=value (repeatable)")

	return cmd
}

func renderScaffold(r *output.Renderer, req engine.ScaffoldRequest, result *engine.ScaffoldResult) error {
	if r.EffectiveMode() == output.ModeJSON {
		out := ScaffoldOutput{Created: result.Created}
		if len(result.Failed) > 0 {
			out.Failed = make(map[string]string, len(result.Failed))
			for name, err := range result.Failed {
				out.Failed[name] = err.Error()
			}
		}
		return r.JSON(out)
	}

	r.Header(1, fmt.Sprintf("Scaffolded %d of %d template(s)", len(result.Created), len(req.Templates)))
	rows := make([][]string, 0, len(req.Templates))
	for _, tmpl := range req.Templates {
		if impl, ok := result.Created[tmpl]; ok {
			rows = append(rows, []string{tmpl, impl, "created", ""})
		} else if err, ok := result.Failed[tmpl]; ok {
			rows = append(rows, []string{tmpl, req.ImplementationName(tmpl), "failed", err.Error()})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	r.Table([]string{"Template", "Implementation", "Status", "Error"}, rows)
	return nil
}
