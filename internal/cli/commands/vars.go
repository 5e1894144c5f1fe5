package commands

import (
	"fmt"
	"io"

	"github.com/leapstack-labs/tmplsync/internal/cli/output"
	"github.com/leapstack-labs/tmplsync/internal/engine"
	"github.com/leapstack-labs/tmplsync/internal/template"
	"github.com/spf13/cobra"
)

// Occurrence locates one placeholder in a template document.
type Occurrence struct {
	Name   string `json:"name"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// VariablesOutput is the JSON output of the vars command.
type VariablesOutput struct {
	Template    string       `json:"template"`
	Variables   []string     `json:"variables"`
	Occurrences []Occurrence `json:"occurrences,omitempty"`
}

// NewVarsCommand creates the vars command.
func NewVarsCommand() *cobra.Command {
	var positions bool

	cmd := &cobra.Command{
		Use:   "vars <template>",
		Short: "List the $$ variables a template uses",
		Long: `List the distinct $$NAME placeholders in a template's job document,
sorted by name. A name that is not a template lists nothing.

With --positions every occurrence is listed with its line and column.`,
		Example: `  tmplsync vars web
  tmplsync vars web --positions
  tmplsync vars web --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			out := VariablesOutput{Template: args[0]}
			out.Variables, err = cmdCtx.Engine.ExtractVariableNames(args[0])
			if err != nil {
				return err
			}
			if positions && len(out.Variables) > 0 {
				if out.Occurrences, err = occurrences(cmdCtx.Engine, args[0]); err != nil {
					return err
				}
			}
			return renderVariables(cmdCtx.Renderer, out)
		},
	}

	cmd.Flags().BoolVar(&positions, "positions", false, "List every occurrence with its line and column")
	return cmd
}

func occurrences(eng *engine.Engine, name string) ([]Occurrence, error) {
	rc, err := eng.Registry().OpenDocument(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	doc, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	var out []Occurrence
	for _, tok := range template.Occurrences(string(doc), name) {
		out = append(out, Occurrence{Name: tok.Value, Line: tok.Pos.Line, Column: tok.Pos.Column})
	}
	return out, nil
}

func renderVariables(r *output.Renderer, out VariablesOutput) error {
	title := fmt.Sprintf("Variables of %s (%d)", out.Template, len(out.Variables))
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, title))
		r.Println("")
		for _, name := range out.Variables {
			r.Println("- `$$" + name + "`")
		}
		if len(out.Occurrences) > 0 {
			r.Println("")
			r.Println(output.FormatHeader(2, "Occurrences"))
			r.Println("")
			for _, o := range out.Occurrences {
				r.Println(fmt.Sprintf("- `$$%s` at %d:%d", o.Name, o.Line, o.Column))
			}
		}
	default:
		r.Header(1, title)
		if len(out.Occurrences) == 0 {
			for _, name := range out.Variables {
				r.Println("  $$" + name)
			}
			return nil
		}
		rows := make([][]string, 0, len(out.Occurrences))
		for _, o := range out.Occurrences {
			rows = append(rows, []string{"$$" + o.Name, fmt.Sprint(o.Line), fmt.Sprint(o.Column)})
		}
		r.Table([]string{"Variable", "Line", "Column"}, rows)
	}
	return nil
}
