package commands

import (
	"fmt"

	"github.com/leapstack-labs/tmplsync/internal/cli/output"
	"github.com/leapstack-labs/tmplsync/pkg/core"
	"github.com/spf13/cobra"
)

// ItemInfo is the JSON form of one listed item.
type ItemInfo struct {
	Name      string            `json:"name"`
	Kind      string            `json:"kind"`
	Template  string            `json:"template,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
	Workspace string            `json:"workspace,omitempty"`
}

// ListOutput is the JSON output of the list command.
type ListOutput struct {
	Items   []ItemInfo     `json:"items"`
	Summary map[string]int `json:"summary"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates, implementations and other jobs",
		Long: `List every job in the jobs directory with its kind and, for
implementations, the template it follows.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all jobs
  tmplsync list

  # List templates only
  tmplsync list --kind template

  # List as JSON
  tmplsync list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, kind)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Only list items of this kind (template|implementation|other)")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"template", "implementation", "other"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runList(cmd *cobra.Command, kind string) error {
	switch core.Kind(kind) {
	case "", core.KindTemplate, core.KindImplementation, core.KindOther:
	default:
		return fmt.Errorf("unknown kind %q (want template, implementation or other)", kind)
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var items []ItemInfo
	summary := map[string]int{}
	for _, item := range cmdCtx.Engine.Registry().AllItems() {
		if kind != "" && item.Kind() != core.Kind(kind) {
			continue
		}
		info := ItemInfo{Name: item.Name(), Kind: string(item.Kind())}
		if spec := item.Spec(); spec != nil {
			info.Workspace = spec.Workspace
		}
		if impl, ok := item.(*core.ImplementationItem); ok && impl.Link != nil {
			info.Template = impl.Link.TemplateName
			info.Variables = impl.Link.Variables.Map()
		}
		items = append(items, info)
		summary[info.Kind]++
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if items == nil {
			items = []ItemInfo{}
		}
		return r.JSON(ListOutput{Items: items, Summary: summary})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, fmt.Sprintf("Jobs (%d total)", len(items))))
		r.Println("")
		for _, info := range items {
			r.Println(output.FormatHeader(2, info.Name))
			r.Println(output.FormatKeyValue("Kind", info.Kind))
			if info.Template != "" {
				r.Println(output.FormatKeyValue("Template", info.Template))
			}
			if info.Workspace != "" {
				r.Println(output.FormatKeyValue("Workspace", info.Workspace))
			}
			r.Println("")
		}
		return nil
	default:
		r.Header(1, fmt.Sprintf("Jobs (%d total)", len(items)))
		rows := make([][]string, 0, len(items))
		for _, info := range items {
			rows = append(rows, []string{info.Name, info.Kind, info.Template, info.Workspace})
		}
		r.Table([]string{"Name", "Kind", "Template", "Workspace"}, rows)
		return nil
	}
}
