package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/tmplsync/internal/cli/output"
	"github.com/leapstack-labs/tmplsync/pkg/core"
	"github.com/spf13/cobra"
)

// RunOutput is the JSON form of a sync run with its results.
type RunOutput struct {
	*core.SyncRun
	Results []*core.ImplementationSync `json:"results,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history [template]",
		Short: "Show past sync runs",
		Long: `Show recorded sync runs, newest first, optionally for one template.
Use --run to show the per-implementation results of a single run.`,
		Example: `  tmplsync history
  tmplsync history web --limit 5
  tmplsync history --run 0b5c1f7e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if runID != "" {
				return showRun(cmdCtx, runID)
			}

			template := ""
			if len(args) > 0 {
				template = args[0]
			}
			runs, err := cmdCtx.Engine.History(template, limit)
			if err != nil {
				return err
			}
			return listRuns(cmdCtx.Renderer, runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show the results of one run")

	return cmd
}

func listRuns(r *output.Renderer, runs []*core.SyncRun) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if runs == nil {
			runs = []*core.SyncRun{}
		}
		return r.JSON(runs)
	default:
		r.Header(1, fmt.Sprintf("Sync runs (%d)", len(runs)))
		rows := make([][]string, 0, len(runs))
		for _, run := range runs {
			rows = append(rows, []string{
				run.ID, run.Template, string(run.Trigger), string(run.Status),
				run.StartedAt.Local().Format(time.DateTime), run.Error,
			})
		}
		r.Table([]string{"Run", "Template", "Trigger", "Status", "Started", "Error"}, rows)
		return nil
	}
}

func showRun(cmdCtx *CommandContext, id string) error {
	run, err := cmdCtx.Engine.Store().GetSyncRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("sync run %s: %w", id, core.ErrNotFound)
	}
	results, err := cmdCtx.Engine.RunResults(id)
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(RunOutput{SyncRun: run, Results: results})
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Run "+run.ID))
		r.Println("")
		r.Println(output.FormatKeyValue("Template", run.Template))
		r.Println(output.FormatKeyValue("Trigger", string(run.Trigger)))
		r.Println(output.FormatKeyValue("Status", string(run.Status)))
		if run.Error != "" {
			r.Println(output.FormatKeyValue("Error", run.Error))
		}
		r.Println("")
		r.Table([]string{"Implementation", "Status", "Duration", "Error"}, resultRows(results))
		return nil
	default:
		r.Header(1, fmt.Sprintf("Run %s of %s", run.ID, run.Template))
		r.StatusLine(string(run.Status), string(run.Status), run.Error)
		for _, res := range results {
			r.StatusLine(res.Implementation, string(res.Status), res.Error)
		}
		return nil
	}
}

func resultRows(results []*core.ImplementationSync) [][]string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		rows = append(rows, []string{res.Implementation, string(res.Status), durationMS(res.DurationMS), res.Error})
	}
	return rows
}
