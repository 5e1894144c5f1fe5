package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/tmplsync/internal/cli/output"
	"github.com/leapstack-labs/tmplsync/internal/engine"
)

// SyncReportOutput is the JSON form of a sync report.
type SyncReportOutput struct {
	RunID     string            `json:"run_id,omitempty"`
	Template  string            `json:"template"`
	Status    string            `json:"status"`
	Synced    []string          `json:"synced"`
	Unchanged []string          `json:"unchanged"`
	Skipped   int               `json:"skipped"`
	Failed    map[string]string `json:"failed,omitempty"`
}

func newSyncReportOutput(report *engine.SyncReport) SyncReportOutput {
	out := SyncReportOutput{
		RunID:     report.RunID,
		Template:  report.Template,
		Status:    string(report.Status()),
		Synced:    append([]string{}, report.Synced...),
		Unchanged: append([]string{}, report.Unchanged...),
		Skipped:   report.Skipped,
	}
	if len(report.Failed) > 0 {
		out.Failed = make(map[string]string, len(report.Failed))
		for name, err := range report.Failed {
			out.Failed[name] = err.Error()
		}
	}
	return out
}

// renderSyncReport writes report in the renderer's effective mode.
func renderSyncReport(r *output.Renderer, report *engine.SyncReport) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(newSyncReportOutput(report))
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(2, "Sync "+report.Template))
		r.Println("")
		if report.RunID != "" {
			r.Println(output.FormatKeyValue("Run", report.RunID))
		}
		r.Println(output.FormatKeyValue("Status", string(report.Status())))
		r.Println(output.FormatKeyValue("Synced", joinOrNone(report.Synced)))
		r.Println(output.FormatKeyValue("Unchanged", joinOrNone(report.Unchanged)))
		r.Println(output.FormatKeyValue("Skipped", fmt.Sprintf("%d", report.Skipped)))
		for _, name := range report.FailedNames() {
			r.Println(output.FormatKeyValue("Failed "+name, report.Failed[name].Error()))
		}
		return nil
	default:
		r.Header(1, fmt.Sprintf("Sync %s (%d implementation(s))", report.Template, report.Total()))
		for _, name := range report.Synced {
			r.StatusLine(name, "success", "rewritten")
		}
		for _, name := range report.Unchanged {
			r.StatusLine(name, "unchanged", "up to date")
		}
		for _, name := range report.FailedNames() {
			r.StatusLine(name, "failed", report.Failed[name].Error())
		}
		if report.Skipped > 0 {
			r.Muted(fmt.Sprintf("%d other item(s) left untouched", report.Skipped))
		}
		return nil
	}
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
