// Package output renders command results for terminals, scripts and agents.
//
// Output adapts to the environment: styled text on a terminal, markdown
// when piped, and JSON on request.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Renderer writes command output in the effective mode.
type Renderer struct {
	w      io.Writer
	errW   io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether w is a terminal.
func NewRenderer(w, errW io.Writer, mode Mode) *Renderer {
	return NewRendererWithTTY(w, errW, isTerminal(w), mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(w, errW io.Writer, isTTY bool, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	profile := termenv.Ascii
	if isTTY && !termenv.EnvNoColor() {
		profile = termenv.NewOutput(w).EnvColorProfile()
	}
	lr := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	return &Renderer{
		w:      w,
		errW:   errW,
		mode:   mode,
		isTTY:  isTTY,
		styles: NewStyles(lr),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves auto to text on a terminal and markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the standard output writer.
func (r *Renderer) Writer() io.Writer { return r.w }

// Styles returns the styles bound to this renderer's colour profile.
func (r *Renderer) Styles() *Styles { return r.styles }

// Println writes a line to standard output.
func (r *Renderer) Println(s string) {
	_, _ = fmt.Fprintln(r.w, s)
}

// Printf writes formatted output to standard output.
func (r *Renderer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.w, format, args...)
}

// Header writes a level 1 or 2 heading.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatHeader(level, text))
		r.Println("")
		return
	}
	style := r.styles.Header2
	if level <= 1 {
		style = r.styles.Header1
	}
	r.Println(style.Render(text))
}

// Success writes a success message.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.Success.Render(SymbolSuccess + " " + msg))
}

// Warning writes a warning to standard error.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errW, r.styles.Warning.Render(SymbolWarning+" "+msg))
}

// Error writes an error to standard error.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errW, r.styles.Error.Render(SymbolError+" "+msg))
}

// Muted writes a de-emphasized line.
func (r *Renderer) Muted(msg string) {
	r.Println(r.styles.Muted.Render(msg))
}

// StatusLine writes one item with a status symbol and optional detail.
func (r *Renderer) StatusLine(name, status, detail string) {
	symbol, style := r.statusStyle(status)
	line := fmt.Sprintf("  %s %s", style.Render(symbol), name)
	if detail != "" {
		line += " " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

func (r *Renderer) statusStyle(status string) (string, lipgloss.Style) {
	switch status {
	case "success", "completed":
		return SymbolSuccess, r.styles.Success
	case "unchanged", "skipped":
		return SymbolSkipped, r.styles.Muted
	case "partial", "warning", "cancelled":
		return SymbolWarning, r.styles.Warning
	case "failed", "error":
		return SymbolError, r.styles.Error
	default:
		return SymbolPending, r.styles.Muted
	}
}

// Table writes rows under headers. Markdown mode emits a markdown table.
func (r *Renderer) Table(headers []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		return
	}
	t.SetStyle(table.StyleLight)
	t.Render()
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
