package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/tmplsync/internal/substitute"
	"github.com/leapstack-labs/tmplsync/internal/template"
	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// identityPattern matches a template's kind line. A trailing comment is
// dropped along with the tag.
var identityPattern = regexp.MustCompile(`^kind:[ \t]*["']?template["']?[ \t]*(#.*)?$`)

// SyncReport summarizes one sync run.
type SyncReport struct {
	RunID    string
	Template string
	// Synced lists implementations whose document was rewritten.
	Synced []string
	// Unchanged lists implementations already matching the template.
	Unchanged []string
	// Skipped counts items that are not implementations of the template,
	// including implementations relinked elsewhere while the run waited.
	Skipped int
	// Failed maps implementation name to its sync error.
	Failed map[string]error
}

func newSyncReport(runID, template string) *SyncReport {
	return &SyncReport{RunID: runID, Template: template, Failed: make(map[string]error)}
}

// Total is the number of implementations the run targeted.
func (r *SyncReport) Total() int {
	return len(r.Synced) + len(r.Unchanged) + len(r.Failed)
}

// FailedNames returns the failed implementations sorted by name.
func (r *SyncReport) FailedNames() []string {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status is the run outcome implied by the per-implementation results.
func (r *SyncReport) Status() core.RunStatus {
	switch {
	case len(r.Failed) == 0:
		return core.RunStatusCompleted
	case len(r.Failed) == r.Total():
		return core.RunStatusFailed
	default:
		return core.RunStatusPartial
	}
}

// syncRules builds the ordered rule set for rendering link's implementation:
// the identity rewrite first, then one rule per variable. Names that can
// never form a placeholder are left out.
func syncRules(link *core.TemplateLink) []substitute.Rule {
	rules := []substitute.Rule{{
		Pattern:     identityPattern,
		Replacement: "kind: " + string(core.KindImplementation),
	}}
	link.Variables.Each(func(name, value string) {
		if !template.IsValidName(name) {
			return
		}
		rules = append(rules, substitute.Rule{
			Pattern:     regexp.MustCompile(`\$\$` + regexp.QuoteMeta(name) + `\b`),
			Replacement: value,
		})
	})
	return rules
}

// syncTarget is one implementation to render. A non-nil link is a
// proposed link: it is used for rendering and stored only once the new
// document has been written.
type syncTarget struct {
	impl *core.ImplementationItem
	link *core.TemplateLink
}

// SyncOne renders impl from tmpl and replaces impl's document. It is a
// no-op when either item is nil or impl has no link, and when impl has
// been relinked to another template since it was looked up.
func (e *Engine) SyncOne(ctx context.Context, tmpl *core.TemplateItem, impl *core.ImplementationItem) error {
	if tmpl == nil || impl == nil || impl.Link == nil {
		return nil
	}
	_, err := e.syncOne(ctx, tmpl, syncTarget{impl: impl})
	return err
}

// currentLink returns the link impl has now. The registry copy wins over
// the caller's snapshot, which may predate a relink.
func (e *Engine) currentLink(impl *core.ImplementationItem) *core.TemplateLink {
	if current, ok := e.registry.ItemByName(impl.Name()); ok {
		if ci, ok := current.(*core.ImplementationItem); ok && ci.Link != nil {
			return ci.Link
		}
	}
	return impl.Link
}

// syncOne does the work of SyncOne and reports the outcome.
func (e *Engine) syncOne(ctx context.Context, tmpl *core.TemplateItem, target syncTarget) (*core.ImplementationSync, error) {
	impl := target.impl
	start := time.Now()
	result := &core.ImplementationSync{Implementation: impl.Name()}

	fail := func(err error) (*core.ImplementationSync, error) {
		serr := &SyncError{Implementation: impl.Name(), Template: tmpl.Name(), Err: err}
		result.Status = core.ImplementationSyncFailed
		result.Error = serr.Error()
		result.DurationMS = time.Since(start).Milliseconds()
		return result, serr
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	unlock := e.locks.Lock(impl.Name())
	defer unlock()

	link := target.link
	if link == nil {
		link = e.currentLink(impl)
	}
	if link == nil || link.TemplateName != tmpl.Name() {
		result.Status = core.ImplementationSyncSkipped
		result.DurationMS = time.Since(start).Milliseconds()
		e.logger.Debug("implementation no longer follows template",
			slog.String("implementation", impl.Name()),
			slog.String("template", tmpl.Name()))
		return result, nil
	}
	rules := syncRules(link)

	rendered, err := e.renderHash(tmpl.Name(), rules)
	if err != nil {
		return fail(err)
	}

	existing, err := e.documentHash(impl.Name())
	if err != nil {
		return fail(err)
	}

	if rendered == existing {
		result.Status = core.ImplementationSyncUnchanged
	} else {
		src, err := e.registry.OpenDocument(tmpl.Name())
		if err != nil {
			return fail(err)
		}
		// The stored hash must describe the bytes written, even if the
		// template changed since renderHash read it.
		h := sha256.New()
		err = e.registry.WriteDocument(impl.Name(), func(w io.Writer) error {
			return substitute.Stream(io.MultiWriter(w, h), src, rules)
		})
		_ = src.Close()
		if err != nil {
			return fail(err)
		}
		rendered = hex.EncodeToString(h.Sum(nil))
		result.Status = core.ImplementationSyncSuccess
	}
	result.ContentHash = rendered

	if target.link != nil {
		if err := e.store.SaveLink(impl.Name(), target.link); err != nil {
			return fail(fmt.Errorf("failed to link %s: %w", impl.Name(), err))
		}
	}
	reloaded, err := e.registry.Reload(impl.Name())
	if err != nil {
		return fail(err)
	}
	if ri, ok := reloaded.(*core.ImplementationItem); ok && ri.Link == nil {
		// A registry without link storage does not attach links on reload.
		ri.Link = link
	}
	if err := e.Persist(reloaded); err != nil {
		return fail(err)
	}
	if err := e.store.SetRenderedHash(impl.Name(), rendered); err != nil {
		return fail(err)
	}

	result.DurationMS = time.Since(start).Milliseconds()
	e.logger.Debug("synced implementation",
		slog.String("implementation", impl.Name()),
		slog.String("template", tmpl.Name()),
		slog.String("status", string(result.Status)))
	return result, nil
}

// renderHash renders the template through rules without writing it.
func (e *Engine) renderHash(name string, rules []substitute.Rule) (string, error) {
	src, err := e.registry.OpenDocument(name)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	h := sha256.New()
	if err := substitute.Stream(h, src, rules); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (e *Engine) documentHash(name string) (string, error) {
	src, err := e.registry.OpenDocument(name)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, src); err != nil {
		return "", fmt.Errorf("failed to read document of %s: %w", name, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SyncAll re-renders every implementation linked to tmpl. It is best
// effort: a failed implementation is recorded and the rest still sync.
// Items that are not implementations of tmpl are never opened or written.
// The returned error combines every per-implementation failure.
func (e *Engine) SyncAll(ctx context.Context, tmpl *core.TemplateItem, trigger core.SyncTrigger) (*SyncReport, error) {
	if tmpl == nil {
		return newSyncReport("", ""), nil
	}

	var targets []syncTarget
	skipped := 0
	for _, item := range e.registry.AllItems() {
		if impl, ok := item.(*core.ImplementationItem); ok && impl.Implements(tmpl.Name()) {
			targets = append(targets, syncTarget{impl: impl})
			continue
		}
		skipped++
	}

	return e.runSync(ctx, tmpl, targets, skipped, trigger)
}

// runSync records a run and syncs targets with bounded parallelism.
func (e *Engine) runSync(ctx context.Context, tmpl *core.TemplateItem, targets []syncTarget, skipped int, trigger core.SyncTrigger) (*SyncReport, error) {
	run, err := e.store.CreateSyncRun(tmpl.Name(), trigger)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}

	e.logger.Info("starting sync",
		slog.String("run_id", run.ID),
		slog.String("template", tmpl.Name()),
		slog.Int("implementations", len(targets)),
		slog.String("trigger", string(trigger)))

	report := newSyncReport(run.ID, tmpl.Name())
	report.Skipped = skipped

	var (
		mu      sync.Mutex
		combined error
	)
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for _, target := range targets {
		impl := target.impl
		g.Go(func() error {
			result, err := e.syncOne(ctx, tmpl, target)
			result.RunID = run.ID
			if recErr := e.store.RecordImplementationSync(result); recErr != nil {
				e.logger.Warn("failed to record implementation sync",
					slog.String("implementation", impl.Name()), slog.String("error", recErr.Error()))
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed[impl.Name()] = err
				combined = multierr.Append(combined, err)
			case result.Status == core.ImplementationSyncSkipped:
				report.Skipped++
			case result.Status == core.ImplementationSyncUnchanged:
				report.Unchanged = append(report.Unchanged, impl.Name())
			default:
				report.Synced = append(report.Synced, impl.Name())
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(report.Synced)
	sort.Strings(report.Unchanged)

	status := report.Status()
	errMsg := ""
	if ctx.Err() != nil {
		status = core.RunStatusCancelled
		errMsg = ctx.Err().Error()
	} else if combined != nil {
		errMsg = fmt.Sprintf("%d of %d implementation(s) failed", len(report.Failed), report.Total())
	}
	if err := e.store.CompleteSyncRun(run.ID, status, errMsg); err != nil {
		e.logger.Warn("failed to complete sync run", slog.String("run_id", run.ID), slog.String("error", err.Error()))
	}

	e.logger.Info("sync finished",
		slog.String("run_id", run.ID),
		slog.String("status", string(status)),
		slog.Int("synced", len(report.Synced)),
		slog.Int("unchanged", len(report.Unchanged)),
		slog.Int("failed", len(report.Failed)))

	return report, combined
}
