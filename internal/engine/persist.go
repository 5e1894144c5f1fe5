package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/tmplsync/pkg/core"
	"github.com/leapstack-labs/tmplsync/pkg/params"
)

// implementationStub seeds a new implementation's document until its
// first sync.
const implementationStub = "kind: implementation\n"

// Persist stores an item's state without propagating anything. Only an
// implementation's link is persisted; documents are written by the
// registry.
func (e *Engine) Persist(item core.Item) error {
	impl, ok := item.(*core.ImplementationItem)
	if !ok || impl.Link == nil {
		return nil
	}
	if err := e.store.SaveLink(impl.Name(), impl.Link); err != nil {
		return fmt.Errorf("failed to persist %s: %w", impl.Name(), err)
	}
	return nil
}

// PersistAndPropagate stores an item and propagates the save. A template
// is synced to all its implementations; an implementation is re-rendered
// from its own template, discarding local edits to its document. Other
// items are only persisted.
func (e *Engine) PersistAndPropagate(ctx context.Context, item core.Item, trigger core.SyncTrigger) (*SyncReport, error) {
	if err := e.Persist(item); err != nil {
		return nil, err
	}

	switch it := item.(type) {
	case *core.TemplateItem:
		return e.SyncAll(ctx, it, trigger)
	case *core.ImplementationItem:
		if it.Link == nil {
			return nil, fmt.Errorf("save %s: %w", it.Name(), core.ErrNotLinked)
		}
		tmpl, err := e.ResolveTemplate(it.Link.TemplateName)
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", it.Name(), err)
		}
		return e.syncSingle(ctx, tmpl, syncTarget{impl: it}, trigger)
	default:
		return newSyncReport("", ""), nil
	}
}

// OnTemplateSaved propagates an edit of the named template to every linked
// implementation.
func (e *Engine) OnTemplateSaved(ctx context.Context, templateName string) (*SyncReport, error) {
	return e.SyncTemplate(ctx, templateName, core.TriggerTemplateSaved)
}

// SyncTemplate reloads the named template and syncs all its
// implementations.
func (e *Engine) SyncTemplate(ctx context.Context, templateName string, trigger core.SyncTrigger) (*SyncReport, error) {
	if _, err := e.ResolveTemplate(templateName); err != nil {
		return nil, err
	}
	item, err := e.registry.Reload(templateName)
	if err != nil {
		return nil, err
	}
	tmpl, ok := item.(*core.TemplateItem)
	if !ok {
		return nil, &core.ResolutionError{Name: templateName, Want: core.KindTemplate, Got: item.Kind()}
	}
	return e.PersistAndPropagate(ctx, tmpl, trigger)
}

// SaveItem reloads the named item from its document and propagates the
// save.
func (e *Engine) SaveItem(ctx context.Context, name string, trigger core.SyncTrigger) (*SyncReport, error) {
	if _, ok := e.registry.ItemByName(name); !ok {
		return nil, &core.ResolutionError{Name: name, Want: core.KindTemplate}
	}
	item, err := e.registry.Reload(name)
	if err != nil {
		return nil, err
	}
	return e.PersistAndPropagate(ctx, item, trigger)
}

// RenderAndPersist links the named implementation to the template with
// vars and renders it. The implementation is created if it does not exist.
func (e *Engine) RenderAndPersist(ctx context.Context, templateName, implementationName string, vars *params.Params) error {
	report, err := e.Render(ctx, templateName, implementationName, vars)
	if err != nil {
		return err
	}
	if serr, ok := report.Failed[implementationName]; ok {
		return serr
	}
	return nil
}

// Render is RenderAndPersist returning the report of the run it recorded.
func (e *Engine) Render(ctx context.Context, templateName, implementationName string, vars *params.Params) (*SyncReport, error) {
	tmpl, err := e.ResolveTemplate(templateName)
	if err != nil {
		return nil, err
	}

	if _, ok := e.registry.ItemByName(implementationName); !ok {
		if _, err := e.registry.Create(implementationName, strings.NewReader(implementationStub)); err != nil {
			return nil, fmt.Errorf("failed to create implementation %s: %w", implementationName, err)
		}
		e.logger.Info("created implementation",
			slog.String("implementation", implementationName), slog.String("template", templateName))
	}
	if _, err := e.ResolveImplementation(implementationName); err != nil {
		return nil, err
	}

	return e.attachReport(ctx, tmpl, implementationName, vars, core.TriggerManual)
}

// Link attaches an existing implementation to a template and syncs it.
func (e *Engine) Link(ctx context.Context, implementationName, templateName string, vars *params.Params) (*SyncReport, error) {
	tmpl, err := e.ResolveTemplate(templateName)
	if err != nil {
		return nil, err
	}
	if _, err := e.ResolveImplementation(implementationName); err != nil {
		return nil, err
	}
	return e.attachReport(ctx, tmpl, implementationName, vars, core.TriggerManual)
}

// UpdateVariables replaces an implementation's variables and re-renders
// only that implementation.
func (e *Engine) UpdateVariables(ctx context.Context, implementationName string, vars *params.Params) (*SyncReport, error) {
	impl, err := e.ResolveImplementation(implementationName)
	if err != nil {
		return nil, err
	}
	if impl.Link == nil {
		return nil, fmt.Errorf("update %s: %w", implementationName, core.ErrNotLinked)
	}
	tmpl, err := e.ResolveTemplate(impl.Link.TemplateName)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", implementationName, err)
	}
	return e.attachReport(ctx, tmpl, implementationName, vars, core.TriggerManual)
}

// CreateItem adds a new item from doc. Creating an implementation this way
// leaves it unlinked.
func (e *Engine) CreateItem(name string, doc io.Reader) (core.Item, error) {
	item, err := e.registry.Create(name, doc)
	if err != nil {
		return nil, err
	}
	e.logger.Info("created item", slog.String("name", name), slog.String("kind", string(item.Kind())))
	return item, nil
}

// attachReport renders the implementation from tmpl with a new link. The
// link is stored together with the rendered document, so a render that
// fails leaves both the old link and the old document in place.
func (e *Engine) attachReport(ctx context.Context, tmpl *core.TemplateItem, implementationName string, vars *params.Params, trigger core.SyncTrigger) (*SyncReport, error) {
	link := core.NewTemplateLink(tmpl.Name(), vars.Clone())

	item, err := e.registry.Reload(implementationName)
	if err != nil {
		return nil, err
	}
	impl, ok := item.(*core.ImplementationItem)
	if !ok {
		return nil, &core.ResolutionError{Name: implementationName, Want: core.KindImplementation, Got: item.Kind()}
	}
	return e.syncSingle(ctx, tmpl, syncTarget{impl: impl, link: link}, trigger)
}

// syncSingle records a run that syncs one implementation.
func (e *Engine) syncSingle(ctx context.Context, tmpl *core.TemplateItem, target syncTarget, trigger core.SyncTrigger) (*SyncReport, error) {
	report, err := e.runSync(ctx, tmpl, []syncTarget{target}, 0, trigger)
	if report == nil {
		return nil, err
	}
	var serr *SyncError
	if errors.As(err, &serr) {
		return report, serr
	}
	return report, err
}
