package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// Rename moves an item to newName and keeps links consistent. Renaming a
// template repoints every link that names it; renaming an implementation
// re-keys its own link and rendered hash.
func (e *Engine) Rename(ctx context.Context, oldName, newName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	item, ok := e.registry.ItemByName(oldName)
	if !ok {
		return fmt.Errorf("rename %s: %w", oldName, core.ErrNotFound)
	}

	// Lock in name order so opposite renames cannot deadlock.
	first, second := oldName, newName
	if second < first {
		first, second = second, first
	}
	unlockFirst := e.locks.Lock(first)
	defer unlockFirst()
	unlockSecond := e.locks.Lock(second)
	defer unlockSecond()

	if err := e.registry.Rename(oldName, newName); err != nil {
		return err
	}

	var err error
	switch item.(type) {
	case *core.TemplateItem:
		err = e.renameTemplate(oldName, newName)
	case *core.ImplementationItem:
		err = e.renameImplementation(oldName, newName)
	}
	if err != nil {
		if rbErr := e.registry.Rename(newName, oldName); rbErr != nil {
			e.logger.Error("failed to roll back rename",
				slog.String("from", newName), slog.String("to", oldName), slog.String("error", rbErr.Error()))
		}
		return fmt.Errorf("rename %s to %s: %w", oldName, newName, err)
	}

	if _, err := e.registry.Reload(newName); err != nil {
		return err
	}
	e.logger.Info("renamed item", slog.String("from", oldName), slog.String("to", newName))
	return nil
}

func (e *Engine) renameTemplate(oldName, newName string) error {
	n, err := e.store.RenameTemplateReferences(oldName, newName)
	if err != nil {
		return err
	}

	for _, impl := range e.Implementations(oldName) {
		if _, err := e.registry.Reload(impl.Name()); err != nil {
			return fmt.Errorf("failed to reload %s: %w", impl.Name(), err)
		}
	}

	e.logger.Debug("repointed template links",
		slog.String("template", newName), slog.Int64("links", n))
	return nil
}

func (e *Engine) renameImplementation(oldName, newName string) error {
	if err := e.store.RenameImplementation(oldName, newName); err != nil {
		return err
	}
	if err := e.store.RenameRenderedHash(oldName, newName); err != nil {
		if rbErr := e.store.RenameImplementation(newName, oldName); rbErr != nil {
			e.logger.Error("failed to roll back link rename",
				slog.String("from", newName), slog.String("to", oldName), slog.String("error", rbErr.Error()))
		}
		return err
	}
	return nil
}
