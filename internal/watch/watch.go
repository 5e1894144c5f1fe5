// Package watch propagates template edits made on disk.
//
// The watcher observes the jobs directory and, after a quiet period, syncs
// every template whose document changed. Events for implementation
// documents are ignored, so the writes made by a sync never trigger
// another sync.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/tmplsync/internal/engine"
	"github.com/leapstack-labs/tmplsync/internal/registry"
	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 300 * time.Millisecond

// TemplateSyncer syncs a template to its implementations.
type TemplateSyncer interface {
	SyncTemplate(ctx context.Context, name string, trigger core.SyncTrigger) (*engine.SyncReport, error)
}

// Config holds watcher configuration.
type Config struct {
	// Dir is the jobs directory
	Dir string
	// Registry is reloaded for changed documents
	Registry core.Registry
	// Syncer propagates template changes
	Syncer TemplateSyncer
	// Debounce is the quiet period before changes are processed
	Debounce time.Duration
	// OnSync is called after each template sync (optional)
	OnSync func(template string, report *engine.SyncReport, err error)
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Watcher turns document changes into template syncs.
type Watcher struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// New creates a watcher.
func New(cfg Config) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	return &Watcher{
		cfg:     cfg,
		logger:  logger,
		pending: make(map[string]struct{}),
	}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.watchDir(fsw, w.cfg.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.cfg.Dir, err)
	}

	w.logger.Info("watching jobs", slog.String("dir", w.cfg.Dir), slog.Duration("debounce", w.cfg.Debounce))
	w.watchLoop(ctx, fsw)

	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return nil
}

// watchDir adds the jobs directory and each item directory.
func (w *Watcher) watchDir(fsw *fsnotify.Watcher, dir string) error {
	if err := fsw.Add(dir); err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if err := fsw.Add(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) watchLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	// A new item directory: watch it and pick up a document already inside.
	if event.Op&fsnotify.Create != 0 && filepath.Dir(event.Name) == filepath.Clean(w.cfg.Dir) {
		info, err := os.Stat(event.Name)
		if err != nil || !info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return
		}
		if err := fsw.Add(event.Name); err != nil {
			w.logger.Warn("failed to watch job directory", slog.String("dir", event.Name), slog.String("error", err.Error()))
			return
		}
		if _, err := os.Stat(filepath.Join(event.Name, registry.DocumentFile)); err == nil {
			w.schedule(ctx, info.Name())
		}
		return
	}

	name, ok := DocumentName(w.cfg.Dir, event.Name)
	if !ok {
		return
	}
	w.schedule(ctx, name)
}

// DocumentName returns the item owning path when path is an item document
// directly under dir.
func DocumentName(dir, path string) (string, bool) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || parts[1] != registry.DocumentFile {
		return "", false
	}
	if parts[0] == "." || parts[0] == ".." || strings.HasPrefix(parts[0], ".") {
		return "", false
	}
	return parts[0], true
}

// schedule queues name and restarts the quiet period.
func (w *Watcher) schedule(ctx context.Context, name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.Debounce, func() {
		w.Flush(ctx)
	})
}

// Flush processes every queued document now.
func (w *Watcher) Flush(ctx context.Context) {
	w.mu.Lock()
	names := make([]string, 0, len(w.pending))
	for name := range w.pending {
		names = append(names, name)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, name)
	}
}

// process reloads a changed document and syncs it if it is a template.
func (w *Watcher) process(ctx context.Context, name string) {
	if item, ok := w.cfg.Registry.ItemByName(name); ok && item.Kind() == core.KindImplementation {
		return
	}

	item, err := w.cfg.Registry.Reload(name)
	if err != nil {
		if !errors.Is(err, core.ErrNotFound) {
			w.logger.Warn("failed to reload job", slog.String("name", name), slog.String("error", err.Error()))
		}
		return
	}
	if _, ok := item.(*core.TemplateItem); !ok {
		w.logger.Debug("ignoring change", slog.String("name", name), slog.String("kind", string(item.Kind())))
		return
	}

	w.logger.Info("template changed", slog.String("template", name))
	report, err := w.cfg.Syncer.SyncTemplate(ctx, name, core.TriggerWatch)
	if err != nil {
		w.logger.Error("sync failed", slog.String("template", name), slog.String("error", err.Error()))
	}
	if w.cfg.OnSync != nil {
		w.cfg.OnSync(name, report, err)
	}
}

// Pending returns the queued document names, sorted.
func (w *Watcher) Pending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.pending))
	for name := range w.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
