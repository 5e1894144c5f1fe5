// Package registry is the filesystem catalog of job items.
// Each item lives in its own directory under the jobs directory and owns
// exactly one document, <dir>/<name>/job.yaml.
package registry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// DocumentFile is the name of an item's document inside its directory.
const DocumentFile = "job.yaml"

// Registry implements core.Registry over a jobs directory.
type Registry struct {
	mu sync.RWMutex

	dir    string
	items  map[string]core.Item
	links  core.LinkStore
	logger *slog.Logger
}

var _ core.Registry = (*Registry)(nil)

// New creates a registry rooted at dir. links may be nil, in which case
// implementations are loaded without a link.
func New(dir string, links core.LinkStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		dir:    dir,
		items:  make(map[string]core.Item),
		links:  links,
		logger: logger,
	}
}

// Dir returns the jobs directory.
func (r *Registry) Dir() string {
	return r.dir
}

// DocumentPath returns the path of an item's document.
func (r *Registry) DocumentPath(name string) string {
	return filepath.Join(r.dir, name, DocumentFile)
}

// ValidateName reports whether name can be used as an item name.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.New("item name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("invalid item name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("item name %q must not contain a path separator", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("item name %q must not start with a dot", name)
	}
	return nil
}

// Load scans the jobs directory and replaces the catalog. Directories
// without a document, and hidden directories, are skipped. A document that
// fails to parse is logged and skipped.
func (r *Registry) Load() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read jobs directory %s: %w", r.dir, err)
	}

	var links map[string]*core.TemplateLink
	if r.links != nil {
		links, err = r.links.ListLinks()
		if err != nil {
			return fmt.Errorf("failed to load template links: %w", err)
		}
	}

	items := make(map[string]core.Item, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		spec, err := r.readSpec(name)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			r.logger.Warn("skipping job", slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		items[name] = core.NewItem(name, spec, links[name])
	}

	r.mu.Lock()
	r.items = items
	r.mu.Unlock()

	r.logger.Debug("loaded jobs", slog.String("dir", r.dir), slog.Int("count", len(items)))
	return nil
}

// AllItems returns every item sorted by name.
func (r *Registry) AllItems() []core.Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]core.Item, 0, len(r.items))
	for _, item := range r.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name() < items[j].Name()
	})
	return items
}

// ItemByName returns the named item.
func (r *Registry) ItemByName(name string) (core.Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[name]
	return item, ok
}

// Count returns the number of items.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// OpenDocument opens an item's document for reading.
func (r *Registry) OpenDocument(name string) (io.ReadCloser, error) {
	if _, ok := r.ItemByName(name); !ok {
		return nil, fmt.Errorf("job %s: %w", name, core.ErrNotFound)
	}
	f, err := os.Open(r.DocumentPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open document of %s: %w", name, err)
	}
	return f, nil
}

// WriteDocument atomically replaces an item's document. write streams the
// new content into a temp file beside the live document. The temp file is
// renamed over the document only if it parses as a job document of the
// same kind as the item; otherwise it is removed and the live document is
// left untouched.
func (r *Registry) WriteDocument(name string, write func(w io.Writer) error) error {
	item, ok := r.ItemByName(name)
	if !ok {
		return fmt.Errorf("job %s: %w", name, core.ErrNotFound)
	}
	return r.writeAtomic(name, item.Kind(), write)
}

// Reload rehydrates an item from its document and stored link.
func (r *Registry) Reload(name string) (core.Item, error) {
	spec, err := r.readSpec(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("job %s: %w", name, core.ErrNotFound)
		}
		return nil, err
	}

	var link *core.TemplateLink
	if r.links != nil && core.KindOf(spec.Kind) == core.KindImplementation {
		link, err = r.links.GetLink(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load link of %s: %w", name, err)
		}
	}

	item := core.NewItem(name, spec, link)
	r.mu.Lock()
	r.items[name] = item
	r.mu.Unlock()

	r.logger.Debug("reloaded job", slog.String("name", name), slog.String("kind", string(item.Kind())))
	return item, nil
}

// Create adds a new item whose document is read from doc.
func (r *Registry) Create(name string, doc io.Reader) (core.Item, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, ok := r.items[name]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("job %s: %w", name, core.ErrAlreadyExists)
	}
	itemDir := filepath.Join(r.dir, name)
	if err := os.Mkdir(itemDir, 0o755); err != nil {
		r.mu.Unlock()
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("job %s: %w", name, core.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create job directory: %w", err)
	}
	r.mu.Unlock()

	err := r.writeAtomic(name, "", func(w io.Writer) error {
		_, err := io.Copy(w, doc)
		return err
	})
	if err != nil {
		_ = os.RemoveAll(itemDir)
		return nil, err
	}

	r.logger.Info("created job", slog.String("name", name))
	return r.Reload(name)
}

// Rename moves an item's directory to newName. Links are not touched.
func (r *Registry) Rename(oldName, newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[oldName]
	if !ok {
		return fmt.Errorf("job %s: %w", oldName, core.ErrNotFound)
	}
	if _, taken := r.items[newName]; taken {
		return fmt.Errorf("job %s: %w", newName, core.ErrAlreadyExists)
	}
	newDir := filepath.Join(r.dir, newName)
	if _, err := os.Stat(newDir); err == nil {
		return fmt.Errorf("job %s: %w", newName, core.ErrAlreadyExists)
	}

	if err := os.Rename(filepath.Join(r.dir, oldName), newDir); err != nil {
		return fmt.Errorf("failed to rename job %s to %s: %w", oldName, newName, err)
	}

	delete(r.items, oldName)
	var link *core.TemplateLink
	if impl, ok := item.(*core.ImplementationItem); ok {
		link = impl.Link
	}
	r.items[newName] = core.NewItem(newName, item.Spec(), link)

	r.logger.Info("renamed job", slog.String("from", oldName), slog.String("to", newName))
	return nil
}

func (r *Registry) readSpec(name string) (*core.JobSpec, error) {
	f, err := os.Open(r.DocumentPath(name))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	spec, err := core.ParseJobSpec(f)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", name, err)
	}
	return spec, nil
}

// writeAtomic writes through a temp file in the item's directory. An empty
// want skips the kind check.
func (r *Registry) writeAtomic(name string, want core.Kind, write func(w io.Writer) error) (err error) {
	itemDir := filepath.Join(r.dir, name)
	tmp, err := os.CreateTemp(itemDir, "."+DocumentFile+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp document for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return fmt.Errorf("failed to write document of %s: %w", name, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("failed to write document of %s: %w", name, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync document of %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close document of %s: %w", name, err)
	}

	if err = verifyDocument(tmpPath, want); err != nil {
		return fmt.Errorf("rejected document for %s: %w", name, err)
	}

	if err = os.Rename(tmpPath, r.DocumentPath(name)); err != nil {
		return fmt.Errorf("failed to replace document of %s: %w", name, err)
	}
	return nil
}

func verifyDocument(path string, want core.Kind) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	spec, err := core.ParseJobSpec(f)
	if err != nil {
		return err
	}
	if got := core.KindOf(spec.Kind); want != "" && got != want {
		return fmt.Errorf("document kind %s does not match %s: %w", got, want, core.ErrWrongKind)
	}
	return nil
}
