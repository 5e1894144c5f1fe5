package engine

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/tmplsync/internal/registry"
	"github.com/leapstack-labs/tmplsync/internal/state"
	"github.com/leapstack-labs/tmplsync/internal/testutil"
	"github.com/leapstack-labs/tmplsync/pkg/core"
	"github.com/leapstack-labs/tmplsync/pkg/params"
	"github.com/stretchr/testify/require"
)

// recordingRegistry wraps the filesystem registry and counts document
// access per item.
type recordingRegistry struct {
	*registry.Registry

	mu       sync.Mutex
	opens    map[string]int
	writes   map[string]int
	reloads  map[string]int
	inflight map[string]int
	maxWrite map[string]int
	failing  map[string]error
	delay    time.Duration
}

func newRecordingRegistry(reg *registry.Registry) *recordingRegistry {
	return &recordingRegistry{
		Registry: reg,
		opens:    make(map[string]int),
		writes:   make(map[string]int),
		reloads:  make(map[string]int),
		inflight: make(map[string]int),
		maxWrite: make(map[string]int),
		failing:  make(map[string]error),
	}
}

func (r *recordingRegistry) OpenDocument(name string) (io.ReadCloser, error) {
	r.mu.Lock()
	r.opens[name]++
	r.mu.Unlock()
	return r.Registry.OpenDocument(name)
}

func (r *recordingRegistry) WriteDocument(name string, write func(w io.Writer) error) error {
	r.mu.Lock()
	r.writes[name]++
	r.inflight[name]++
	if r.inflight[name] > r.maxWrite[name] {
		r.maxWrite[name] = r.inflight[name]
	}
	failErr := r.failing[name]
	delay := r.delay
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inflight[name]--
		r.mu.Unlock()
	}()

	if delay > 0 {
		time.Sleep(delay)
	}
	if failErr != nil {
		// Write part of the document, then fail mid-stream.
		return r.Registry.WriteDocument(name, func(w io.Writer) error {
			_ = write(w)
			return failErr
		})
	}
	return r.Registry.WriteDocument(name, write)
}

func (r *recordingRegistry) Reload(name string) (core.Item, error) {
	r.mu.Lock()
	r.reloads[name]++
	r.mu.Unlock()
	return r.Registry.Reload(name)
}

func (r *recordingRegistry) failWrites(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing[name] = err
}

func (r *recordingRegistry) counts(name string) (opens, writes, reloads int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens[name], r.writes[name], r.reloads[name]
}

func (r *recordingRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opens = make(map[string]int)
	r.writes = make(map[string]int)
	r.reloads = make(map[string]int)
}

// testEnv is an engine over a temp jobs directory and in-memory store.
type testEnv struct {
	engine *Engine
	reg    *recordingRegistry
	store  *state.SQLiteStore
	dir    string
}

// job is a document to seed, with an optional link.
type job struct {
	doc  string
	link *core.TemplateLink
}

func setupEngine(t *testing.T, jobs map[string]job) *testEnv {
	t.Helper()

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })

	dir := t.TempDir()
	for name, j := range jobs {
		writeJob(t, dir, name, j.doc)
		if j.link != nil {
			require.NoError(t, store.SaveLink(name, j.link))
		}
	}

	logger := testutil.NewTestLogger(t)
	fsReg := registry.New(dir, store, logger)
	require.NoError(t, fsReg.Load())
	rec := newRecordingRegistry(fsReg)

	e, err := New(Config{Registry: rec, Store: store, Logger: logger, Concurrency: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return &testEnv{engine: e, reg: rec, store: store, dir: dir}
}

func linkTo(template, vars string) *core.TemplateLink {
	return core.NewTemplateLink(template, params.Parse(vars))
}

func writeJob(t *testing.T, dir, name, doc string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name, registry.DocumentFile), []byte(doc), 0o644))
}

func (env *testEnv) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(env.dir, name, registry.DocumentFile))
	require.NoError(t, err)
	return string(data)
}

func (env *testEnv) template(t *testing.T, name string) *core.TemplateItem {
	t.Helper()
	tmpl, err := env.engine.ResolveTemplate(name)
	require.NoError(t, err)
	return tmpl
}

func (env *testEnv) implementation(t *testing.T, name string) *core.ImplementationItem {
	t.Helper()
	impl, err := env.engine.ResolveImplementation(name)
	require.NoError(t, err)
	return impl
}

// hashRenameFailingStore fails every rendered hash rename.
type hashRenameFailingStore struct {
	*state.SQLiteStore
}

func (s *hashRenameFailingStore) RenameRenderedHash(oldName, newName string) error {
	return errors.New("hash table locked")
}
