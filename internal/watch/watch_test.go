package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/tmplsync/internal/engine"
	"github.com/leapstack-labs/tmplsync/internal/registry"
	"github.com/leapstack-labs/tmplsync/internal/testutil"
	"github.com/leapstack-labs/tmplsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSyncer) SyncTemplate(_ context.Context, name string, trigger core.SyncTrigger) (*engine.SyncReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+":"+string(trigger))
	return &engine.SyncReport{Template: name}, nil
}

func (f *fakeSyncer) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func writeJob(t *testing.T, dir, name, doc string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, name), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name, registry.DocumentFile), []byte(doc), 0o644))
}

func setupWatcher(t *testing.T) (*Watcher, *fakeSyncer, string) {
	t.Helper()
	dir := t.TempDir()
	writeJob(t, dir, "tmpl", "kind: template\n")
	writeJob(t, dir, "impl", "kind: implementation\n")
	writeJob(t, dir, "job", "description: plain\n")

	reg := registry.New(dir, nil, nil)
	require.NoError(t, reg.Load())

	syncer := &fakeSyncer{}
	w := New(Config{
		Dir:      dir,
		Registry: reg,
		Syncer:   syncer,
		Debounce: 20 * time.Millisecond,
		Logger:   testutil.NewTestLogger(t),
	})
	return w, syncer, dir
}

func TestDocumentName(t *testing.T) {
	dir := filepath.Join("srv", "jobs")
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{filepath.Join(dir, "web", "job.yaml"), "web", true},
		{filepath.Join(dir, "web", ".job.yaml.123.tmp"), "", false},
		{filepath.Join(dir, "web", "notes.txt"), "", false},
		{filepath.Join(dir, "web"), "", false},
		{filepath.Join(dir, "web", "nested", "job.yaml"), "", false},
		{filepath.Join(dir, ".cache", "job.yaml"), "", false},
		{filepath.Join("elsewhere", "web", "job.yaml"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := DocumentName(dir, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlush_OnlyTemplatesSync(t *testing.T) {
	w, syncer, _ := setupWatcher(t)
	ctx := context.Background()

	w.mu.Lock()
	for _, name := range []string{"tmpl", "impl", "job", "ghost"} {
		w.pending[name] = struct{}{}
	}
	w.mu.Unlock()

	w.Flush(ctx)

	assert.Equal(t, []string{"tmpl:watch"}, syncer.Calls())
	assert.Empty(t, w.Pending())
}

func TestFlush_PicksUpKindChange(t *testing.T) {
	w, syncer, dir := setupWatcher(t)

	// A plain job edited into a template starts syncing.
	writeJob(t, dir, "job", "kind: template\n")
	w.mu.Lock()
	w.pending["job"] = struct{}{}
	w.mu.Unlock()
	w.Flush(context.Background())

	assert.Equal(t, []string{"job:watch"}, syncer.Calls())
}

func TestFlush_ReportsToCallback(t *testing.T) {
	w, _, _ := setupWatcher(t)
	var got []string
	w.cfg.OnSync = func(template string, report *engine.SyncReport, err error) {
		assert.NoError(t, err)
		got = append(got, report.Template)
	}

	w.mu.Lock()
	w.pending["tmpl"] = struct{}{}
	w.mu.Unlock()
	w.Flush(context.Background())

	assert.Equal(t, []string{"tmpl"}, got)
}

func TestRun_DebouncesTemplateEdits(t *testing.T) {
	w, syncer, dir := setupWatcher(t)
	w.cfg.Debounce = 150 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register its directories.
	time.Sleep(50 * time.Millisecond)

	for range 3 {
		writeJob(t, dir, "tmpl", "kind: template\ndescription: edited\n")
	}
	writeJob(t, dir, "impl", "kind: implementation\ndescription: synced\n")

	assert.Eventually(t, func() bool {
		return len(syncer.Calls()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Edits inside the quiet period collapse into a single sync.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, []string{"tmpl:watch"}, syncer.Calls())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRun_MissingDir(t *testing.T) {
	w := New(Config{Dir: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, w.Run(context.Background()))
}
