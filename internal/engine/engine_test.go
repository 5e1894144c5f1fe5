package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/tmplsync/pkg/core"
	"github.com/leapstack-labs/tmplsync/pkg/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseTemplate = `kind: template
description: Build $$BRANCH
workspace: /srv/builds/$$BRANCH
env:
  DEPLOY_ENV: $$ENV
  TOKEN: $$UNSET
steps:
  - name: checkout
    run: git checkout $$BRANCH
`

func TestNew_OpensStoreAndLoadsJobs(t *testing.T) {
	dir := t.TempDir()
	jobsDir := filepath.Join(dir, "jobs")
	writeJob(t, jobsDir, "base", "kind: template\n")

	e, err := New(Config{
		JobsDir:   jobsDir,
		StatePath: filepath.Join(dir, ".tmplsync", "state.db"),
	})
	require.NoError(t, err)
	defer e.Close()

	assert.Len(t, e.Templates(), 1)
	_, err = os.Stat(filepath.Join(dir, ".tmplsync", "state.db"))
	assert.NoError(t, err)
}

func TestNew_MissingJobsDir(t *testing.T) {
	_, err := New(Config{JobsDir: filepath.Join(t.TempDir(), "nope"), StatePath: ":memory:"})
	assert.Error(t, err)
}

func TestSyncOne_RendersDocument(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"base":    {doc: baseTemplate},
		"base-eu": {doc: "kind: implementation\n", link: linkTo("base", "BRANCH=release-2\nENV=eu")},
	})

	err := env.engine.SyncOne(context.Background(), env.template(t, "base"), env.implementation(t, "base-eu"))
	require.NoError(t, err)

	want := `kind: implementation
description: Build release-2
workspace: /srv/builds/release-2
env:
  DEPLOY_ENV: eu
  TOKEN: $$UNSET
steps:
  - name: checkout
    run: git checkout release-2
`
	assert.Equal(t, want, env.read(t, "base-eu"))

	impl := env.implementation(t, "base-eu")
	assert.Equal(t, "/srv/builds/release-2", impl.Spec().Workspace)
	assert.True(t, impl.Implements("base"), "link survives reload")

	hash, err := env.store.GetRenderedHash("base-eu")
	require.NoError(t, err)
	sum := sha256.Sum256([]byte(env.read(t, "base-eu")))
	assert.Equal(t, hex.EncodeToString(sum[:]), hash, "stored hash describes the written document")
}

func TestSyncOne_NoOps(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"base":     {doc: baseTemplate},
		"unlinked": {doc: "kind: implementation\n"},
	})
	ctx := context.Background()
	tmpl := env.template(t, "base")
	unlinked := env.implementation(t, "unlinked")

	assert.NoError(t, env.engine.SyncOne(ctx, nil, unlinked))
	assert.NoError(t, env.engine.SyncOne(ctx, tmpl, nil))
	assert.NoError(t, env.engine.SyncOne(ctx, tmpl, unlinked))

	_, writes, _ := env.reg.counts("unlinked")
	assert.Zero(t, writes)
	assert.Equal(t, "kind: implementation\n", env.read(t, "unlinked"))
}

func TestSyncOne_Substitution(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars string
		want string
	}{
		{
			name: "unresolved token passes through",
			tmpl: "kind: template\ndescription: $$A and $$MISSING\n",
			vars: "A=1",
			want: "kind: implementation\ndescription: 1 and $$MISSING\n",
		},
		{
			name: "prefix names do not collide",
			tmpl: "kind: template\ndescription: $$A $$AB $$A_B\n",
			vars: "A=x\nAB=y",
			want: "kind: implementation\ndescription: x y $$A_B\n",
		},
		{
			name: "substituted values are not expanded again",
			tmpl: "kind: template\ndescription: $$A then $$B\n",
			vars: "A=$$B\nB=done",
			want: "kind: implementation\ndescription: $$B then done\n",
		},
		{
			name: "value with equals and regexp metacharacters",
			tmpl: "kind: template\ndescription: \"$$Q\"\n",
			vars: "Q=a=b.*$1",
			want: "kind: implementation\ndescription: \"a=b.*$1\"\n",
		},
		{
			name: "quoted identity tag with comment",
			tmpl: "kind: 'template'  # shared\ndescription: x\n",
			vars: "",
			want: "kind: implementation\ndescription: x\n",
		},
		{
			name: "nested kind keys are untouched",
			tmpl: "kind: template\nenv:\n  kind: template\n",
			vars: "",
			want: "kind: implementation\nenv:\n  kind: template\n",
		},
		{
			name: "crlf line endings preserved",
			tmpl: "kind: template\r\ndescription: $$A\r\n",
			vars: "A=1",
			want: "kind: implementation\r\ndescription: 1\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEngine(t, map[string]job{
				"tmpl": {doc: tt.tmpl},
				"impl": {doc: "kind: implementation\n", link: linkTo("tmpl", tt.vars)},
			})

			err := env.engine.SyncOne(context.Background(), env.template(t, "tmpl"), env.implementation(t, "impl"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.read(t, "impl"))
		})
	}
}

func TestSyncAll_Isolation(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T":  {doc: "kind: template\ndescription: $$X\n"},
		"T2": {doc: "kind: template\ndescription: other $$X\n"},
		"I1": {doc: "kind: implementation\n", link: linkTo("T", "X=one")},
		"I2": {doc: "kind: implementation\n", link: linkTo("T2", "X=two")},
		"B":  {doc: "description: bystander $$X\n"},
	})
	env.reg.reset()

	report, err := env.engine.SyncAll(context.Background(), env.template(t, "T"), core.TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, []string{"I1"}, report.Synced)
	assert.Equal(t, 4, report.Skipped)
	assert.Empty(t, report.Failed)

	_, writes, _ := env.reg.counts("I1")
	assert.Equal(t, 1, writes)

	for _, name := range []string{"I2", "B"} {
		opens, writes, reloads := env.reg.counts(name)
		assert.Zero(t, opens, "%s opened", name)
		assert.Zero(t, writes, "%s written", name)
		assert.Zero(t, reloads, "%s reloaded", name)
	}

	assert.Equal(t, "kind: implementation\ndescription: one\n", env.read(t, "I1"))
	assert.Equal(t, "kind: implementation\n", env.read(t, "I2"))
	assert.Equal(t, "description: bystander $$X\n", env.read(t, "B"))
}

func TestSyncAll_Idempotent(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T":  {doc: baseTemplate},
		"I1": {doc: "kind: implementation\n", link: linkTo("T", "BRANCH=main\nENV=prod")},
	})
	ctx := context.Background()

	first, err := env.engine.SyncAll(ctx, env.template(t, "T"), core.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"I1"}, first.Synced)
	after := env.read(t, "I1")

	second, err := env.engine.SyncAll(ctx, env.template(t, "T"), core.TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, []string{"I1"}, second.Unchanged)
	assert.Empty(t, second.Synced)
	assert.Equal(t, after, env.read(t, "I1"))

	_, writes, _ := env.reg.counts("I1")
	assert.Equal(t, 1, writes, "unchanged document is not rewritten")
}

func TestSyncAll_BestEffortAndAtomic(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T":    {doc: "kind: template\ndescription: $$X\n"},
		"good": {doc: "kind: implementation\n", link: linkTo("T", "X=ok")},
		"bad":  {doc: "kind: implementation\ndescription: old\n", link: linkTo("T", "X=nope")},
	})
	env.reg.failWrites("bad", errors.New("disk full"))

	report, err := env.engine.SyncAll(context.Background(), env.template(t, "T"), core.TriggerManual)
	require.Error(t, err)

	var serr *SyncError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "bad", serr.Implementation)
	assert.Equal(t, "T", serr.Template)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, []string{"good"}, report.Synced)
	assert.Equal(t, []string{"bad"}, report.FailedNames())
	assert.Equal(t, "kind: implementation\ndescription: old\n", env.read(t, "bad"), "failed sync leaves old document")
	assert.Equal(t, "kind: implementation\ndescription: ok\n", env.read(t, "good"))

	entries, err := os.ReadDir(filepath.Join(env.dir, "bad"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")

	run, err := env.store.GetSyncRun(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusPartial, run.Status)

	results, err := env.engine.RunResults(report.RunID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.ImplementationSyncFailed, results[0].Status)
	assert.Equal(t, core.ImplementationSyncSuccess, results[1].Status)
}

func TestSyncAll_RejectsKindChange(t *testing.T) {
	// A flow-style kind is not rewritten by the identity rule, so the
	// rendered document would still be a template. The write is refused.
	env := setupEngine(t, map[string]job{
		"T": {doc: "{kind: template, description: $$X}\n"},
		"I": {doc: "kind: implementation\n", link: linkTo("T", "X=1")},
	})

	report, err := env.engine.SyncAll(context.Background(), env.template(t, "T"), core.TriggerManual)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrWrongKind))
	assert.Equal(t, []string{"I"}, report.FailedNames())
	assert.Equal(t, "kind: implementation\n", env.read(t, "I"))

	run, err := env.store.GetSyncRun(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, run.Status)
}

func TestSyncAll_NilTemplate(t *testing.T) {
	env := setupEngine(t, nil)
	report, err := env.engine.SyncAll(context.Background(), nil, core.TriggerManual)
	require.NoError(t, err)
	assert.Zero(t, report.Total())
}

func TestSyncAll_Cancelled(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T": {doc: "kind: template\n"},
		"I": {doc: "kind: implementation\ndescription: old\n", link: linkTo("T", "")},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := env.engine.SyncAll(ctx, env.template(t, "T"), core.TriggerManual)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	run, err := env.store.GetSyncRun(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCancelled, run.Status)
	assert.Equal(t, "kind: implementation\ndescription: old\n", env.read(t, "I"))
}

func TestSyncOne_SerializesPerImplementation(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T": {doc: "kind: template\ndescription: $$V\n"},
		"I": {doc: "kind: implementation\n", link: linkTo("T", "V=start")},
	})
	env.reg.delay = 2 * time.Millisecond

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vars := params.New()
			_ = vars.Set("V", fmt.Sprintf("v%d", i))
			_, err := env.engine.UpdateVariables(ctx, "I", vars)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	env.reg.mu.Lock()
	maxInflight := env.reg.maxWrite["I"]
	env.reg.mu.Unlock()
	assert.Equal(t, 1, maxInflight, "writes to one implementation never overlap")
	assert.Zero(t, env.engine.locks.Len())

	doc := env.read(t, "I")
	assert.Regexp(t, `^kind: implementation\ndescription: v\d\n$`, doc)
}

func TestPersistAndPropagate(t *testing.T) {
	t.Run("template fans out", func(t *testing.T) {
		env := setupEngine(t, map[string]job{
			"T":  {doc: "kind: template\ndescription: $$X\n"},
			"I1": {doc: "kind: implementation\n", link: linkTo("T", "X=1")},
			"I2": {doc: "kind: implementation\n", link: linkTo("T", "X=2")},
		})
		report, err := env.engine.PersistAndPropagate(context.Background(), env.template(t, "T"), core.TriggerTemplateSaved)
		require.NoError(t, err)
		assert.Equal(t, []string{"I1", "I2"}, report.Synced)
	})

	t.Run("implementation save discards local edits", func(t *testing.T) {
		env := setupEngine(t, map[string]job{
			"T": {doc: "kind: template\ndescription: $$X\n"},
			"I": {doc: "kind: implementation\ndescription: hand edited\n", link: linkTo("T", "X=1")},
		})
		report, err := env.engine.PersistAndPropagate(context.Background(), env.implementation(t, "I"), core.TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, []string{"I"}, report.Synced)
		assert.Equal(t, "kind: implementation\ndescription: 1\n", env.read(t, "I"))
	})

	t.Run("unlinked implementation", func(t *testing.T) {
		env := setupEngine(t, map[string]job{"I": {doc: "kind: implementation\n"}})
		_, err := env.engine.PersistAndPropagate(context.Background(), env.implementation(t, "I"), core.TriggerManual)
		assert.True(t, errors.Is(err, core.ErrNotLinked))
	})

	t.Run("link to missing template", func(t *testing.T) {
		env := setupEngine(t, map[string]job{
			"I": {doc: "kind: implementation\n", link: linkTo("gone", "")},
		})
		_, err := env.engine.PersistAndPropagate(context.Background(), env.implementation(t, "I"), core.TriggerManual)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})

	t.Run("other items are only persisted", func(t *testing.T) {
		env := setupEngine(t, map[string]job{"B": {doc: "description: plain\n"}})
		item, _ := env.engine.Registry().ItemByName("B")
		report, err := env.engine.PersistAndPropagate(context.Background(), item, core.TriggerManual)
		require.NoError(t, err)
		assert.Zero(t, report.Total())
	})
}

func TestPersist_DoesNotPropagate(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T": {doc: "kind: template\ndescription: $$X\n"},
		"I": {doc: "kind: implementation\n", link: linkTo("T", "X=1")},
	})
	env.reg.reset()

	require.NoError(t, env.engine.Persist(env.template(t, "T")))
	require.NoError(t, env.engine.Persist(env.implementation(t, "I")))

	_, writes, _ := env.reg.counts("I")
	assert.Zero(t, writes)
	runs, err := env.engine.History("", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestOnTemplateSaved(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T": {doc: "kind: template\ndescription: $$X\n"},
		"I": {doc: "kind: implementation\n", link: linkTo("T", "X=1")},
	})
	ctx := context.Background()

	writeJob(t, env.dir, "T", "kind: template\ndescription: edited $$X\n")
	report, err := env.engine.OnTemplateSaved(ctx, "T")
	require.NoError(t, err)
	assert.Equal(t, []string{"I"}, report.Synced)
	assert.Equal(t, "kind: implementation\ndescription: edited 1\n", env.read(t, "I"))

	runs, err := env.engine.History("T", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, core.TriggerTemplateSaved, runs[0].Trigger)
	assert.Equal(t, core.RunStatusCompleted, runs[0].Status)

	_, err = env.engine.OnTemplateSaved(ctx, "I")
	assert.True(t, errors.Is(err, core.ErrWrongKind))
	_, err = env.engine.OnTemplateSaved(ctx, "nope")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestRenderAndPersist(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T": {doc: "kind: template\ndescription: $$X\n"},
		"B": {doc: "description: plain\n"},
	})
	ctx := context.Background()

	require.NoError(t, env.engine.RenderAndPersist(ctx, "T", "fresh", params.Parse("X=42")))
	assert.Equal(t, "kind: implementation\ndescription: 42\n", env.read(t, "fresh"))

	link, err := env.store.GetLink("fresh")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "T", link.TemplateName)
	assert.Equal(t, "X=42\n", link.VariablesText())

	// Re-rendering an existing implementation replaces its variables.
	require.NoError(t, env.engine.RenderAndPersist(ctx, "T", "fresh", params.Parse("X=43")))
	assert.Equal(t, "kind: implementation\ndescription: 43\n", env.read(t, "fresh"))

	err = env.engine.RenderAndPersist(ctx, "T", "B", params.Parse("X=1"))
	assert.True(t, errors.Is(err, core.ErrWrongKind))
	assert.Equal(t, "description: plain\n", env.read(t, "B"))

	err = env.engine.RenderAndPersist(ctx, "missing", "x", nil)
	var re *core.ResolutionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "missing", re.Name)
}

func TestLinkAndUpdateVariables(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T":  {doc: "kind: template\ndescription: $$X\n"},
		"T2": {doc: "kind: template\ndescription: second $$X\n"},
		"I":  {doc: "kind: implementation\n"},
		"I2": {doc: "kind: implementation\ndescription: untouched\n", link: linkTo("T", "X=9")},
	})
	ctx := context.Background()

	_, err := env.engine.UpdateVariables(ctx, "I", params.Parse("X=1"))
	assert.True(t, errors.Is(err, core.ErrNotLinked))

	report, err := env.engine.Link(ctx, "I", "T", params.Parse("X=1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"I"}, report.Synced)
	assert.Equal(t, "kind: implementation\ndescription: 1\n", env.read(t, "I"))

	env.reg.reset()
	_, err = env.engine.UpdateVariables(ctx, "I", params.Parse("X=2"))
	require.NoError(t, err)
	assert.Equal(t, "kind: implementation\ndescription: 2\n", env.read(t, "I"))

	_, writes, _ := env.reg.counts("I2")
	assert.Zero(t, writes, "updating one implementation does not touch siblings")

	_, err = env.engine.Link(ctx, "I", "T2", params.Parse("X=3"))
	require.NoError(t, err)
	assert.Equal(t, "kind: implementation\ndescription: second 3\n", env.read(t, "I"))
	assert.True(t, env.implementation(t, "I").Implements("T2"))

	_, err = env.engine.Link(ctx, "T2", "T", nil)
	assert.True(t, errors.Is(err, core.ErrWrongKind))
}

func TestRename(t *testing.T) {
	t.Run("template rename repoints links", func(t *testing.T) {
		env := setupEngine(t, map[string]job{
			"T":  {doc: "kind: template\ndescription: $$X\n"},
			"I1": {doc: "kind: implementation\n", link: linkTo("T", "X=1")},
			"I2": {doc: "kind: implementation\n", link: linkTo("other", "X=2")},
		})
		ctx := context.Background()

		require.NoError(t, env.engine.Rename(ctx, "T", "T-new"))

		_, ok := env.engine.Registry().ItemByName("T")
		assert.False(t, ok)
		assert.True(t, env.implementation(t, "I1").Implements("T-new"))
		assert.True(t, env.implementation(t, "I2").Implements("other"))

		writeJob(t, env.dir, "T-new", "kind: template\ndescription: renamed $$X\n")
		report, err := env.engine.OnTemplateSaved(ctx, "T-new")
		require.NoError(t, err)
		assert.Equal(t, []string{"I1"}, report.Synced)
		assert.Equal(t, "kind: implementation\ndescription: renamed 1\n", env.read(t, "I1"))
	})

	t.Run("implementation rename keeps its link", func(t *testing.T) {
		env := setupEngine(t, map[string]job{
			"T": {doc: "kind: template\ndescription: $$X\n"},
			"I": {doc: "kind: implementation\n", link: linkTo("T", "X=1")},
		})
		ctx := context.Background()
		_, err := env.engine.SyncAll(ctx, env.template(t, "T"), core.TriggerManual)
		require.NoError(t, err)

		require.NoError(t, env.engine.Rename(ctx, "I", "I-renamed"))

		assert.True(t, env.implementation(t, "I-renamed").Implements("T"))
		old, err := env.store.GetLink("I")
		require.NoError(t, err)
		assert.Nil(t, old)
		hash, err := env.store.GetRenderedHash("I-renamed")
		require.NoError(t, err)
		assert.NotEmpty(t, hash)
	})

	t.Run("errors", func(t *testing.T) {
		env := setupEngine(t, map[string]job{
			"A": {doc: "kind: template\n"},
			"B": {doc: "kind: template\n"},
		})
		ctx := context.Background()
		assert.True(t, errors.Is(env.engine.Rename(ctx, "missing", "x"), core.ErrNotFound))
		assert.True(t, errors.Is(env.engine.Rename(ctx, "A", "B"), core.ErrAlreadyExists))
		assert.NoError(t, env.engine.Rename(ctx, "A", "A"))
	})
}

func TestExtractVariableNames(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T": {doc: "kind: template\ndescription: $$A foo $$B $$A\n"},
		"I": {doc: "kind: implementation\ndescription: $$C\n"},
	})

	names, err := env.engine.ExtractVariableNames("T")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names)

	for _, name := range []string{"I", "missing"} {
		names, err := env.engine.ExtractVariableNames(name)
		require.NoError(t, err)
		assert.Empty(t, names)
	}

	// Variables are read from the document on every call.
	writeJob(t, env.dir, "T", "kind: template\ndescription: $$Z\n")
	names, err = env.engine.ExtractVariableNames("T")
	require.NoError(t, err)
	assert.Equal(t, []string{"Z"}, names)
}

func TestValidateTemplateName(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T": {doc: "kind: template\n"},
		"I": {doc: "kind: implementation\n"},
	})

	tests := []struct {
		name    string
		input   string
		wantMsg string
		wantIs  error
	}{
		{name: "valid", input: "T"},
		{name: "blank", input: "  ", wantMsg: "Template is a required field.", wantIs: core.ErrNotFound},
		{name: "missing", input: "ghost", wantMsg: "Project ghost does not exist.", wantIs: core.ErrNotFound},
		{name: "not a template", input: "I", wantMsg: "Project I is not a template.", wantIs: core.ErrWrongKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.engine.ValidateTemplateName(tt.input)
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.True(t, errors.Is(err, tt.wantIs))
		})
	}
}

func TestScaffold(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"web": {doc: "kind: template\ndescription: $$HOST\n"},
		"api": {doc: "kind: template\ndescription: $$PORT $$HOST\n"},
	})

	req := ScaffoldRequest{
		Templates: []string{"web", "api", "ghost"},
		Variables: map[string]*params.Params{
			"web": params.Parse("HOST=example.org\nUNUSED=1"),
			"api": params.Parse("PORT=8080"),
		},
	}
	result, err := env.engine.Scaffold(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, map[string]string{"web": "webImpl", "api": "apiImpl"}, result.Created)
	require.Contains(t, result.Failed, "ghost")
	assert.Equal(t, "Project ghost does not exist.", result.Failed["ghost"].Error())

	assert.Equal(t, "kind: implementation\ndescription: example.org\n", env.read(t, "webImpl"))
	assert.Equal(t, "kind: implementation\ndescription: 8080 $$HOST\n", env.read(t, "apiImpl"))

	link, err := env.store.GetLink("webImpl")
	require.NoError(t, err)
	assert.Equal(t, []string{"HOST"}, link.Variables.Keys(), "unused variables are dropped")
}

func TestScaffoldRequest_ImplementationName(t *testing.T) {
	assert.Equal(t, "webImpl", ScaffoldRequest{}.ImplementationName("web"))
	assert.Equal(t, "prod-webImpl", ScaffoldRequest{Prefix: "prod-"}.ImplementationName("web"))
	assert.Equal(t, "web-eu", ScaffoldRequest{Suffix: "-eu"}.ImplementationName("web"))
	assert.Equal(t, "a-web-b", ScaffoldRequest{Prefix: "a-", Suffix: "-b"}.ImplementationName("web"))
}

func TestTemplatesAndImplementations(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"b-tmpl": {doc: "kind: template\n"},
		"a-tmpl": {doc: "kind: template\n"},
		"impl":   {doc: "kind: implementation\n", link: linkTo("a-tmpl", "")},
		"job":    {doc: "description: x\n"},
	})

	var names []string
	for _, tmpl := range env.engine.Templates() {
		names = append(names, tmpl.Name())
	}
	assert.Equal(t, []string{"a-tmpl", "b-tmpl"}, names)

	impls := env.engine.Implementations("a-tmpl")
	require.Len(t, impls, 1)
	assert.Equal(t, "impl", impls[0].Name())
	assert.Empty(t, env.engine.Implementations("b-tmpl"))
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.Len())

	acquired := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock of the same key acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
	assert.Eventually(t, func() bool { return k.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestSyncTemplate_ReloadsEditedTemplate(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"base":    {doc: baseTemplate},
		"base-eu": {doc: "kind: implementation\n", link: linkTo("base", "BRANCH=main\nENV=eu")},
		"nightly": {doc: "description: $$BRANCH\n"},
	})
	ctx := context.Background()

	writeJob(t, env.dir, "base", baseTemplate+"labels: [$$ENV]\n")
	report, err := env.engine.SyncTemplate(ctx, "base", core.TriggerAPI)
	require.NoError(t, err)
	assert.Equal(t, []string{"base-eu"}, report.Synced)
	assert.Equal(t, 2, report.Skipped, "the template and the plain job")
	assert.Contains(t, env.read(t, "base-eu"), "labels: [eu]")

	_, writes, reloads := env.reg.counts("nightly")
	assert.Zero(t, writes)
	assert.Zero(t, reloads)

	runs, err := env.engine.History("base", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, core.TriggerAPI, runs[0].Trigger)

	_, err = env.engine.SyncTemplate(ctx, "nightly", core.TriggerAPI)
	assert.ErrorIs(t, err, core.ErrWrongKind)
	_, err = env.engine.SyncTemplate(ctx, "ghost", core.TriggerAPI)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSaveItem(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"base":    {doc: baseTemplate},
		"base-eu": {doc: "kind: implementation\n", link: linkTo("base", "BRANCH=main\nENV=eu")},
		"orphan":  {doc: "kind: implementation\n", link: linkTo("gone", "BRANCH=main")},
		"nightly": {doc: "description: plain\n"},
	})
	ctx := context.Background()

	t.Run("implementation discards local edits", func(t *testing.T) {
		writeJob(t, env.dir, "base-eu", "kind: implementation\ndescription: hand edited\n")
		report, err := env.engine.SaveItem(ctx, "base-eu", core.TriggerManual)
		require.NoError(t, err)
		assert.Equal(t, []string{"base-eu"}, report.Synced)
		assert.Contains(t, env.read(t, "base-eu"), "description: Build main")
	})

	t.Run("other item is only reloaded", func(t *testing.T) {
		env.reg.reset()
		report, err := env.engine.SaveItem(ctx, "nightly", core.TriggerManual)
		require.NoError(t, err)
		assert.Empty(t, report.Template)
		_, writes, reloads := env.reg.counts("nightly")
		assert.Zero(t, writes)
		assert.Equal(t, 1, reloads)
	})

	t.Run("link to missing template", func(t *testing.T) {
		_, err := env.engine.SaveItem(ctx, "orphan", core.TriggerManual)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := env.engine.SaveItem(ctx, "ghost", core.TriggerManual)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestCreateItem(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"base": {doc: baseTemplate},
	})

	item, err := env.engine.CreateItem("deploy", strings.NewReader("kind: template\ndescription: $$X\n"))
	require.NoError(t, err)
	assert.IsType(t, &core.TemplateItem{}, item)
	assert.Len(t, env.engine.Templates(), 2)

	item, err = env.engine.CreateItem("deploy-eu", strings.NewReader("kind: implementation\n"))
	require.NoError(t, err)
	impl, ok := item.(*core.ImplementationItem)
	require.True(t, ok)
	assert.Nil(t, impl.Link, "created implementations start unlinked")

	_, err = env.engine.CreateItem("base", strings.NewReader("kind: job\n"))
	assert.ErrorIs(t, err, core.ErrAlreadyExists)
	assert.Equal(t, baseTemplate, env.read(t, "base"))
}

func TestSyncOne_StaleImplementationAfterRelink(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T": {doc: "kind: template\nfrom: T $$X\n"},
		"U": {doc: "kind: template\nfrom: U $$X\n"},
		"I": {doc: "kind: implementation\n", link: linkTo("T", "X=1")},
	})
	ctx := context.Background()

	stale := env.implementation(t, "I")
	_, err := env.engine.Link(ctx, "I", "U", params.Parse("X=2"))
	require.NoError(t, err)
	require.Equal(t, "kind: implementation\nfrom: U 2\n", env.read(t, "I"))
	env.reg.reset()

	require.NoError(t, env.engine.SyncOne(ctx, env.template(t, "T"), stale))
	assert.Equal(t, "kind: implementation\nfrom: U 2\n", env.read(t, "I"))
	_, writes, _ := env.reg.counts("I")
	assert.Zero(t, writes)

	link, err := env.store.GetLink("I")
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, "U", link.TemplateName)

	report, err := env.engine.runSync(ctx, env.template(t, "T"), []syncTarget{{impl: stale}}, 0, core.TriggerManual)
	require.NoError(t, err)
	assert.Empty(t, report.Synced)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "kind: implementation\nfrom: U 2\n", env.read(t, "I"))
}

func TestUpdateVariables_FailedRenderKeepsLink(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T": {doc: "kind: template\ndescription: $$X\n"},
		"I": {doc: "kind: implementation\n", link: linkTo("T", "X=ok")},
	})
	ctx := context.Background()
	_, err := env.engine.SyncAll(ctx, env.template(t, "T"), core.TriggerManual)
	require.NoError(t, err)
	before := env.read(t, "I")

	report, err := env.engine.UpdateVariables(ctx, "I", params.Parse("X=[oops"))
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Contains(t, report.Failed, "I")

	assert.Equal(t, before, env.read(t, "I"))
	link, err := env.store.GetLink("I")
	require.NoError(t, err)
	require.NotNil(t, link)
	x, _ := link.Variables.Get("X")
	assert.Equal(t, "ok", x)
	x, _ = env.implementation(t, "I").Link.Variables.Get("X")
	assert.Equal(t, "ok", x)

	err = env.engine.RenderAndPersist(ctx, "T", "I", params.Parse("X=[oops"))
	require.Error(t, err)
	link, err = env.store.GetLink("I")
	require.NoError(t, err)
	x, _ = link.Variables.Get("X")
	assert.Equal(t, "ok", x)
}

func TestRename_RollsBackLinkWhenHashRenameFails(t *testing.T) {
	env := setupEngine(t, map[string]job{
		"T": {doc: "kind: template\ndescription: $$X\n"},
		"I": {doc: "kind: implementation\n", link: linkTo("T", "X=1")},
	})
	ctx := context.Background()
	_, err := env.engine.SyncAll(ctx, env.template(t, "T"), core.TriggerManual)
	require.NoError(t, err)

	env.engine.store = &hashRenameFailingStore{SQLiteStore: env.store}
	err = env.engine.Rename(ctx, "I", "I-renamed")
	require.Error(t, err)

	link, err := env.store.GetLink("I")
	require.NoError(t, err)
	require.NotNil(t, link, "link stays under the old name")
	assert.Equal(t, "T", link.TemplateName)
	moved, err := env.store.GetLink("I-renamed")
	require.NoError(t, err)
	assert.Nil(t, moved)

	_, ok := env.engine.Registry().ItemByName("I")
	assert.True(t, ok)
	_, ok = env.engine.Registry().ItemByName("I-renamed")
	assert.False(t, ok)
}
