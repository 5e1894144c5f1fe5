// Package engine coordinates template synchronization.
// It renders implementations from their templates, fans template edits out
// to every linked implementation, and records each pass in the state store.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/tmplsync/internal/registry"
	"github.com/leapstack-labs/tmplsync/internal/state"
	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// DefaultConcurrency is the number of implementations synced in parallel
// when Config.Concurrency is not set.
const DefaultConcurrency = 4

// Engine is the sync coordinator.
type Engine struct {
	registry core.Registry
	store    core.Store
	logger   *slog.Logger

	concurrency int
	locks       *keyedMutex

	// ownsStore is set when the engine opened the store itself.
	ownsStore bool
}

// Config holds engine configuration.
type Config struct {
	// JobsDir is the directory holding one sub-directory per job
	JobsDir string
	// StatePath is the path to the SQLite state database
	StatePath string
	// Concurrency bounds parallel implementation syncs (default 4)
	Concurrency int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger

	// Registry and Store replace the filesystem registry and SQLite store
	// built from JobsDir and StatePath.
	Registry core.Registry
	Store    core.Store
}

// New creates an engine. Unless supplied in cfg, it opens the state store
// at StatePath and loads the registry from JobsDir.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "jobs_dir", cfg.JobsDir, "state_path", cfg.StatePath)

	e := &Engine{
		registry:    cfg.Registry,
		store:       cfg.Store,
		logger:      logger,
		concurrency: cfg.Concurrency,
		locks:       newKeyedMutex(),
	}
	if e.concurrency <= 0 {
		e.concurrency = DefaultConcurrency
	}

	if e.store == nil {
		if cfg.StatePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.StatePath), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
		store := state.NewSQLiteStore(logger)
		if err := store.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := store.InitSchema(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize state schema: %w", err)
		}
		e.store = store
		e.ownsStore = true
	}

	if e.registry == nil {
		reg := registry.New(cfg.JobsDir, e.store, logger)
		if err := reg.Load(); err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("failed to load jobs: %w", err)
		}
		e.registry = reg
	}

	return e, nil
}

// Close releases the state store if the engine opened it.
func (e *Engine) Close() error {
	if e.ownsStore && e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Registry returns the item registry.
func (e *Engine) Registry() core.Registry {
	return e.registry
}

// Store returns the state store.
func (e *Engine) Store() core.Store {
	return e.store
}

// History returns recent sync runs, newest first. An empty template lists
// every template's runs.
func (e *Engine) History(template string, limit int) ([]*core.SyncRun, error) {
	return e.store.ListSyncRuns(template, limit)
}

// RunResults returns the per-implementation results of a run.
func (e *Engine) RunResults(runID string) ([]*core.ImplementationSync, error) {
	return e.store.GetImplementationSyncs(runID)
}
