// Package state persists template links and sync history in SQLite.
//
// Core types are defined in pkg/core. This package re-exports the ones its
// callers use most via type aliases.
package state

import (
	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// Type aliases for the persisted types defined in pkg/core.
type (
	// Store is an alias for core.Store.
	Store = core.Store

	// RunStatus is an alias for core.RunStatus.
	RunStatus = core.RunStatus

	// SyncRun is an alias for core.SyncRun.
	SyncRun = core.SyncRun

	// ImplementationSync is an alias for core.ImplementationSync.
	ImplementationSync = core.ImplementationSync
)

// Re-export status constants from core.
const (
	RunStatusRunning   = core.RunStatusRunning
	RunStatusCompleted = core.RunStatusCompleted
	RunStatusPartial   = core.RunStatusPartial
	RunStatusFailed    = core.RunStatusFailed
	RunStatusCancelled = core.RunStatusCancelled
)

var _ core.Store = (*SQLiteStore)(nil)
