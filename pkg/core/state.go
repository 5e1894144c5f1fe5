package core

import "time"

// Store defines the interface for state management operations.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Link operations
	LinkStore

	// Sync run operations
	CreateSyncRun(template string, trigger SyncTrigger) (*SyncRun, error)
	GetSyncRun(id string) (*SyncRun, error)
	CompleteSyncRun(id string, status RunStatus, errMsg string) error
	ListSyncRuns(template string, limit int) ([]*SyncRun, error)

	// Per-implementation results
	RecordImplementationSync(result *ImplementationSync) error
	GetImplementationSyncs(runID string) ([]*ImplementationSync, error)

	// Rendered document hashes
	GetRenderedHash(implementation string) (string, error)
	SetRenderedHash(implementation, hash string) error
	RenameRenderedHash(oldName, newName string) error
}

// RunStatus represents the status of a sync run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// SyncTrigger records what started a sync run.
type SyncTrigger string

// Trigger constants.
const (
	TriggerTemplateSaved SyncTrigger = "template_saved"
	TriggerManual        SyncTrigger = "manual"
	TriggerWatch         SyncTrigger = "watch"
	TriggerAPI           SyncTrigger = "api"
)

// SyncRun represents one fan-out of a template to its implementations.
type SyncRun struct {
	ID          string      `json:"id"`
	Template    string      `json:"template"`
	Trigger     SyncTrigger `json:"trigger"`
	Status      RunStatus   `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ImplementationSyncStatus is the outcome for one implementation in a run.
type ImplementationSyncStatus string

// Implementation sync status constants.
const (
	ImplementationSyncSuccess   ImplementationSyncStatus = "success"
	ImplementationSyncUnchanged ImplementationSyncStatus = "unchanged"
	ImplementationSyncFailed    ImplementationSyncStatus = "failed"
	ImplementationSyncSkipped   ImplementationSyncStatus = "skipped"
)

// ImplementationSync is the record of one implementation within a run.
type ImplementationSync struct {
	RunID          string                   `json:"run_id"`
	Implementation string                   `json:"implementation"`
	Status         ImplementationSyncStatus `json:"status"`
	ContentHash    string                   `json:"content_hash,omitempty"`
	Error          string                   `json:"error,omitempty"`
	DurationMS     int64                    `json:"duration_ms"`
	SyncedAt       time.Time                `json:"synced_at"`
}
