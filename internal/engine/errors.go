package engine

import (
	"fmt"

	"github.com/leapstack-labs/tmplsync/pkg/core"
)

// SyncError reports a failed sync of one implementation. The
// implementation's document is unchanged when a SyncError is returned.
type SyncError struct {
	Implementation string
	Template       string
	Err            error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s from template %s: %v", e.Implementation, e.Template, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// ValidationError is a user-facing form check failure. Message is shown
// verbatim.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// errTemplateRequired is wrapped by the validation error for a blank name.
var errTemplateRequired = fmt.Errorf("template name is required: %w", core.ErrNotFound)
