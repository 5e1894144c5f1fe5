package core

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNotFound indicates a named item does not exist.
	ErrNotFound = errors.New("not found")
	// ErrWrongKind indicates a named item exists but is the wrong kind.
	ErrWrongKind = errors.New("wrong kind")
	// ErrNotLinked indicates an implementation has no template link.
	ErrNotLinked = errors.New("implementation is not linked to a template")
	// ErrAlreadyExists indicates a create or rename target is taken.
	ErrAlreadyExists = errors.New("already exists")
)

// ResolutionError reports a name that did not resolve to an item of the
// wanted kind. Got is empty when the item does not exist.
type ResolutionError struct {
	Name string
	Want Kind
	Got  Kind
}

func (e *ResolutionError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("project %s does not exist", e.Name)
	}
	return fmt.Sprintf("project %s is not a %s (kind %s)", e.Name, e.Want, e.Got)
}

// Unwrap lets errors.Is match ErrNotFound or ErrWrongKind.
func (e *ResolutionError) Unwrap() error {
	if e.Got == "" {
		return ErrNotFound
	}
	return ErrWrongKind
}
