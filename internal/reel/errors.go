package reel

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below match these with errors.Is so callers
// can branch on the class without caring about the concrete type.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrPermission       = errors.New("permission denied")
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidState     = errors.New("invalid command state")
	ErrInvalidCommand   = errors.New("invalid command")
	ErrNothingToUndo    = errors.New("nothing to undo")
	ErrNotEmpty         = errors.New("directory not empty")
)

// NotFoundError reports a file or directory that an operation required but
// which was absent.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.Path) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AlreadyExistsError reports a collision with an existing path. Moves use it
// for the destination-exists case instead of overwriting.
type AlreadyExistsError struct {
	Path string
}

func (e *AlreadyExistsError) Error() string { return fmt.Sprintf("already exists: %s", e.Path) }

func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// AccessMode names the kind of access a permission probe checked.
type AccessMode string

const (
	AccessRead  AccessMode = "read"
	AccessWrite AccessMode = "write"
)

// PermissionError reports which path and which access mode was denied.
type PermissionError struct {
	Path string
	Mode AccessMode
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s permission denied: %s", e.Mode, e.Path)
}

func (e *PermissionError) Is(target error) bool { return target == ErrPermission }

// MissingParameterError names the required source parameters that could not
// be supplied.
type MissingParameterError struct {
	Source string
	Params []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("source %q missing required parameter(s): %s", e.Source, strings.Join(e.Params, ", "))
}

func (e *MissingParameterError) Is(target error) bool { return target == ErrMissingParameter }

// StateError reports an operation invoked out of lifecycle order, such as
// undoing a command that was never executed.
type StateError struct {
	Op    string
	State CommandState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s command in state %s", e.Op, e.State)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

// DirectoryNotEmptyError is returned when a directory that would be removed
// still holds entries. Contents are never deleted.
type DirectoryNotEmptyError struct {
	Path string
}

func (e *DirectoryNotEmptyError) Error() string {
	return fmt.Sprintf("directory not empty: %s", e.Path)
}

func (e *DirectoryNotEmptyError) Is(target error) bool { return target == ErrNotEmpty }

// TemplateError reports a destination template token that resolved to nothing
// and carried no default.
type TemplateError struct {
	Template string
	Token    string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q: token %%%s did not resolve and has no default", e.Template, e.Token)
}

// ValidationError aggregates every violation found by a validation pass.
type ValidationError struct {
	Violations []error
}

// NewValidationError returns nil when there are no violations so callers can
// return it directly.
func NewValidationError(violations []error) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "validation failed: " + e.Violations[0].Error()
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("validation failed with %d violations: %s", len(e.Violations), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error { return e.Violations }

// CommitError wraps the failure that halted a commit. Index is the position
// of the failed command in the pending queue at the time commit started.
type CommitError struct {
	Index       int
	Description string
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("command %d (%s) failed: %v", e.Index+1, e.Description, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// ArchiveError reports executed commands whose batch could not be stored.
// The files were already changed; Batch holds the specs needed to reverse
// them by hand.
type ArchiveError struct {
	Batch *Batch
	Err   error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archiving batch %s (%d executed commands cannot be undone): %v", e.Batch.ID, len(e.Batch.Commands), e.Err)
}

func (e *ArchiveError) Unwrap() error { return e.Err }
