package reel

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// CreateDirectory creates one directory that must not already exist.
type CreateDirectory struct {
	fsmgr FilesystemManager
	path  string
	state CommandState
}

var _ Command = (*CreateDirectory)(nil)

func NewCreateDirectory(fsmgr FilesystemManager, path string) (*CreateDirectory, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	return &CreateDirectory{fsmgr: fsmgr, path: abs, state: StateStaged}, nil
}

func (c *CreateDirectory) State() CommandState { return c.state }
func (c *CreateDirectory) Path() string        { return c.path }
func (c *CreateDirectory) Describe() string    { return "create directory " + c.path }

func (c *CreateDirectory) Execute(ctx context.Context) error {
	if c.state != StateStaged {
		return &StateError{Op: "execute", State: c.state}
	}
	if exists(c.fsmgr, c.path) {
		return &AlreadyExistsError{Path: c.path}
	}
	parent := filepath.Dir(c.path)
	if !exists(c.fsmgr, parent) {
		return &NotFoundError{Path: parent}
	}
	if err := c.fsmgr.Mkdir(c.path); err != nil {
		return fmt.Errorf("creating directory %s: %w", c.path, err)
	}
	c.state = StateExecuted
	return nil
}

// Undo removes the directory only while it is empty.
func (c *CreateDirectory) Undo(ctx context.Context) error {
	if c.state != StateExecuted {
		return &StateError{Op: "undo", State: c.state}
	}
	if !exists(c.fsmgr, c.path) {
		return &NotFoundError{Path: c.path}
	}
	if err := c.fsmgr.RemoveDir(c.path); err != nil {
		if errors.Is(err, ErrNotEmpty) {
			return &DirectoryNotEmptyError{Path: c.path}
		}
		return fmt.Errorf("removing directory %s: %w", c.path, err)
	}
	c.state = StateUndone
	return nil
}

func (c *CreateDirectory) ValidateExec() []error {
	var violations []error
	if c.state != StateStaged {
		violations = append(violations, &StateError{Op: "execute", State: c.state})
	}
	if exists(c.fsmgr, c.path) {
		violations = append(violations, &AlreadyExistsError{Path: c.path})
	}
	parent := filepath.Dir(c.path)
	if !exists(c.fsmgr, parent) {
		violations = append(violations, &NotFoundError{Path: parent})
	} else {
		violations = appendErr(violations, c.fsmgr.Access(parent, AccessWrite))
	}
	return violations
}

func (c *CreateDirectory) ValidateUndo() []error {
	var violations []error
	if c.state != StateExecuted {
		return append(violations, &StateError{Op: "undo", State: c.state})
	}
	if !exists(c.fsmgr, c.path) {
		violations = append(violations, &NotFoundError{Path: c.path})
	}
	return appendErr(violations, c.fsmgr.Access(filepath.Dir(c.path), AccessWrite))
}

func (c *CreateDirectory) Spec() CommandSpec {
	return CommandSpec{Kind: KindCreateDirectory, State: c.state, Path: c.path}
}
