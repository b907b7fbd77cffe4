package reel

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// MoveFile relocates a record's file to a destination rendered from a
// template, creating missing parent directories on the way.
type MoveFile struct {
	fsmgr    FilesystemManager
	logger   Logger
	record   *MediaRecord
	template string
	root     string

	// source is the record's path when the command was staged.
	source string

	// Captured by Execute and consumed by Undo.
	destination string
	createdDirs []string // innermost first

	state CommandState
}

var _ Command = (*MoveFile)(nil)

// NewMoveFile stages a move of record using tmpl. Relative template results
// are anchored at root, or at the record's directory when root is empty.
func NewMoveFile(fsmgr FilesystemManager, record *MediaRecord, tmpl, root string) *MoveFile {
	return &MoveFile{
		fsmgr:    fsmgr,
		logger:   NewNopLogger(),
		record:   record,
		template: tmpl,
		root:     root,
		source:   record.Path(),
		state:    StateStaged,
	}
}

func (m *MoveFile) State() CommandState { return m.state }

// WithLogger sets the logger that receives warnings about the moved file.
func (m *MoveFile) WithLogger(l Logger) *MoveFile {
	if l != nil {
		m.logger = l
	}
	return m
}

// Record returns the record being moved.
func (m *MoveFile) Record() *MediaRecord { return m.record }

// Source returns the path the file is moved from.
func (m *MoveFile) Source() string { return m.source }

// Destination returns the path captured at execution, or renders the
// template against the record's current metadata while still staged.
func (m *MoveFile) Destination() (string, error) {
	if m.destination != "" {
		return m.destination, nil
	}
	return ResolveDestination(m.template, m.root, m.record)
}

// CreatedDirs returns the directories created by Execute, innermost first.
func (m *MoveFile) CreatedDirs() []string {
	return append([]string(nil), m.createdDirs...)
}

func (m *MoveFile) Describe() string {
	dst, err := m.Destination()
	if err != nil {
		return fmt.Sprintf("move %s -> (unresolved: %v)", m.source, err)
	}
	return fmt.Sprintf("move %s -> %s", m.source, dst)
}

func (m *MoveFile) Execute(ctx context.Context) error {
	if m.state != StateStaged {
		return &StateError{Op: "execute", State: m.state}
	}
	dst, err := m.Destination()
	if err != nil {
		return err
	}
	if !exists(m.fsmgr, m.source) {
		return &NotFoundError{Path: m.source}
	}
	if exists(m.fsmgr, dst) {
		return &AlreadyExistsError{Path: dst}
	}

	created, err := m.createParents(filepath.Dir(dst))
	if err != nil {
		return err
	}

	if err := m.fsmgr.Move(m.source, dst); err != nil {
		m.removeCreated(created)
		return fmt.Errorf("moving %s to %s: %w", m.source, dst, err)
	}

	m.destination = dst
	m.createdDirs = created
	if err := m.record.relocate(m.fsmgr, dst); err != nil {
		m.logger.Warn("file attributes not refreshed after move", "path", dst, "error", err)
	}
	m.state = StateExecuted
	return nil
}

func (m *MoveFile) Undo(ctx context.Context) error {
	if m.state != StateExecuted {
		return &StateError{Op: "undo", State: m.state}
	}
	if !exists(m.fsmgr, m.destination) {
		return &NotFoundError{Path: m.destination}
	}
	if exists(m.fsmgr, m.source) {
		return &AlreadyExistsError{Path: m.source}
	}
	if err := m.fsmgr.Move(m.destination, m.source); err != nil {
		return fmt.Errorf("moving %s back to %s: %w", m.destination, m.source, err)
	}
	if err := m.record.relocate(m.fsmgr, m.source); err != nil {
		m.logger.Warn("file attributes not refreshed after move", "path", m.source, "error", err)
	}

	// Created directories are removed innermost first and only while empty.
	// Once one is still occupied its ancestors are necessarily occupied too.
	var retained error
	for _, dir := range m.createdDirs {
		if err := m.fsmgr.RemoveDir(dir); err != nil {
			if errors.Is(err, ErrNotEmpty) {
				retained = &DirectoryNotEmptyError{Path: dir}
			} else {
				retained = fmt.Errorf("removing created directory %s: %w", dir, err)
			}
			break
		}
	}

	m.destination = ""
	m.createdDirs = nil
	m.state = StateUndone
	return retained
}

func (m *MoveFile) ValidateExec() []error {
	var violations []error
	if m.state != StateStaged {
		violations = append(violations, &StateError{Op: "execute", State: m.state})
	}

	if !exists(m.fsmgr, m.source) {
		violations = append(violations, &NotFoundError{Path: m.source})
	} else {
		violations = appendErr(violations, m.fsmgr.Access(m.source, AccessRead))
		violations = appendErr(violations, m.fsmgr.Access(m.source, AccessWrite))
	}

	dst, err := m.Destination()
	if err != nil {
		return append(violations, err)
	}
	if exists(m.fsmgr, dst) {
		violations = append(violations, &AlreadyExistsError{Path: dst})
	}
	parent := nearestExisting(m.fsmgr, filepath.Dir(dst))
	violations = appendErr(violations, m.fsmgr.Access(parent, AccessWrite))
	return violations
}

func (m *MoveFile) ValidateUndo() []error {
	var violations []error
	if m.state != StateExecuted {
		return append(violations, &StateError{Op: "undo", State: m.state})
	}

	if !exists(m.fsmgr, m.destination) {
		violations = append(violations, &NotFoundError{Path: m.destination})
	} else {
		violations = appendErr(violations, m.fsmgr.Access(m.destination, AccessRead))
		violations = appendErr(violations, m.fsmgr.Access(m.destination, AccessWrite))
	}
	if exists(m.fsmgr, m.source) {
		violations = append(violations, &AlreadyExistsError{Path: m.source})
	}
	parent := filepath.Dir(m.source)
	if !exists(m.fsmgr, parent) {
		violations = append(violations, &NotFoundError{Path: parent})
	} else {
		violations = appendErr(violations, m.fsmgr.Access(parent, AccessWrite))
	}
	return violations
}

func (m *MoveFile) Spec() CommandSpec {
	return CommandSpec{
		Kind:        KindMoveFile,
		State:       m.state,
		Fingerprint: m.record.Fingerprint(),
		Template:    m.template,
		Root:        m.root,
		Source:      m.source,
		Destination: m.destination,
		CreatedDirs: m.CreatedDirs(),
	}
}

// createParents creates every missing directory up to and including dir,
// outermost first. It returns them innermost first. On failure the
// directories it already created are removed again.
func (m *MoveFile) createParents(dir string) ([]string, error) {
	var missing []string
	for d := dir; !exists(m.fsmgr, d); {
		missing = append(missing, d)
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}

	var created []string
	for i := len(missing) - 1; i >= 0; i-- {
		if err := m.fsmgr.Mkdir(missing[i]); err != nil {
			m.removeCreated(created)
			return nil, fmt.Errorf("creating directory %s: %w", missing[i], err)
		}
		created = append([]string{missing[i]}, created...)
	}
	return created, nil
}

func (m *MoveFile) removeCreated(dirs []string) {
	for _, d := range dirs {
		if err := m.fsmgr.RemoveDir(d); err != nil {
			return
		}
	}
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}
