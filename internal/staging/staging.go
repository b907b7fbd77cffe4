package staging

import (
	"fmt"
	"sync"

	"reel-go/internal/reel"
)

// stagingArea implements reel.StagingArea using a pluggable stagingStore
// for the storage mechanics. All shared algorithm logic lives here.
type stagingArea struct {
	store       stagingStore
	maxCommands int
	mu          sync.Mutex
}

var _ reel.StagingArea = (*stagingArea)(nil)

// List returns the staged specs in order.
func (s *stagingArea) List() ([]reel.CommandSpec, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ops, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading queue: %w", err)
	}
	specs := make([]reel.CommandSpec, len(ops))
	for i, op := range ops {
		specs[i] = op.Spec
	}
	return specs, nil
}

// Replace validates every spec and overwrites the queue. Nothing is written
// if any spec is invalid or the queue would exceed its limit.
func (s *stagingArea) Replace(specs []reel.CommandSpec) error {
	if len(specs) > s.maxCommands {
		return fmt.Errorf("staging area full: %d commands exceeds max of %d", len(specs), s.maxCommands)
	}

	var violations []error
	ops := make([]*stagedOperation, len(specs))
	for i, spec := range specs {
		if err := validateSpec(spec); err != nil {
			violations = append(violations, fmt.Errorf("command %d: %w", i+1, err))
			continue
		}
		ops[i] = &stagedOperation{Position: i, Spec: spec}
	}
	if err := reel.NewValidationError(violations); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Save(ops); err != nil {
		return fmt.Errorf("saving queue: %w", err)
	}
	return nil
}

// Count returns the number of staged commands in the queue.
func (s *stagingArea) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops, err := s.store.Load()
	if err != nil {
		return 0, fmt.Errorf("loading queue: %w", err)
	}
	return len(ops), nil
}
