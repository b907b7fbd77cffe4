package reel

import "fmt"

// History returns the most recent archived batches, newest first.
func (s *Service) History(limit int) ([]*Batch, error) {
	batches, err := s.database.ListBatches(limit)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	return batches, nil
}

// Operations returns the most recent mutating operations, newest first.
func (s *Service) Operations(limit int) ([]*Operation, error) {
	ops, err := s.database.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
